package decklists

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/cardaffinity/internal/data/db"
	"github.com/yungbote/cardaffinity/internal/domain"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	svc, err := db.Open(db.Config{Driver: db.DriverSQLite, DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	return NewRepo(svc.DB(), nil)
}

func sampleBatch(id string) domain.DecklistBatch {
	return domain.DecklistBatch{
		ID:     id,
		Source: "mtggoldfish",
		Decklists: []domain.Decklist{
			{Name: "burn", Cards: []string{"Lightning Bolt", "Lava Spike"}},
			{Name: "jund", Cards: []string{"Tarmogoyf", "Lightning Bolt"}},
		},
	}
}

func TestClaim_AtMostOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	b := sampleBatch("b1")

	ok, err := r.Claim(ctx, b)
	if err != nil || !ok {
		t.Fatalf("first Claim = %v, %v; want true", ok, err)
	}
	if ok, err := r.Claim(ctx, b); err != nil || ok {
		t.Fatalf("Claim while running = %v, %v; want false", ok, err)
	}
	if err := r.Complete(ctx, b.ID, 3); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if ok, err := r.Claim(ctx, b); err != nil || ok {
		t.Fatalf("Claim after done = %v, %v; want false", ok, err)
	}

	rec, err := r.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != domain.BatchStatusDone || rec.PairsApplied != 3 || rec.Attempts != 1 || rec.ProcessedAt == nil || rec.Decklists != 2 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestClaim_FailedBatchCanBeRetried(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	b := sampleBatch("b2")

	if ok, err := r.Claim(ctx, b); err != nil || !ok {
		t.Fatalf("Claim = %v, %v", ok, err)
	}
	if err := r.Fail(ctx, b.ID, errors.New(strings.Repeat("x", 5000))); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	rec, _ := r.Get(ctx, b.ID)
	if rec.Status != domain.BatchStatusFailed || len(rec.LastError) != maxErrorLen {
		t.Fatalf("record after fail = status %q, error len %d", rec.Status, len(rec.LastError))
	}

	if ok, err := r.Claim(ctx, b); err != nil || !ok {
		t.Fatalf("retry Claim = %v, %v; want true", ok, err)
	}
	rec, _ = r.Get(ctx, b.ID)
	if rec.Status != domain.BatchStatusRunning || rec.Attempts != 2 || rec.LastError != "" {
		t.Fatalf("record after retry claim = %+v", rec)
	}
}

func TestSaveAndAll(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.Save(ctx, sampleBatch("a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := r.Save(ctx, sampleBatch("a")); err != nil {
		t.Fatalf("Save twice: %v", err)
	}
	if ok, err := r.Claim(ctx, sampleBatch("b")); err != nil || !ok {
		t.Fatalf("Claim = %v, %v", ok, err)
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("archive = %d batches, want 2", len(all))
	}
	for _, b := range all {
		if len(b.Decklists) != 2 || b.Decklists[0].Cards[0] != "Lightning Bolt" || b.Source != "mtggoldfish" {
			t.Fatalf("decoded batch = %+v", b)
		}
	}

	pending, err := r.ListByStatus(ctx, domain.BatchStatusPending)
	if err != nil || len(pending) != 1 || pending[0].ID != "a" {
		t.Fatalf("pending = %v, %v", pending, err)
	}
	if ok, err := r.Claim(ctx, sampleBatch("a")); err != nil || !ok {
		t.Fatalf("Claim of pending = %v, %v; want true", ok, err)
	}
}

func TestUpdateUnknownBatch(t *testing.T) {
	r := newTestRepo(t)
	if err := r.Complete(context.Background(), "missing", 1); err == nil {
		t.Fatalf("expected error for unknown batch")
	}
}

func TestClaimRequiresID(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Claim(context.Background(), domain.DecklistBatch{}); err == nil {
		t.Fatalf("expected error for batch without id")
	}
}
