package affinity_test

import (
	"context"
	"testing"

	"github.com/yungbote/cardaffinity/internal/data/memgraph"
	"github.com/yungbote/cardaffinity/internal/domain"
)

// seedCards loads one card per name and returns name front -> card id.
func seedCards(t *testing.T, store *memgraph.Store, cards ...domain.Card) map[string]string {
	t.Helper()
	if _, err := store.UpsertCards(context.Background(), cards); err != nil {
		t.Fatalf("UpsertCards: %v", err)
	}
	ids := map[string]string{}
	for _, c := range store.Cards() {
		ids[c.NameFront] = c.ID
	}
	return ids
}

func named(names ...string) []domain.Card {
	out := make([]domain.Card, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Card{NameFront: n, FullName: n})
	}
	return out
}

func batch(id string, decks ...[]string) domain.DecklistBatch {
	b := domain.DecklistBatch{ID: id, Source: "test"}
	for _, d := range decks {
		b.Decklists = append(b.Decklists, domain.Decklist{Name: id, Cards: d})
	}
	return b
}

func price(v float64) *float64 { return &v }
