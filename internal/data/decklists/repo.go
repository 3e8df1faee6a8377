// Package decklists archives every accepted decklist batch and tracks its
// processing state. The archive is what a full graph rebuild replays.
package decklists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

const maxErrorLen = 2000

type Repo interface {
	affinity.BatchLedger
	affinity.Archive

	// Save archives batch as pending unless it is already known.
	Save(ctx context.Context, batch domain.DecklistBatch) error
	Get(ctx context.Context, id string) (*domain.DecklistBatchRecord, error)
	ListByStatus(ctx context.Context, status string) ([]*domain.DecklistBatchRecord, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

var _ Repo = (*repo)(nil)

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &repo{db: db, log: baseLog.With("repo", "DecklistBatchRepo")}
}

func newRecord(batch domain.DecklistBatch, status string) (*domain.DecklistBatchRecord, error) {
	if batch.ID == "" {
		return nil, errors.New("decklist batch without id")
	}
	payload, err := json.Marshal(batch.Decklists)
	if err != nil {
		return nil, fmt.Errorf("encode decklists: %w", err)
	}
	return &domain.DecklistBatchRecord{
		ID:        batch.ID,
		Source:    batch.Source,
		Payload:   datatypes.JSON(payload),
		Decklists: len(batch.Decklists),
		Status:    status,
	}, nil
}

func (r *repo) Save(ctx context.Context, batch domain.DecklistBatch) error {
	rec, err := newRecord(batch, domain.BatchStatusPending)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(rec).Error
}

// Claim archives batch if needed and marks it running. It returns false when
// the batch is already running or done, so each batch is applied at most once.
func (r *repo) Claim(ctx context.Context, batch domain.DecklistBatch) (bool, error) {
	rec, err := newRecord(batch, domain.BatchStatusRunning)
	if err != nil {
		return false, err
	}
	rec.Attempts = 1

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("claim batch %s: %w", batch.ID, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = r.db.WithContext(ctx).
		Model(&domain.DecklistBatchRecord{}).
		Where("id = ? AND status NOT IN ?", batch.ID, []string{domain.BatchStatusRunning, domain.BatchStatusDone}).
		Updates(map[string]interface{}{
			"status":     domain.BatchStatusRunning,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim batch %s: %w", batch.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Complete(ctx context.Context, batchID string, pairs int64) error {
	now := time.Now().UTC()
	return r.update(ctx, batchID, map[string]interface{}{
		"status":        domain.BatchStatusDone,
		"pairs_applied": pairs,
		"last_error":    "",
		"processed_at":  &now,
		"updated_at":    now,
	})
}

func (r *repo) Fail(ctx context.Context, batchID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return r.update(ctx, batchID, map[string]interface{}{
		"status":     domain.BatchStatusFailed,
		"last_error": msg,
		"updated_at": time.Now().UTC(),
	})
}

func (r *repo) update(ctx context.Context, batchID string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&domain.DecklistBatchRecord{}).
		Where("id = ?", batchID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update batch %s: %w", batchID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update batch %s: %w", batchID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *repo) Get(ctx context.Context, id string) (*domain.DecklistBatchRecord, error) {
	var rec domain.DecklistBatchRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repo) ListByStatus(ctx context.Context, status string) ([]*domain.DecklistBatchRecord, error) {
	var out []*domain.DecklistBatchRecord
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// All decodes every archived batch whatever its status, oldest first.
// Records whose payload cannot be decoded are logged and skipped.
func (r *repo) All(ctx context.Context) ([]domain.DecklistBatch, error) {
	var recs []*domain.DecklistBatchRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	out := make([]domain.DecklistBatch, 0, len(recs))
	for _, rec := range recs {
		b := domain.DecklistBatch{ID: rec.ID, Source: rec.Source}
		if len(rec.Payload) > 0 {
			if err := json.Unmarshal(rec.Payload, &b.Decklists); err != nil {
				r.log.Warn("archived batch payload unreadable, skipping", "batch_id", rec.ID, "error", err)
				continue
			}
		}
		out = append(out, b)
	}
	return out, nil
}
