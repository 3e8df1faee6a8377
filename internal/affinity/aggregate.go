package affinity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/cardaffinity/internal/cardname"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/observability"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

const (
	BatchDone    = "done"
	BatchFailed  = "failed"
	BatchSkipped = "skipped"
)

// BatchLedger makes batch delivery at-most-once. Claim returns false for a
// batch that is already applied or in flight.
type BatchLedger interface {
	Claim(ctx context.Context, batch domain.DecklistBatch) (bool, error)
	Complete(ctx context.Context, batchID string, pairs int64) error
	Fail(ctx context.Context, batchID string, cause error) error
}

type AggregatorConfig struct {
	// Concurrency is the number of batches written in parallel.
	Concurrency int
	// MaxAttempts bounds tries per batch, including the first.
	MaxAttempts int
	// RetryInterval is the initial backoff between tries.
	RetryInterval time.Duration
	// MaxDecklistCards skips decklists with more distinct cards. 0 disables.
	MaxDecklistCards int
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	return c
}

type BatchResult struct {
	BatchID   string
	Status    string
	Decklists int
	// SkippedDecklists counts decklists that contributed no pairs because
	// they were over the size cap.
	SkippedDecklists int
	// Unresolved counts entries with no identity or no matching card.
	Unresolved int
	// Pairs is the number of distinct card pairs in the batch, Occurrences
	// the total increments across them.
	Pairs       int
	Occurrences int64
	// Applied is the number of pairs the store wrote.
	Applied  int
	Attempts int
	Err      error
}

type IngestReport struct {
	Batches          []BatchResult
	SelfLoopsRemoved int64
}

func (r IngestReport) Failed() []BatchResult {
	var out []BatchResult
	for _, b := range r.Batches {
		if b.Status == BatchFailed {
			out = append(out, b)
		}
	}
	return out
}

func (r IngestReport) Occurrences() int64 {
	var n int64
	for _, b := range r.Batches {
		if b.Status == BatchDone {
			n += b.Occurrences
		}
	}
	return n
}

type Aggregator struct {
	store   Store
	log     *logger.Logger
	metrics *observability.Metrics
	cfg     AggregatorConfig
}

func NewAggregator(store Store, log *logger.Logger, metrics *observability.Metrics, cfg AggregatorConfig) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{
		store:   store,
		log:     log.With("component", "Aggregator"),
		metrics: metrics,
		cfg:     cfg.withDefaults(),
	}
}

// DecklistPairs returns every unordered pair of distinct ids in ids, each in
// canonical order. Duplicates in ids are ignored.
func DecklistPairs(ids []string) [][2]string {
	uniq := uniqueSorted(ids)
	out := make([][2]string, 0, len(uniq)*(len(uniq)-1)/2)
	for i := 0; i < len(uniq); i++ {
		for j := i + 1; j < len(uniq); j++ {
			out = append(out, [2]string{uniq[i], uniq[j]})
		}
	}
	return out
}

func uniqueSorted(ids []string) []string {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)
	return uniq
}

// Ingest applies every batch. A batch that keeps failing is reported and
// does not stop the others. ledger may be nil.
func (a *Aggregator) Ingest(ctx context.Context, batches []domain.DecklistBatch, ledger BatchLedger) (IngestReport, error) {
	report := IngestReport{Batches: make([]BatchResult, len(batches))}

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i := range batches {
		i := i
		g.Go(func() error {
			report.Batches[i] = a.ingestBatch(ctx, batches[i], ledger)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	removed, err := a.store.DeleteSelfLoops(ctx)
	if err != nil {
		return report, fmt.Errorf("affinity: self-loop cleanup: %w", err)
	}
	report.SelfLoopsRemoved = removed
	a.metrics.AddSelfLoopsRemoved(removed)
	if removed > 0 {
		a.log.Warn("removed self-loop edges after ingestion", "count", removed)
	}
	return report, nil
}

func (a *Aggregator) ingestBatch(ctx context.Context, batch domain.DecklistBatch, ledger BatchLedger) BatchResult {
	res := BatchResult{BatchID: batch.ID, Decklists: len(batch.Decklists)}
	log := a.log.With("batch_id", batch.ID, "source", batch.Source)

	if err := ctx.Err(); err != nil {
		res.Status, res.Err = BatchFailed, err
		return res
	}

	if ledger != nil {
		ok, err := ledger.Claim(ctx, batch)
		if err != nil {
			log.Error("batch claim failed", "error", err)
			res.Status, res.Err = BatchFailed, fmt.Errorf("claim batch: %w", err)
			a.metrics.ObserveBatch(BatchFailed, 0)
			return res
		}
		if !ok {
			log.Info("batch already processed, skipping")
			res.Status = BatchSkipped
			a.metrics.ObserveBatch(BatchSkipped, 0)
			return res
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.cfg.RetryInterval

	applied, err := backoff.Retry(ctx, func() (int, error) {
		res.Attempts++
		deltas, err := a.prepare(ctx, batch, &res)
		if err != nil {
			return 0, a.retryable(ctx, err)
		}
		if len(deltas) == 0 {
			return 0, nil
		}
		n, err := a.store.UpsertEdges(ctx, deltas)
		if err != nil {
			log.Warn("edge upsert failed", "attempt", res.Attempts, "error", err)
			return 0, a.retryable(ctx, err)
		}
		return n, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(a.cfg.MaxAttempts)))

	if err != nil {
		res.Status, res.Err = BatchFailed, err
		log.Error("batch failed, continuing with next batches", "attempts", res.Attempts, "error", err)
		a.metrics.ObserveBatch(BatchFailed, 0)
		if ledger != nil {
			if lerr := ledger.Fail(ctx, batch.ID, err); lerr != nil {
				log.Warn("ledger fail mark failed", "error", lerr)
			}
		}
		return res
	}

	res.Status, res.Applied = BatchDone, applied
	if dropped := res.Pairs - applied; dropped > 0 {
		log.Warn("pairs referencing missing cards were skipped", "count", dropped)
		a.metrics.AddDropped("missing_endpoint", dropped)
	}
	a.metrics.AddDropped("unresolved_card", res.Unresolved)
	a.metrics.ObserveBatch(BatchDone, res.Occurrences)
	log.Info("batch ingested",
		"decklists", res.Decklists,
		"pairs", res.Pairs,
		"occurrences", res.Occurrences,
		"applied", applied,
		"unresolved", res.Unresolved,
	)
	if ledger != nil {
		if lerr := ledger.Complete(ctx, batch.ID, res.Occurrences); lerr != nil {
			log.Warn("ledger complete mark failed", "error", lerr)
		}
	}
	return res
}

func (a *Aggregator) retryable(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}

// prepare resolves the batch's names to card ids and sums pair increments.
// It fills the counters on res; it is rerun from scratch on every attempt.
func (a *Aggregator) prepare(ctx context.Context, batch domain.DecklistBatch, res *BatchResult) ([]domain.EdgeDelta, error) {
	res.SkippedDecklists, res.Unresolved, res.Pairs, res.Occurrences = 0, 0, 0, 0

	keysByDeck := make([][]string, len(batch.Decklists))
	distinct := map[string]struct{}{}
	for i, deck := range batch.Decklists {
		keys := make([]string, 0, len(deck.Cards))
		for _, raw := range deck.Cards {
			key := cardname.Key(raw)
			if key == "" {
				res.Unresolved++
				continue
			}
			keys = append(keys, key)
			distinct[key] = struct{}{}
		}
		keysByDeck[i] = keys
	}
	if len(distinct) == 0 {
		return nil, nil
	}

	lookup := make([]string, 0, len(distinct))
	for k := range distinct {
		lookup = append(lookup, k)
	}
	sort.Strings(lookup)
	ids, err := a.store.ResolveCardKeys(ctx, lookup)
	if err != nil {
		return nil, fmt.Errorf("resolve card keys: %w", err)
	}

	counts := map[[2]string]int64{}
	for i, keys := range keysByDeck {
		deckIDs := make([]string, 0, len(keys))
		for _, k := range keys {
			id, ok := ids[k]
			if !ok {
				res.Unresolved++
				continue
			}
			deckIDs = append(deckIDs, id)
		}
		uniq := uniqueSorted(deckIDs)
		if a.cfg.MaxDecklistCards > 0 && len(uniq) > a.cfg.MaxDecklistCards {
			a.log.Warn("decklist over card cap skipped",
				"batch_id", batch.ID,
				"decklist", batch.Decklists[i].Name,
				"cards", len(uniq),
				"max_cards", a.cfg.MaxDecklistCards,
			)
			res.SkippedDecklists++
			continue
		}
		for _, p := range DecklistPairs(uniq) {
			counts[p]++
		}
	}

	deltas := make([]domain.EdgeDelta, 0, len(counts))
	for p, n := range counts {
		deltas = append(deltas, domain.EdgeDelta{A: p[0], B: p[1], Delta: n})
		res.Occurrences += n
	}
	// Concurrent batches must lock shared edges in the same order.
	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].A != deltas[j].A {
			return deltas[i].A < deltas[j].A
		}
		return deltas[i].B < deltas[j].B
	})
	res.Pairs = len(deltas)
	return deltas, nil
}
