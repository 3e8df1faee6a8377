package affinity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/cardaffinity/internal/cardname"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/observability"
	"github.com/yungbote/cardaffinity/internal/platform/apierr"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

const (
	PassRenormalize = "renormalize"
	PassCommunities = "communities"
	PassRebuild     = "rebuild"
)

// PassLock serializes graph-wide passes across processes. Acquire blocks
// until the lock is held or ctx ends.
type PassLock interface {
	Acquire(ctx context.Context, name string) (func(context.Context) error, error)
}

// Archive returns every batch ever accepted, in acceptance order.
type Archive interface {
	All(ctx context.Context) ([]domain.DecklistBatch, error)
}

type Config struct {
	Aggregator AggregatorConfig
	Policy     WeightPolicy
	Breaker    BreakerConfig
}

type Option func(*Engine)

// WithLedger makes ingestion skip batches the ledger has already seen.
func WithLedger(l BatchLedger) Option { return func(e *Engine) { e.ledger = l } }

// WithArchive enables RebuildAffinityGraph.
func WithArchive(a Archive) Option { return func(e *Engine) { e.archive = a } }

func WithPassLock(l PassLock) Option { return func(e *Engine) { e.passLock = l } }

func WithMetrics(m *observability.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// Engine is the card-affinity graph engine. Graph-wide passes run one at a
// time; suggestion queries run alongside anything.
type Engine struct {
	store    Store
	log      *logger.Logger
	metrics  *observability.Metrics
	ledger   BatchLedger
	archive  Archive
	passLock PassLock
	tracer   trace.Tracer
	cfg      Config

	normalizer  *Normalizer
	partitioner *Partitioner
	ranker      *Ranker

	passMu sync.Mutex
	// edgesMu is held shared by ingestion and exclusively by rebuilds, which
	// drop every edge.
	edgesMu sync.RWMutex
}

func NewEngine(store Store, log *logger.Logger, cfg Config, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Policy == nil {
		cfg.Policy = SqrtPolicy{}
	}
	e := &Engine{
		store:  store,
		log:    log.With("component", "AffinityEngine"),
		tracer: observability.Tracer(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.normalizer = NewNormalizer(store, log, cfg.Policy)
	e.partitioner = NewPartitioner(store, log)
	e.ranker = NewRanker(store, log, cfg.Breaker)
	return e
}

func (e *Engine) aggregator() *Aggregator {
	return NewAggregator(e.store, e.log, e.metrics, e.cfg.Aggregator)
}

// IngestDecklists adds every pair of co-occurring cards in batches to the
// graph. Batches without an id get a fresh one and are never deduplicated.
func (e *Engine) IngestDecklists(ctx context.Context, batches []domain.DecklistBatch) (IngestReport, error) {
	ctx, span := e.tracer.Start(ctx, "affinity.IngestDecklists", trace.WithAttributes(
		attribute.Int("batches", len(batches)),
	))
	defer span.End()

	prepared := make([]domain.DecklistBatch, len(batches))
	for i, b := range batches {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		prepared[i] = b
	}

	e.edgesMu.RLock()
	report, err := e.aggregator().Ingest(ctx, prepared, e.ledger)
	e.edgesMu.RUnlock()

	span.SetAttributes(
		attribute.Int("failed_batches", len(report.Failed())),
		attribute.Int64("occurrences", report.Occurrences()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("affinity: ingest: %w", err)
	}
	return report, nil
}

func (e *Engine) RenormalizeWeights(ctx context.Context) (NormalizeReport, error) {
	var report NormalizeReport
	err := e.runPass(ctx, PassRenormalize, func(ctx context.Context) error {
		var err error
		report, err = e.normalizer.Run(ctx)
		return err
	})
	return report, err
}

func (e *Engine) RecomputeCommunities(ctx context.Context) (PartitionReport, error) {
	var report PartitionReport
	err := e.runPass(ctx, PassCommunities, func(ctx context.Context) error {
		var err error
		report, err = e.partitioner.Run(ctx)
		if err == nil {
			e.metrics.SetPartition(report.Communities, report.Modularity)
		}
		return err
	})
	return report, err
}

type RebuildReport struct {
	EdgesCleared int64
	Ingest       IngestReport
	Normalize    NormalizeReport
}

// RebuildAffinityGraph drops every edge and replays the archive, then
// renormalizes. Sync counts afterwards equal exactly what the archive
// implies.
func (e *Engine) RebuildAffinityGraph(ctx context.Context) (RebuildReport, error) {
	var report RebuildReport
	if e.archive == nil {
		return report, errors.New("affinity: rebuild: no decklist archive configured")
	}
	err := e.runPass(ctx, PassRebuild, func(ctx context.Context) error {
		batches, err := e.archive.All(ctx)
		if err != nil {
			return fmt.Errorf("affinity: rebuild: load archive: %w", err)
		}

		e.edgesMu.Lock()
		defer e.edgesMu.Unlock()

		cleared, err := e.store.ClearEdges(ctx)
		if err != nil {
			return fmt.Errorf("affinity: rebuild: clear edges: %w", err)
		}
		report.EdgesCleared = cleared

		report.Ingest, err = e.aggregator().Ingest(ctx, batches, nil)
		if err != nil {
			return fmt.Errorf("affinity: rebuild: replay: %w", err)
		}
		if failed := report.Ingest.Failed(); len(failed) > 0 {
			return fmt.Errorf("affinity: rebuild: %d of %d batches failed, first %s: %w",
				len(failed), len(batches), failed[0].BatchID, failed[0].Err)
		}

		report.Normalize, err = e.normalizer.Run(ctx)
		return err
	})
	return report, err
}

func (e *Engine) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	ctx, span := e.tracer.Start(ctx, "affinity.Suggest", trace.WithAttributes(
		attribute.String("pool_id", req.PoolID.String()),
		attribute.Bool("from_collection", req.FromCollection),
	))
	defer span.End()

	start := time.Now()
	out, err := e.ranker.Suggest(ctx, req)
	e.metrics.ObserveSuggest(err, len(out), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

func (e *Engine) Card(ctx context.Context, id string) (*domain.Card, error) {
	c, err := e.store.GetCard(ctx, id)
	if errors.Is(err, ErrCardNotFound) {
		return nil, apierr.NotFound("card_not_found", fmt.Errorf("affinity: card %q: %w", id, err))
	}
	if err != nil {
		return nil, fmt.Errorf("affinity: card %q: %w", id, err)
	}
	return c, nil
}

// LoadCatalog upserts catalog cards. Name fields are derived from FullName
// when NameFront is empty; cards with no usable name are skipped.
func (e *Engine) LoadCatalog(ctx context.Context, cards []domain.Card) (int, error) {
	ctx, span := e.tracer.Start(ctx, "affinity.LoadCatalog", trace.WithAttributes(
		attribute.Int("cards", len(cards)),
	))
	defer span.End()

	out := make([]domain.Card, 0, len(cards))
	skipped := 0
	for _, c := range cards {
		if c.NameFront == "" {
			n := cardname.Resolve(c.FullName)
			if !n.OK() {
				skipped++
				continue
			}
			c.NameFront, c.NameBack = cardname.Normalize(n.Front), cardname.Normalize(n.Back)
			c.FullName = n.Full()
		}
		out = append(out, c)
	}
	if skipped > 0 {
		e.log.Warn("catalog cards without a name skipped", "count", skipped)
		e.metrics.AddDropped("catalog_unnamed", skipped)
	}

	n, err := e.store.UpsertCards(ctx, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return n, fmt.Errorf("affinity: load catalog: %w", err)
	}
	e.log.Info("catalog loaded", "cards", n, "skipped", skipped)
	return n, nil
}

// runPass holds the in-process pass mutex and, when configured, the
// distributed pass lock for the duration of fn.
func (e *Engine) runPass(ctx context.Context, pass string, fn func(context.Context) error) (err error) {
	ctx, span := e.tracer.Start(ctx, "affinity.pass."+pass)
	defer span.End()

	start := time.Now()
	defer func() {
		e.metrics.ObservePass(pass, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.log.Error("graph pass failed", "pass", pass, "error", err)
		}
	}()

	e.passMu.Lock()
	defer e.passMu.Unlock()

	if e.passLock != nil {
		release, lerr := e.passLock.Acquire(ctx, "affinity-pass")
		if lerr != nil {
			return fmt.Errorf("affinity: %s: acquire pass lock: %w", pass, lerr)
		}
		defer func() {
			// The pass ctx may already be done; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if rerr := release(rctx); rerr != nil {
				e.log.Warn("pass lock release failed", "pass", pass, "error", rerr)
			}
		}()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
