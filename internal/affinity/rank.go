package affinity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/platform/apierr"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

// MaxSuggestions caps every suggestion list.
const MaxSuggestions = 200

// RankInput is everything ranking needs besides the candidate edges.
type RankInput struct {
	PoolCardIDs []string
	IgnoredIDs  []string
	// Collection is the owner's card ids. FromCollection keeps only these;
	// otherwise they are dropped.
	Collection     []string
	FromCollection bool
	PoolColors     map[string]struct{}
	Filters        domain.SuggestionFilters
	Limit          int
}

// Rank filters candidate edges and orders candidates by the sum of their
// edge weights to pool cards, highest first, ties by card id.
func Rank(edges []domain.CandidateEdge, in RankInput) []domain.Suggestion {
	if len(in.PoolCardIDs) == 0 || len(edges) == 0 {
		return []domain.Suggestion{}
	}
	limit := in.Limit
	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}

	pool := toSet(in.PoolCardIDs)
	ignored := toSet(in.IgnoredIDs)
	owned := toSet(in.Collection)

	type acc struct {
		card  domain.Card
		score float64
		links map[string]struct{}
	}
	byID := map[string]*acc{}
	rejected := map[string]struct{}{}

	for _, e := range edges {
		id := e.Candidate.ID
		if _, ok := pool[e.PoolCardID]; !ok {
			continue
		}
		if _, ok := rejected[id]; ok {
			continue
		}
		a, ok := byID[id]
		if !ok {
			if !keepCandidate(&e.Candidate, pool, ignored, owned, in) {
				rejected[id] = struct{}{}
				continue
			}
			a = &acc{card: e.Candidate, links: map[string]struct{}{}}
			byID[id] = a
		}
		a.score += clampWeight(e.Weight)
		a.links[e.PoolCardID] = struct{}{}
	}

	out := make([]domain.Suggestion, 0, len(byID))
	for _, a := range byID {
		out = append(out, domain.Suggestion{Card: a.card, Score: a.score, Connections: len(a.links)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Card.ID < out[j].Card.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// keepCandidate applies the exclusion sets and then each enabled filter in
// turn: collection, price, legalities, basic lands, colors.
func keepCandidate(c *domain.Card, pool, ignored, owned map[string]struct{}, in RankInput) bool {
	if c.ID == "" {
		return false
	}
	if _, ok := pool[c.ID]; ok {
		return false
	}
	if _, ok := ignored[c.ID]; ok {
		return false
	}
	_, isOwned := owned[c.ID]
	if in.FromCollection != isOwned {
		return false
	}
	f := in.Filters
	if f.MaxPrice != nil {
		if c.PriceUSD == nil || *c.PriceUSD > *f.MaxPrice {
			return false
		}
	}
	for _, format := range f.Legalities {
		if !c.LegalIn(format) {
			return false
		}
	}
	if f.IgnoreBasicLands && domain.IsBasicLand(c.NameFront) {
		return false
	}
	if f.PreserveColors && !c.ColorsWithin(in.PoolColors) {
		return false
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

type BreakerConfig struct {
	// FailureThreshold is the consecutive store failures that open the
	// breaker. 0 means 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. 0 means 30s.
	OpenTimeout time.Duration
}

// rankReads is what one suggestion query reads from the store.
type rankReads struct {
	pool       *domain.Pool
	collection []string
	edges      []domain.CandidateEdge
}

// Ranker answers suggestion queries. Store reads go through a circuit
// breaker; a missing pool is an answer, not a store failure.
type Ranker struct {
	store    Store
	log      *logger.Logger
	validate *validator.Validate
	breaker  *gobreaker.CircuitBreaker[rankReads]
}

func NewRanker(store Store, log *logger.Logger, cfg BreakerConfig) *Ranker {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	r := &Ranker{
		store:    store,
		log:      log.With("component", "Ranker"),
		validate: NewValidator(),
	}
	r.breaker = gobreaker.NewCircuitBreaker[rankReads](gobreaker.Settings{
		Name:    "suggestion-store",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPoolNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// NewValidator returns a validator that also knows the "format" tag for
// legality format names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("format", func(fl validator.FieldLevel) bool {
		return domain.IsKnownFormat(fl.Field().String())
	})
	return v
}

func (r *Ranker) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, apierr.BadRequest("invalid_filters", fmt.Errorf("affinity: suggest: %w", err))
	}

	reads, err := r.breaker.Execute(func() (rankReads, error) {
		return r.read(ctx, req)
	})
	switch {
	case errors.Is(err, ErrPoolNotFound):
		return nil, apierr.NotFound("pool_not_found", fmt.Errorf("affinity: suggest: pool %s: %w", req.PoolID, err))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, apierr.New(http.StatusServiceUnavailable, "store_unavailable", fmt.Errorf("affinity: suggest: %w", err))
	case err != nil:
		return nil, fmt.Errorf("affinity: suggest: %w", err)
	}

	pool := reads.pool
	out := Rank(reads.edges, RankInput{
		PoolCardIDs:    pool.CardIDs(),
		IgnoredIDs:     pool.Ignored,
		Collection:     reads.collection,
		FromCollection: req.FromCollection,
		PoolColors:     pool.Colors(),
		Filters:        req.Filters,
		Limit:          req.Limit,
	})
	r.log.Debug("suggestions ranked",
		"pool_id", req.PoolID.String(),
		"owner_id", req.OwnerID,
		"pool_cards", len(pool.Cards),
		"candidate_edges", len(reads.edges),
		"results", len(out),
	)
	return out, nil
}

func (r *Ranker) read(ctx context.Context, req domain.SuggestRequest) (rankReads, error) {
	pool, err := r.store.LoadPool(ctx, req.OwnerID, req.PoolID)
	if err != nil {
		return rankReads{}, err
	}
	reads := rankReads{pool: pool}
	if len(pool.Cards) == 0 {
		return reads, nil
	}
	reads.collection, err = r.store.CollectionCardIDs(ctx, req.OwnerID)
	if err != nil {
		return rankReads{}, fmt.Errorf("load collection: %w", err)
	}
	poolIDs := pool.CardIDs()
	exclude := make([]string, 0, len(poolIDs)+len(pool.Ignored))
	exclude = append(exclude, poolIDs...)
	exclude = append(exclude, pool.Ignored...)
	reads.edges, err = r.store.CandidatesConnectedTo(ctx, poolIDs, exclude)
	if err != nil {
		return rankReads{}, fmt.Errorf("load candidates: %w", err)
	}
	return reads, nil
}
