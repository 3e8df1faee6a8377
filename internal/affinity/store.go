package affinity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yungbote/cardaffinity/internal/domain"
)

var (
	ErrCardNotFound = errors.New("card not found")
	// ErrPoolNotFound covers both a missing pool and a pool the owner does
	// not have.
	ErrPoolNotFound = errors.New("pool not found")
)

// WeightProperty is the edge property the partitioner weighs edges by.
const WeightProperty = "dynamic_weight"

// Store is the graph store the engine runs on. Every call is a blocking round
// trip. Multi-row writes must be atomic: readers never see half of one call.
type Store interface {
	GetCard(ctx context.Context, id string) (*domain.Card, error)

	// ResolveCardKeys maps canonical name keys (front name or full
	// FRONT // BACK name) to stable card ids. Unknown keys are absent from the
	// result.
	ResolveCardKeys(ctx context.Context, keys []string) (map[string]string, error)

	// UpsertCards creates or updates catalog cards keyed by NameFront.
	UpsertCards(ctx context.Context, cards []domain.Card) (int, error)

	// UpsertEdges applies every delta in one transaction, creating the
	// CONNECTED edge with sync = delta or incrementing it. Deltas whose
	// endpoints do not exist or coincide are skipped; the number applied is
	// returned.
	UpsertEdges(ctx context.Context, deltas []domain.EdgeDelta) (int, error)

	DeleteSelfLoops(ctx context.Context) (int64, error)

	// ClearEdges drops every CONNECTED edge.
	ClearEdges(ctx context.Context) (int64, error)

	// RecomputeTotalRecurrences sets every card's total_recurrences to the
	// sum of sync over its incident edges (0 for isolated cards).
	RecomputeTotalRecurrences(ctx context.Context) error

	// WriteDynamicWeights sets dynamic_weight on every edge from its sync and
	// both endpoints' total_recurrences.
	WriteDynamicWeights(ctx context.Context, policy WeightPolicy) (int64, error)

	// RunPartitioning computes communities over every card using the named
	// edge weight without writing anything.
	RunPartitioning(ctx context.Context, weightProperty string) (domain.Assignment, error)

	// ReplaceCommunities drops every community and membership and writes
	// assignment in their place, atomically.
	ReplaceCommunities(ctx context.Context, assignment domain.Assignment) error

	LoadPool(ctx context.Context, ownerID string, poolID uuid.UUID) (*domain.Pool, error)
	CollectionCardIDs(ctx context.Context, ownerID string) ([]string, error)

	// CandidatesConnectedTo returns one row per CONNECTED edge between a card
	// in cardIDs and a card outside both cardIDs and excludeIDs.
	CandidatesConnectedTo(ctx context.Context, cardIDs []string, excludeIDs []string) ([]domain.CandidateEdge, error)
}
