package affinity

import (
	"context"
	"fmt"

	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

type NormalizeReport struct {
	Policy           string
	SelfLoopsRemoved int64
	EdgesWeighted    int64
}

// Normalizer recomputes every card's total recurrences and then every edge's
// dynamic weight. Both steps are graph-wide; a failure leaves the pass to be
// rerun in full.
type Normalizer struct {
	store  Store
	log    *logger.Logger
	policy WeightPolicy
}

func NewNormalizer(store Store, log *logger.Logger, policy WeightPolicy) *Normalizer {
	if log == nil {
		log = logger.NewNop()
	}
	if policy == nil {
		policy = SqrtPolicy{}
	}
	return &Normalizer{store: store, log: log.With("component", "Normalizer"), policy: policy}
}

func (n *Normalizer) Policy() WeightPolicy { return n.policy }

func (n *Normalizer) Run(ctx context.Context) (NormalizeReport, error) {
	report := NormalizeReport{Policy: n.policy.Name()}

	removed, err := n.store.DeleteSelfLoops(ctx)
	if err != nil {
		return report, fmt.Errorf("affinity: normalize: delete self loops: %w", err)
	}
	report.SelfLoopsRemoved = removed

	if err := n.store.RecomputeTotalRecurrences(ctx); err != nil {
		return report, fmt.Errorf("affinity: normalize: total recurrences: %w", err)
	}

	weighted, err := n.store.WriteDynamicWeights(ctx, n.policy)
	if err != nil {
		return report, fmt.Errorf("affinity: normalize: dynamic weights: %w", err)
	}
	report.EdgesWeighted = weighted

	n.log.Info("weights renormalized", "policy", report.Policy, "edges", weighted, "self_loops_removed", removed)
	return report, nil
}
