package affinity

import (
	"context"
	"fmt"

	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

type PartitionReport struct {
	Cards       int
	Communities int
	Modularity  float64
}

// Partitioner computes a fresh community assignment and swaps it in for the
// previous one. The assignment is built completely before anything is
// deleted, so readers never see a graph without communities.
type Partitioner struct {
	store Store
	log   *logger.Logger
}

func NewPartitioner(store Store, log *logger.Logger) *Partitioner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Partitioner{store: store, log: log.With("component", "Partitioner")}
}

func (p *Partitioner) Run(ctx context.Context) (PartitionReport, error) {
	assignment, err := p.store.RunPartitioning(ctx, WeightProperty)
	if err != nil {
		return PartitionReport{}, fmt.Errorf("affinity: partition: run: %w", err)
	}
	if err := p.store.ReplaceCommunities(ctx, assignment); err != nil {
		return PartitionReport{}, fmt.Errorf("affinity: partition: replace communities: %w", err)
	}
	report := PartitionReport{
		Cards:       len(assignment.Members),
		Communities: len(assignment.Communities()),
		Modularity:  assignment.Modularity,
	}
	p.log.Info("communities recomputed", "cards", report.Cards, "communities", report.Communities, "modularity", report.Modularity)
	return report, nil
}
