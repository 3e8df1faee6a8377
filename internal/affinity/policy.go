package affinity

import (
	"fmt"
	"math"
	"strings"
)

// WeightPolicy turns a raw co-occurrence count into an affinity weight given
// both endpoints' total recurrences.
type WeightPolicy interface {
	Name() string
	Weight(sync, totalA, totalB int64) float64
}

// SqrtPolicy divides sync by the square root of the endpoints' combined
// recurrences, damping ubiquitous cards without erasing them.
type SqrtPolicy struct{}

func (SqrtPolicy) Name() string { return "sqrt" }

func (SqrtPolicy) Weight(sync, totalA, totalB int64) float64 {
	denom := totalA + totalB
	if denom <= 0 || sync <= 0 {
		return 0
	}
	return clampWeight(float64(sync) / math.Sqrt(float64(denom)))
}

// RawPolicy uses sync as-is.
type RawPolicy struct{}

func (RawPolicy) Name() string { return "raw" }

func (RawPolicy) Weight(sync, _, _ int64) float64 {
	if sync <= 0 {
		return 0
	}
	return float64(sync)
}

func PolicyByName(name string) (WeightPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqrt":
		return SqrtPolicy{}, nil
	case "raw":
		return RawPolicy{}, nil
	default:
		return nil, fmt.Errorf("affinity: unknown weight policy %q", name)
	}
}

func clampWeight(w float64) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return 0
	}
	return w
}

// ApplyPolicy computes a weight and guarantees it is finite and non-negative
// whatever the policy returns.
func ApplyPolicy(p WeightPolicy, sync, totalA, totalB int64) float64 {
	if p == nil {
		p = SqrtPolicy{}
	}
	return clampWeight(p.Weight(sync, totalA, totalB))
}
