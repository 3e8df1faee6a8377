package affinity

import (
	"math"
	"testing"
)

func TestSqrtPolicy(t *testing.T) {
	cases := []struct {
		name         string
		sync, ta, tb int64
		want         float64
	}{
		{"typical", 6, 5, 4, 2},
		{"zero denominator", 3, 0, 0, 0},
		{"zero sync", 0, 10, 10, 0},
		{"negative totals", 2, -3, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SqrtPolicy{}.Weight(tc.sync, tc.ta, tc.tb)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("Weight(%d,%d,%d) = %v, want %v", tc.sync, tc.ta, tc.tb, got, tc.want)
			}
		})
	}
}

type brokenPolicy struct{ w float64 }

func (brokenPolicy) Name() string { return "broken" }
func (p brokenPolicy) Weight(_, _, _ int64) float64 { return p.w }

func TestApplyPolicy_NeverNegativeOrNaN(t *testing.T) {
	for _, w := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := ApplyPolicy(brokenPolicy{w: w}, 1, 1, 1); got != 0 {
			t.Fatalf("ApplyPolicy(%v) = %v, want 0", w, got)
		}
	}
	if got := ApplyPolicy(nil, 4, 2, 2); got != 2 {
		t.Fatalf("nil policy = %v, want sqrt default 2", got)
	}
}

func TestPolicyByName(t *testing.T) {
	for name, want := range map[string]string{"": "sqrt", "SQRT": "sqrt", " raw ": "raw"} {
		p, err := PolicyByName(name)
		if err != nil || p.Name() != want {
			t.Fatalf("PolicyByName(%q) = %v, %v; want %s", name, p, err, want)
		}
	}
	if _, err := PolicyByName("log"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
