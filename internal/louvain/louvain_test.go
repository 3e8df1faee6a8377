package louvain

import (
	"math"
	"testing"
)

func twoTriangles() ([]string, []Edge) {
	nodes := []string{"a", "b", "c", "d", "e", "f"}
	edges := []Edge{
		{"a", "b", 1}, {"b", "c", 1}, {"a", "c", 1},
		{"d", "e", 1}, {"e", "f", 1}, {"d", "f", 1},
		{"c", "d", 0.1},
	}
	return nodes, edges
}

func TestRun_SeparatesTwoTriangles(t *testing.T) {
	nodes, edges := twoTriangles()
	res := Run(nodes, edges, Options{})

	if res.Count() != 2 {
		t.Fatalf("expected 2 communities, got %d (%v)", res.Count(), res.Communities)
	}
	if res.Communities["a"] != res.Communities["b"] || res.Communities["b"] != res.Communities["c"] {
		t.Fatalf("first triangle split: %v", res.Communities)
	}
	if res.Communities["d"] != res.Communities["e"] || res.Communities["e"] != res.Communities["f"] {
		t.Fatalf("second triangle split: %v", res.Communities)
	}
	if res.Communities["a"] == res.Communities["d"] {
		t.Fatalf("triangles merged: %v", res.Communities)
	}
	if res.Modularity <= 0.3 {
		t.Fatalf("modularity too low: %v", res.Modularity)
	}
}

func TestRun_LevelsEndWithFinalCommunity(t *testing.T) {
	nodes, edges := twoTriangles()
	res := Run(nodes, edges, Options{})
	if res.LevelCount < 1 {
		t.Fatalf("expected at least one level")
	}
	for _, n := range nodes {
		lv := res.Levels[n]
		if len(lv) != res.LevelCount {
			t.Fatalf("node %s has %d levels, want %d", n, len(lv), res.LevelCount)
		}
		if lv[len(lv)-1] != res.Communities[n] {
			t.Fatalf("node %s last level %d != final %d", n, lv[len(lv)-1], res.Communities[n])
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	nodes, edges := twoTriangles()
	first := Run(nodes, edges, Options{})
	for i := 0; i < 5; i++ {
		again := Run(nodes, edges, Options{})
		for _, n := range nodes {
			if first.Communities[n] != again.Communities[n] {
				t.Fatalf("run %d differs at %s", i, n)
			}
		}
		if math.Abs(first.Modularity-again.Modularity) > 1e-12 {
			t.Fatalf("modularity differs: %v vs %v", first.Modularity, again.Modularity)
		}
	}
}

func TestRun_NoWeightMeansSingletons(t *testing.T) {
	nodes := []string{"x", "y", "z"}
	edges := []Edge{{"x", "y", 0}, {"y", "z", -1}, {"x", "x", 4}, {"x", "ghost", 2}}
	res := Run(nodes, edges, Options{})
	if res.Count() != 3 {
		t.Fatalf("expected singletons, got %v", res.Communities)
	}
	if res.Modularity != 0 {
		t.Fatalf("modularity=%v want 0", res.Modularity)
	}
}

func TestRun_IsolatedNodeKeepsOwnCommunity(t *testing.T) {
	nodes, edges := twoTriangles()
	nodes = append(nodes, "loner")
	res := Run(nodes, edges, Options{})
	for _, n := range []string{"a", "d"} {
		if res.Communities["loner"] == res.Communities[n] {
			t.Fatalf("isolated node joined %s's community", n)
		}
	}
}

func TestRun_Empty(t *testing.T) {
	res := Run(nil, nil, Options{})
	if len(res.Communities) != 0 || res.LevelCount != 0 {
		t.Fatalf("unexpected result for empty graph: %#v", res)
	}
}

func TestRun_MaxLevelsOne(t *testing.T) {
	nodes, edges := twoTriangles()
	res := Run(nodes, edges, Options{MaxLevels: 1})
	if res.LevelCount != 1 {
		t.Fatalf("LevelCount=%d want 1", res.LevelCount)
	}
}
