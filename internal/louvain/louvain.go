// Package louvain implements weighted, undirected, multi-level Louvain
// community detection.
//
// Each level runs local moving (every node greedily joins the neighboring
// community with the best modularity gain) until no node moves, then collapses
// communities into super-nodes and repeats on the smaller graph. The assignment
// after every level is kept so callers can store the hierarchy.
//
// Nodes are visited in input order and neighbor communities in ascending id
// order, so results are deterministic for a given input.
package louvain

import (
	"math"
	"sort"
)

type Edge struct {
	From   string
	To     string
	Weight float64
}

type Options struct {
	// MaxLevels bounds the number of aggregation levels. 0 means no bound.
	MaxLevels int
	// MaxPasses bounds local-moving sweeps per level. 0 means 100.
	MaxPasses int
	// MinGain is the modularity improvement below which a level is discarded.
	MinGain float64
}

type Result struct {
	// Communities maps each node to its final community.
	Communities map[string]int
	// Levels maps each node to its community after each kept level.
	Levels     map[string][]int
	Modularity float64
	// LevelCount is the number of levels kept (at least 1 when there are nodes).
	LevelCount int
}

// Count returns the number of distinct final communities.
func (r Result) Count() int {
	seen := map[int]struct{}{}
	for _, c := range r.Communities {
		seen[c] = struct{}{}
	}
	return len(seen)
}

type neighbor struct {
	to int
	w  float64
}

type graph struct {
	adj  [][]neighbor // excludes self loops
	self []float64    // self-loop weight, counted once
	deg  []float64    // weighted degree, self loops counted twice
	m    float64      // total edge weight
}

func newGraph(n int, weights []map[int]float64) *graph {
	g := &graph{
		adj:  make([][]neighbor, n),
		self: make([]float64, n),
		deg:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		keys := make([]int, 0, len(weights[i]))
		for j := range weights[i] {
			keys = append(keys, j)
		}
		sort.Ints(keys)
		for _, j := range keys {
			w := weights[i][j]
			if j == i {
				g.self[i] += w
				g.deg[i] += 2 * w
				continue
			}
			g.adj[i] = append(g.adj[i], neighbor{to: j, w: w})
			g.deg[i] += w
		}
	}
	total := 0.0
	for _, d := range g.deg {
		total += d
	}
	g.m = total / 2
	return g
}

// Run partitions the graph made of nodes and edges. Edges that reference an
// unknown node, self loops, and non-positive or non-finite weights are
// ignored. Parallel edges are summed.
func Run(nodes []string, edges []Edge, opts Options) Result {
	res := Result{
		Communities: make(map[string]int, len(nodes)),
		Levels:      make(map[string][]int, len(nodes)),
	}
	if len(nodes) == 0 {
		return res
	}
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 100
	}

	index := make(map[string]int, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n]; dup {
			continue
		}
		index[n] = len(order)
		order = append(order, n)
	}

	weights := make([]map[int]float64, len(order))
	for i := range weights {
		weights[i] = map[int]float64{}
	}
	for _, e := range edges {
		if e.Weight <= 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			continue
		}
		a, okA := index[e.From]
		b, okB := index[e.To]
		if !okA || !okB || a == b {
			continue
		}
		weights[a][b] += e.Weight
		weights[b][a] += e.Weight
	}

	g := newGraph(len(order), weights)

	// membership[i] is the current super-node of original node i.
	membership := make([]int, len(order))
	for i := range membership {
		membership[i] = i
	}
	current := identity(len(order))
	quality := modularity(g, current)

	for level := 0; opts.MaxLevels == 0 || level < opts.MaxLevels; level++ {
		comm, moved := localMove(g, opts.MaxPasses)
		if !moved && level > 0 {
			break
		}
		comm, k := renumber(comm)
		q := modularity(g, comm)
		if level > 0 && q-quality <= opts.MinGain {
			break
		}
		quality = q
		for i := range membership {
			membership[i] = comm[membership[i]]
		}
		for i, name := range order {
			res.Levels[name] = append(res.Levels[name], membership[i])
		}
		res.LevelCount++
		if k == len(g.deg) {
			break
		}
		g = aggregate(g, comm, k)
	}

	for i, name := range order {
		res.Communities[name] = membership[i]
	}
	res.Modularity = quality
	return res
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// localMove runs modularity-gain sweeps until no node changes community.
func localMove(g *graph, maxPasses int) ([]int, bool) {
	n := len(g.deg)
	comm := identity(n)
	tot := make([]float64, n)
	copy(tot, g.deg)
	if g.m == 0 {
		return comm, false
	}
	twoM := 2 * g.m
	moved := false
	links := map[int]float64{}
	cands := make([]int, 0, 16)

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for i := 0; i < n; i++ {
			ci := comm[i]
			ki := g.deg[i]

			for k := range links {
				delete(links, k)
			}
			cands = cands[:0]
			for _, nb := range g.adj[i] {
				c := comm[nb.to]
				if _, ok := links[c]; !ok {
					cands = append(cands, c)
				}
				links[c] += nb.w
			}
			sort.Ints(cands)

			tot[ci] -= ki
			best := ci
			bestGain := links[ci] - tot[ci]*ki/twoM
			for _, c := range cands {
				if c == ci {
					continue
				}
				gain := links[c] - tot[c]*ki/twoM
				if gain > bestGain+1e-12 {
					best, bestGain = c, gain
				}
			}
			tot[best] += ki
			if best != ci {
				comm[i] = best
				changed = true
				moved = true
			}
		}
		if !changed {
			break
		}
	}
	return comm, moved
}

// renumber maps community ids onto 0..k-1 in order of first appearance.
func renumber(comm []int) ([]int, int) {
	ids := map[int]int{}
	out := make([]int, len(comm))
	for i, c := range comm {
		id, ok := ids[c]
		if !ok {
			id = len(ids)
			ids[c] = id
		}
		out[i] = id
	}
	return out, len(ids)
}

func aggregate(g *graph, comm []int, k int) *graph {
	weights := make([]map[int]float64, k)
	for i := range weights {
		weights[i] = map[int]float64{}
	}
	for i := range g.deg {
		ci := comm[i]
		weights[ci][ci] += g.self[i]
		for _, nb := range g.adj[i] {
			cj := comm[nb.to]
			if ci == cj {
				// Each internal edge is seen from both endpoints.
				weights[ci][ci] += nb.w / 2
				continue
			}
			weights[ci][cj] += nb.w
		}
	}
	return newGraph(k, weights)
}

// modularity computes Q = sum_c (in_c / m - (tot_c / 2m)^2).
func modularity(g *graph, comm []int) float64 {
	if g.m == 0 {
		return 0
	}
	in := map[int]float64{}
	tot := map[int]float64{}
	for i := range g.deg {
		c := comm[i]
		tot[c] += g.deg[i]
		in[c] += g.self[i]
		for _, nb := range g.adj[i] {
			if comm[nb.to] == c {
				in[c] += nb.w / 2
			}
		}
	}
	q := 0.0
	for c, t := range tot {
		q += in[c]/g.m - (t/(2*g.m))*(t/(2*g.m))
	}
	return q
}
