// Package memgraph is an in-memory card graph. It backs local runs and tests
// and behaves like the Neo4j store: every call is atomic and readers never see
// a partial write.
package memgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/cardname"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/louvain"
)

type edge struct {
	sync   int64
	weight float64
}

type pool struct {
	owner   string
	name    string
	cards   []string
	ignored []string
}

type Store struct {
	mu sync.RWMutex

	cards map[string]*domain.Card
	// keys maps name_front and normalized full_name to a card id.
	keys  map[string]string
	edges map[[2]string]*edge
	pools map[uuid.UUID]*pool
	owned map[string]map[string]struct{}

	nextID int
	faults map[string][]error
}

var _ affinity.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		cards:  map[string]*domain.Card{},
		keys:   map[string]string{},
		edges:  map[[2]string]*edge{},
		pools:  map[uuid.UUID]*pool{},
		owned:  map[string]map[string]struct{}{},
		faults: map[string][]error{},
	}
}

// FailNext makes the next len(errs) calls of op return errs in order. op is
// the Store method name.
func (s *Store) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// fault pops the next injected error for op. Callers hold mu.
func (s *Store) fault(op string) error {
	q := s.faults[op]
	if len(q) == 0 {
		return nil
	}
	s.faults[op] = q[1:]
	return q[0]
}

func (s *Store) rfault(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault(op)
}

// PutPool creates or replaces a pool owned by ownerID.
func (s *Store) PutPool(ownerID string, poolID uuid.UUID, name string, cardIDs, ignoredIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[poolID] = &pool{
		owner:   ownerID,
		name:    name,
		cards:   append([]string(nil), cardIDs...),
		ignored: append([]string(nil), ignoredIDs...),
	}
}

func (s *Store) AddOwned(ownerID string, cardIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.owned[ownerID]
	if !ok {
		set = map[string]struct{}{}
		s.owned[ownerID] = set
	}
	for _, id := range cardIDs {
		set[id] = struct{}{}
	}
}

// PutEdge writes an edge as-is, self loops included.
func (s *Store) PutEdge(e domain.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, b := domain.PairKey(e.A, e.B)
	s.edges[[2]string{a, b}] = &edge{sync: e.Sync, weight: e.DynamicWeight}
}

func (s *Store) Edge(a, b string) (domain.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, b = domain.PairKey(a, b)
	e, ok := s.edges[[2]string{a, b}]
	if !ok {
		return domain.Edge{}, false
	}
	return domain.Edge{A: a, B: b, Sync: e.sync, DynamicWeight: e.weight}, true
}

// Edges returns every edge ordered by endpoints.
func (s *Store) Edges() []domain.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Edge, 0, len(s.edges))
	for k, e := range s.edges {
		out = append(out, domain.Edge{A: k[0], B: k[1], Sync: e.sync, DynamicWeight: e.weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func (s *Store) Cards() []domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, copyCard(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.rfault("GetCard"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, affinity.ErrCardNotFound
	}
	out := copyCard(c)
	return &out, nil
}

func (s *Store) ResolveCardKeys(ctx context.Context, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.rfault("ResolveCardKeys"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if id, ok := s.keys[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func (s *Store) UpsertCards(ctx context.Context, cards []domain.Card) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertCards"); err != nil {
		return 0, err
	}
	n := 0
	for _, in := range cards {
		if in.NameFront == "" {
			continue
		}
		c := copyCard(&in)
		id, exists := s.keys[c.NameFront]
		if exists {
			prev := s.cards[id]
			c.ID = id
			c.TotalRecurrences = prev.TotalRecurrences
			c.CommunityID = prev.CommunityID
			c.CommunityLevels = prev.CommunityLevels
		} else if c.ID == "" {
			s.nextID++
			c.ID = fmt.Sprintf("card-%06d", s.nextID)
		}
		s.cards[c.ID] = &c
		s.keys[c.NameFront] = c.ID
		if full := cardname.Normalize(c.FullName); full != "" {
			s.keys[full] = c.ID
		}
		n++
	}
	return n, nil
}

func (s *Store) UpsertEdges(ctx context.Context, deltas []domain.EdgeDelta) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertEdges"); err != nil {
		return 0, err
	}
	applied := 0
	for _, d := range deltas {
		if d.A == d.B || d.Delta <= 0 {
			continue
		}
		if s.cards[d.A] == nil || s.cards[d.B] == nil {
			continue
		}
		a, b := domain.PairKey(d.A, d.B)
		k := [2]string{a, b}
		if e, ok := s.edges[k]; ok {
			e.sync += d.Delta
		} else {
			s.edges[k] = &edge{sync: d.Delta}
		}
		applied++
	}
	return applied, nil
}

func (s *Store) DeleteSelfLoops(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeleteSelfLoops"); err != nil {
		return 0, err
	}
	var n int64
	for k := range s.edges {
		if k[0] == k[1] {
			delete(s.edges, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearEdges(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ClearEdges"); err != nil {
		return 0, err
	}
	n := int64(len(s.edges))
	s.edges = map[[2]string]*edge{}
	return n, nil
}

func (s *Store) RecomputeTotalRecurrences(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("RecomputeTotalRecurrences"); err != nil {
		return err
	}
	totals := make(map[string]int64, len(s.cards))
	for k, e := range s.edges {
		totals[k[0]] += e.sync
		if k[0] != k[1] {
			totals[k[1]] += e.sync
		}
	}
	for id, c := range s.cards {
		c.TotalRecurrences = totals[id]
	}
	return nil
}

func (s *Store) WriteDynamicWeights(ctx context.Context, policy affinity.WeightPolicy) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("WriteDynamicWeights"); err != nil {
		return 0, err
	}
	var n int64
	for k, e := range s.edges {
		var ta, tb int64
		if c := s.cards[k[0]]; c != nil {
			ta = c.TotalRecurrences
		}
		if c := s.cards[k[1]]; c != nil {
			tb = c.TotalRecurrences
		}
		e.weight = affinity.ApplyPolicy(policy, e.sync, ta, tb)
		n++
	}
	return n, nil
}

func (s *Store) RunPartitioning(ctx context.Context, weightProperty string) (domain.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Assignment{}, err
	}
	if err := s.rfault("RunPartitioning"); err != nil {
		return domain.Assignment{}, err
	}

	s.mu.RLock()
	nodes := make([]string, 0, len(s.cards))
	for id := range s.cards {
		nodes = append(nodes, id)
	}
	edges := make([]louvain.Edge, 0, len(s.edges))
	for k, e := range s.edges {
		w := e.weight
		if weightProperty == "sync" {
			w = float64(e.sync)
		}
		edges = append(edges, louvain.Edge{From: k[0], To: k[1], Weight: w})
	}
	s.mu.RUnlock()

	sort.Strings(nodes)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	res := louvain.Run(nodes, edges, louvain.Options{})
	out := domain.Assignment{
		Members:    make([]domain.CommunityMembership, 0, len(nodes)),
		Modularity: res.Modularity,
	}
	for _, id := range nodes {
		levels := make([]int64, 0, len(res.Levels[id]))
		for _, l := range res.Levels[id] {
			levels = append(levels, int64(l))
		}
		out.Members = append(out.Members, domain.CommunityMembership{
			CardID:      id,
			CommunityID: int64(res.Communities[id]),
			Levels:      levels,
		})
	}
	return out, nil
}

func (s *Store) ReplaceCommunities(ctx context.Context, assignment domain.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ReplaceCommunities"); err != nil {
		return err
	}
	for _, c := range s.cards {
		c.CommunityID = nil
		c.CommunityLevels = nil
	}
	for _, m := range assignment.Members {
		c := s.cards[m.CardID]
		if c == nil {
			continue
		}
		id := m.CommunityID
		c.CommunityID = &id
		c.CommunityLevels = append([]int64(nil), m.Levels...)
	}
	return nil
}

func (s *Store) LoadPool(ctx context.Context, ownerID string, poolID uuid.UUID) (*domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.rfault("LoadPool"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[poolID]
	if !ok || p.owner != ownerID {
		return nil, affinity.ErrPoolNotFound
	}
	out := &domain.Pool{
		ID:      poolID,
		OwnerID: ownerID,
		Name:    p.name,
		Cards:   make([]domain.Card, 0, len(p.cards)),
		Ignored: append([]string(nil), p.ignored...),
	}
	for _, id := range p.cards {
		if c, ok := s.cards[id]; ok {
			out.Cards = append(out.Cards, copyCard(c))
		}
	}
	return out, nil
}

func (s *Store) CollectionCardIDs(ctx context.Context, ownerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.rfault("CollectionCardIDs"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.owned[ownerID]))
	for id := range s.owned[ownerID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CandidatesConnectedTo(ctx context.Context, cardIDs []string, excludeIDs []string) ([]domain.CandidateEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.rfault("CandidatesConnectedTo"); err != nil {
		return nil, err
	}
	in := make(map[string]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		in[id] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(cardIDs)+len(excludeIDs))
	for _, id := range cardIDs {
		excluded[id] = struct{}{}
	}
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CandidateEdge
	for k, e := range s.edges {
		for _, dir := range [2][2]string{{k[0], k[1]}, {k[1], k[0]}} {
			poolSide, other := dir[0], dir[1]
			if _, ok := in[poolSide]; !ok {
				continue
			}
			if _, ok := excluded[other]; ok {
				continue
			}
			c, ok := s.cards[other]
			if !ok {
				continue
			}
			out = append(out, domain.CandidateEdge{Candidate: copyCard(c), PoolCardID: poolSide, Weight: e.weight})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Candidate.ID != out[j].Candidate.ID {
			return out[i].Candidate.ID < out[j].Candidate.ID
		}
		return out[i].PoolCardID < out[j].PoolCardID
	})
	return out, nil
}

func copyCard(c *domain.Card) domain.Card {
	out := *c
	out.Colors = append([]string(nil), c.Colors...)
	out.Types = append([]string(nil), c.Types...)
	out.Keywords = append([]string(nil), c.Keywords...)
	out.CommunityLevels = append([]int64(nil), c.CommunityLevels...)
	if c.PriceUSD != nil {
		p := *c.PriceUSD
		out.PriceUSD = &p
	}
	if c.CommunityID != nil {
		id := *c.CommunityID
		out.CommunityID = &id
	}
	if c.Legalities != nil {
		out.Legalities = make(map[string]bool, len(c.Legalities))
		for k, v := range c.Legalities {
			out.Legalities[k] = v
		}
	}
	return out
}
