package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/cardname"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
	"github.com/yungbote/cardaffinity/internal/platform/neo4jdb"
)

const (
	// ProjectionName is the GDS in-memory graph used by community detection.
	ProjectionName = "card-affinity"

	writeChunk = 5000
)

// CardGraph is the Neo4j-backed card graph.
//
//	(:Card {card_id, name_front, full_name, legality_<format>, total_recurrences, community_id, community_levels})
//	(:Card)-[:CONNECTED {sync, dynamic_weight}]-(:Card)
//	(:Card)-[:BELONGS_TO]->(:CardCommunity {community_id, size})
//	(:User {uid})-[:HAS]->(:Pool {pool_id, name})-[:CONTAINS|IGNORE]->(:Card)
//	(:User)-[:OWNS]->(:Card)
//
// Community detection needs the Graph Data Science plugin.
type CardGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

var _ affinity.Store = (*CardGraph)(nil)

func NewCardGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger) (*CardGraph, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("neo4j card graph: missing client")
	}
	if log == nil {
		log = logger.NewNop()
	}
	g := &CardGraph{client: client, log: log.With("component", "Neo4jCardGraph")}
	g.ensureSchema(ctx)
	return g, nil
}

func (g *CardGraph) ensureSchema(ctx context.Context) {
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	// Best-effort; may fail for restricted users.
	for _, stmt := range []string{
		`CREATE CONSTRAINT card_id_unique IF NOT EXISTS FOR (c:Card) REQUIRE c.card_id IS UNIQUE`,
		`CREATE CONSTRAINT card_name_front_unique IF NOT EXISTS FOR (c:Card) REQUIRE c.name_front IS UNIQUE`,
		`CREATE INDEX card_full_name_key_idx IF NOT EXISTS FOR (c:Card) ON (c.full_name_key)`,
		`CREATE CONSTRAINT card_community_id_unique IF NOT EXISTS FOR (cc:CardCommunity) REQUIRE cc.community_id IS UNIQUE`,
		`CREATE CONSTRAINT pool_id_unique IF NOT EXISTS FOR (p:Pool) REQUIRE p.pool_id IS UNIQUE`,
		`CREATE CONSTRAINT user_uid_unique IF NOT EXISTS FOR (u:User) REQUIRE u.uid IS UNIQUE`,
	} {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			g.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (g *CardGraph) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (c:Card {card_id: $id}) RETURN c`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, affinity.ErrCardNotFound
		}
		node, ok := res.Record().Values[0].(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected card value %T", res.Record().Values[0])
		}
		c := cardFromProps(node.Props)
		return &c, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*domain.Card), nil
}

func (g *CardGraph) ResolveCardKeys(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $keys AS k
OPTIONAL MATCH (f:Card {name_front: k})
OPTIONAL MATCH (g:Card {full_name_key: k})
WITH k, coalesce(f, g) AS c
WHERE c IS NOT NULL
RETURN k AS key, head(collect(c.card_id)) AS card_id
`, map[string]any{"keys": keys})
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			rec := res.Record()
			key, id := recString(rec, "key"), recString(rec, "card_id")
			if key != "" && id != "" {
				out[key] = id
			}
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j resolve card keys: %w", err)
	}
	return out, nil
}

func (g *CardGraph) UpsertCards(ctx context.Context, cards []domain.Card) (int, error) {
	rows := make([]map[string]any, 0, len(cards))
	for _, c := range cards {
		if c.NameFront == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"card_id":    c.ID,
			"name_front": c.NameFront,
			"props":      cardProps(c),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	n, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		total := 0
		for _, chunk := range chunks(rows, writeChunk) {
			res, err := tx.Run(ctx, `
UNWIND $cards AS c
MERGE (n:Card {name_front: c.name_front})
ON CREATE SET n.card_id = CASE WHEN c.card_id = '' THEN randomUUID() ELSE c.card_id END,
              n.total_recurrences = 0
SET n += c.props
RETURN count(n) AS upserted
`, map[string]any{"cards": chunk})
			if err != nil {
				return nil, err
			}
			rec, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}
			total += int(recInt(rec, "upserted"))
		}
		return total, nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j upsert cards: %w", err)
	}
	return n.(int), nil
}

// UpsertEdges writes every delta in one transaction. Deltas arrive sorted by
// pair so concurrent batches take edge locks in the same order.
func (g *CardGraph) UpsertEdges(ctx context.Context, deltas []domain.EdgeDelta) (int, error) {
	rows := make([]map[string]any, 0, len(deltas))
	for _, d := range deltas {
		if d.A == "" || d.B == "" || d.A == d.B || d.Delta <= 0 {
			continue
		}
		a, b := domain.PairKey(d.A, d.B)
		rows = append(rows, map[string]any{"a": a, "b": b, "delta": d.Delta})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	n, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		applied := 0
		for _, chunk := range chunks(rows, writeChunk) {
			res, err := tx.Run(ctx, `
UNWIND $pairs AS p
MATCH (a:Card {card_id: p.a})
MATCH (b:Card {card_id: p.b})
WHERE a <> b
MERGE (a)-[r:CONNECTED]-(b)
ON CREATE SET r.sync = p.delta, r.dynamic_weight = 0.0
ON MATCH SET r.sync = coalesce(r.sync, 0) + p.delta
RETURN count(r) AS applied
`, map[string]any{"pairs": chunk})
			if err != nil {
				return nil, err
			}
			rec, err := res.Single(ctx)
			if err != nil {
				return nil, err
			}
			applied += int(recInt(rec, "applied"))
		}
		return applied, nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j upsert edges: %w", err)
	}
	return n.(int), nil
}

func (g *CardGraph) DeleteSelfLoops(ctx context.Context) (int64, error) {
	n, err := g.writeCount(ctx, `
MATCH (c:Card)-[r:CONNECTED]->(c)
DELETE r
RETURN count(*) AS n
`, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j delete self loops: %w", err)
	}
	return n, nil
}

func (g *CardGraph) ClearEdges(ctx context.Context) (int64, error) {
	n, err := g.writeCount(ctx, `
MATCH (:Card)-[r:CONNECTED]->(:Card)
DELETE r
RETURN count(*) AS n
`, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j clear edges: %w", err)
	}
	return n, nil
}

// RecomputeTotalRecurrences aggregates every card's incident sync before any
// total is written, in a single statement.
func (g *CardGraph) RecomputeTotalRecurrences(ctx context.Context) error {
	_, err := g.writeCount(ctx, `
MATCH (c:Card)
OPTIONAL MATCH (c)-[r:CONNECTED]-(o:Card)
WHERE o <> c
WITH c, coalesce(sum(r.sync), 0) AS total
SET c.total_recurrences = total
RETURN count(c) AS n
`, nil)
	if err != nil {
		return fmt.Errorf("neo4j total recurrences: %w", err)
	}
	return nil
}

// WriteDynamicWeights reads every edge with its endpoint totals, applies the
// policy and writes the weights back, all inside one transaction.
func (g *CardGraph) WriteDynamicWeights(ctx context.Context, policy affinity.WeightPolicy) (int64, error) {
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	n, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Card)-[r:CONNECTED]->(b:Card)
RETURN elementId(r) AS rid,
       coalesce(r.sync, 0) AS sync,
       coalesce(a.total_recurrences, 0) AS ta,
       coalesce(b.total_recurrences, 0) AS tb
`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			w := affinity.ApplyPolicy(policy, recInt(rec, "sync"), recInt(rec, "ta"), recInt(rec, "tb"))
			rows = append(rows, map[string]any{"rid": recString(rec, "rid"), "w": w})
		}
		for _, chunk := range chunks(rows, writeChunk) {
			res, err := tx.Run(ctx, `
UNWIND $rows AS row
MATCH ()-[r:CONNECTED]->()
WHERE elementId(r) = row.rid
SET r.dynamic_weight = row.w
`, map[string]any{"rows": chunk})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return int64(len(rows)), nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j dynamic weights: %w", err)
	}
	return n.(int64), nil
}

// RunPartitioning projects the card graph, streams Louvain with intermediate
// communities and drops the projection. Nothing is written to the database.
func (g *CardGraph) RunPartitioning(ctx context.Context, weightProperty string) (domain.Assignment, error) {
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	dropProjection := func(ctx context.Context) error {
		res, err := session.Run(ctx, `CALL gds.graph.drop($name, false) YIELD graphName RETURN graphName`, map[string]any{"name": ProjectionName})
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	}
	if err := dropProjection(ctx); err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: drop stale projection: %w", err)
	}

	res, err := session.Run(ctx, `
CALL gds.graph.project($name, 'Card', {
  CONNECTED: {
    orientation: 'UNDIRECTED',
    properties: {weight: {property: $weight, defaultValue: 0.0}}
  }
})
YIELD nodeCount, relationshipCount
RETURN nodeCount, relationshipCount
`, map[string]any{"name": ProjectionName, "weight": weightProperty})
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: project: %w", err)
	}
	proj, err := res.Single(ctx)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: project: %w", err)
	}
	defer func() {
		if err := dropProjection(context.WithoutCancel(ctx)); err != nil {
			g.log.Warn("gds projection drop failed", "projection", ProjectionName, "error", err)
		}
	}()
	g.log.Debug("gds projection created",
		"nodes", recInt(proj, "nodeCount"),
		"relationships", recInt(proj, "relationshipCount"),
	)

	config := map[string]any{
		"relationshipWeightProperty":     "weight",
		"includeIntermediateCommunities": true,
		"concurrency":                    1,
	}
	res, err = session.Run(ctx, `
CALL gds.louvain.stream($name, $config)
YIELD nodeId, communityId, intermediateCommunityIds
RETURN gds.util.asNode(nodeId).card_id AS card_id,
       communityId AS community_id,
       intermediateCommunityIds AS levels
`, map[string]any{"name": ProjectionName, "config": config})
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: louvain stream: %w", err)
	}
	var out domain.Assignment
	for res.Next(ctx) {
		rec := res.Record()
		id := recString(rec, "card_id")
		if id == "" {
			continue
		}
		m := domain.CommunityMembership{CardID: id, CommunityID: recInt(rec, "community_id")}
		if raw, ok := rec.Get("levels"); ok {
			m.Levels = int64List(raw)
		}
		if n := len(m.Levels); n == 0 || m.Levels[n-1] != m.CommunityID {
			m.Levels = append(m.Levels, m.CommunityID)
		}
		out.Members = append(out.Members, m)
	}
	if err := res.Err(); err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: louvain stream: %w", err)
	}

	delete(config, "includeIntermediateCommunities")
	res, err = session.Run(ctx, `
CALL gds.louvain.stats($name, $config)
YIELD modularity
RETURN modularity
`, map[string]any{"name": ProjectionName, "config": config})
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: louvain stats: %w", err)
	}
	stats, err := res.Single(ctx)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("neo4j partition: louvain stats: %w", err)
	}
	out.Modularity = recFloat(stats, "modularity")
	return out, nil
}

// ReplaceCommunities clears every CardCommunity and card community property
// and writes assignment, in one transaction.
func (g *CardGraph) ReplaceCommunities(ctx context.Context, assignment domain.Assignment) error {
	sizes := map[int64]int64{}
	members := make([]map[string]any, 0, len(assignment.Members))
	for _, m := range assignment.Members {
		sizes[m.CommunityID]++
		members = append(members, map[string]any{
			"card_id":      m.CardID,
			"community_id": m.CommunityID,
			"levels":       m.Levels,
		})
	}
	communities := make([]map[string]any, 0, len(sizes))
	for id, size := range sizes {
		communities = append(communities, map[string]any{"community_id": id, "size": size})
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := consume(ctx, tx, `MATCH (cc:CardCommunity) DETACH DELETE cc`, nil); err != nil {
			return nil, err
		}
		if err := consume(ctx, tx, `
MATCH (c:Card)
WHERE c.community_id IS NOT NULL OR c.community_levels IS NOT NULL
REMOVE c.community_id, c.community_levels
`, nil); err != nil {
			return nil, err
		}
		for _, chunk := range chunks(communities, writeChunk) {
			if err := consume(ctx, tx, `
UNWIND $communities AS cc
CREATE (:CardCommunity {community_id: cc.community_id, size: cc.size})
`, map[string]any{"communities": chunk}); err != nil {
				return nil, err
			}
		}
		for _, chunk := range chunks(members, writeChunk) {
			if err := consume(ctx, tx, `
UNWIND $members AS m
MATCH (c:Card {card_id: m.card_id})
MATCH (cc:CardCommunity {community_id: m.community_id})
SET c.community_id = m.community_id,
    c.community_levels = m.levels
CREATE (c)-[:BELONGS_TO]->(cc)
`, map[string]any{"members": chunk}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j replace communities: %w", err)
	}
	return nil
}

func (g *CardGraph) LoadPool(ctx context.Context, ownerID string, poolID uuid.UUID) (*domain.Pool, error) {
	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:User {uid: $owner})-[:HAS]->(p:Pool {pool_id: $pool})
OPTIONAL MATCH (p)-[:CONTAINS]->(c:Card)
WITH p, collect(c) AS cards
OPTIONAL MATCH (p)-[:IGNORE]->(i:Card)
RETURN p.name AS name, cards, collect(i.card_id) AS ignored
`, map[string]any{"owner": ownerID, "pool": poolID.String()})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, affinity.ErrPoolNotFound
		}
		rec := res.Record()
		pool := &domain.Pool{ID: poolID, OwnerID: ownerID, Name: recString(rec, "name")}
		if raw, ok := rec.Get("cards"); ok {
			for _, v := range asList(raw) {
				if node, ok := v.(neo4j.Node); ok {
					pool.Cards = append(pool.Cards, cardFromProps(node.Props))
				}
			}
		}
		if raw, ok := rec.Get("ignored"); ok {
			pool.Ignored = stringList(raw)
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*domain.Pool), nil
}

func (g *CardGraph) CollectionCardIDs(ctx context.Context, ownerID string) ([]string, error) {
	ids, err := g.readStrings(ctx, `
MATCH (:User {uid: $owner})-[:OWNS]->(c:Card)
RETURN c.card_id AS card_id
`, map[string]any{"owner": ownerID}, "card_id")
	if err != nil {
		return nil, fmt.Errorf("neo4j collection: %w", err)
	}
	return ids, nil
}

func (g *CardGraph) CandidatesConnectedTo(ctx context.Context, cardIDs []string, excludeIDs []string) ([]domain.CandidateEdge, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}
	exclude := append(append([]string(nil), cardIDs...), excludeIDs...)

	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (p:Card)-[r:CONNECTED]-(c:Card)
WHERE p.card_id IN $cards AND NOT c.card_id IN $exclude
RETURN c AS candidate, p.card_id AS pool_card_id, coalesce(r.dynamic_weight, 0.0) AS weight
`, map[string]any{"cards": cardIDs, "exclude": exclude})
		if err != nil {
			return nil, err
		}
		var edges []domain.CandidateEdge
		for res.Next(ctx) {
			rec := res.Record()
			raw, _ := rec.Get("candidate")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			edges = append(edges, domain.CandidateEdge{
				Candidate:  cardFromProps(node.Props),
				PoolCardID: recString(rec, "pool_card_id"),
				Weight:     recFloat(rec, "weight"),
			})
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j candidates: %w", err)
	}
	return out.([]domain.CandidateEdge), nil
}

// SavePool creates or replaces a pool's CONTAINS and IGNORE sets.
func (g *CardGraph) SavePool(ctx context.Context, ownerID string, poolID uuid.UUID, name string, cardIDs, ignoredIDs []string) error {
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{
			"owner":   ownerID,
			"pool":    poolID.String(),
			"name":    name,
			"cards":   cardIDs,
			"ignored": ignoredIDs,
		}
		if err := consume(ctx, tx, `
MERGE (u:User {uid: $owner})
MERGE (p:Pool {pool_id: $pool})
SET p.name = $name
MERGE (u)-[:HAS]->(p)
WITH p
OPTIONAL MATCH (p)-[r:CONTAINS|IGNORE]->(:Card)
DELETE r
`, params); err != nil {
			return nil, err
		}
		return nil, consume(ctx, tx, `
MATCH (p:Pool {pool_id: $pool})
CALL {
  WITH p
  UNWIND $cards AS cid
  MATCH (c:Card {card_id: cid})
  MERGE (p)-[:CONTAINS]->(c)
}
CALL {
  WITH p
  UNWIND $ignored AS cid
  MATCH (c:Card {card_id: cid})
  MERGE (p)-[:IGNORE]->(c)
}
`, params)
	})
	if err != nil {
		return fmt.Errorf("neo4j save pool: %w", err)
	}
	return nil
}

func (g *CardGraph) AddOwned(ctx context.Context, ownerID string, cardIDs ...string) error {
	_, err := g.writeCount(ctx, `
MERGE (u:User {uid: $owner})
WITH u
UNWIND $cards AS cid
MATCH (c:Card {card_id: cid})
MERGE (u)-[:OWNS]->(c)
RETURN count(*) AS n
`, map[string]any{"owner": ownerID, "cards": cardIDs})
	if err != nil {
		return fmt.Errorf("neo4j add owned: %w", err)
	}
	return nil
}

func (g *CardGraph) writeCount(ctx context.Context, cypher string, params map[string]any) (int64, error) {
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	n, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return recInt(rec, "n"), nil
	})
	if err != nil {
		return 0, err
	}
	return n.(int64), nil
}

func (g *CardGraph) readStrings(ctx context.Context, cypher string, params map[string]any, key string) ([]string, error) {
	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		var vals []string
		for res.Next(ctx) {
			if v := recString(res.Record(), key); v != "" {
				vals = append(vals, v)
			}
		}
		return vals, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

func consume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func chunks[T any](rows []T, size int) [][]T {
	var out [][]T
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}

func cardProps(c domain.Card) map[string]any {
	props := map[string]any{
		"name_back":     c.NameBack,
		"full_name":     c.FullName,
		"full_name_key": cardname.Normalize(c.FullName),
		"colors":        nonNilStrings(c.Colors),
		"mana_cost":     c.ManaCost,
		"cmc":           c.ManaValue,
		"types":         nonNilStrings(c.Types),
		"type_line":     c.TypeLine,
		"rarity":        c.Rarity,
		"keywords":      nonNilStrings(c.Keywords),
		"price_usd":     nil,
	}
	if c.PriceUSD != nil && !math.IsNaN(*c.PriceUSD) {
		props["price_usd"] = *c.PriceUSD
	}
	for _, f := range domain.Formats {
		props["legality_"+f] = c.LegalIn(f)
	}
	return props
}

func cardFromProps(p map[string]any) domain.Card {
	c := domain.Card{
		ID:               propString(p, "card_id"),
		NameFront:        propString(p, "name_front"),
		NameBack:         propString(p, "name_back"),
		FullName:         propString(p, "full_name"),
		Colors:           stringList(p["colors"]),
		ManaCost:         propString(p, "mana_cost"),
		ManaValue:        toFloat(p["cmc"]),
		Types:            stringList(p["types"]),
		TypeLine:         propString(p, "type_line"),
		Rarity:           propString(p, "rarity"),
		Keywords:         stringList(p["keywords"]),
		TotalRecurrences: toInt(p["total_recurrences"]),
		Legalities:       map[string]bool{},
	}
	if v, ok := p["price_usd"]; ok && v != nil {
		price := toFloat(v)
		c.PriceUSD = &price
	}
	if v, ok := p["community_id"]; ok && v != nil {
		id := toInt(v)
		c.CommunityID = &id
	}
	if v, ok := p["community_levels"]; ok {
		c.CommunityLevels = int64List(v)
	}
	for _, f := range domain.Formats {
		if b, ok := p["legality_"+f].(bool); ok && b {
			c.Legalities[f] = true
		}
	}
	return c
}

func recString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recInt(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	return toInt(v)
}

func recFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	return toFloat(v)
}

func propString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func toInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func stringList(v any) []string {
	var out []string
	for _, x := range asList(v) {
		if s, ok := x.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func int64List(v any) []int64 {
	var out []int64
	for _, x := range asList(v) {
		out = append(out, toInt(x))
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
