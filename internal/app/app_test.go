package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/cardaffinity/internal/data/db"
	"github.com/yungbote/cardaffinity/internal/data/memgraph"
	"github.com/yungbote/cardaffinity/internal/domain"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
	"github.com/yungbote/cardaffinity/internal/platform/neo4jdb"
)

func testConfig() Config {
	cfg := LoadConfig()
	cfg.GraphStore = GraphStoreMemory
	cfg.Neo4j = neo4jdb.Config{}
	cfg.ArchiveEnabled = true
	cfg.DB = db.Config{Driver: db.DriverSQLite, DSN: ":memory:"}
	cfg.Redis.Addr = ""
	cfg.MetricsEnabled = false
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GRAPH_STORE", "")
	t.Setenv("WEIGHT_POLICY", "")
	t.Setenv("INGEST_CONCURRENCY", "8")
	cfg := LoadConfig()
	if cfg.WeightPolicy != "sqrt" {
		t.Fatalf("weight policy = %q, want sqrt", cfg.WeightPolicy)
	}
	if cfg.Aggregator.Concurrency != 8 || cfg.Aggregator.MaxAttempts != 3 {
		t.Fatalf("aggregator = %+v", cfg.Aggregator)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Fatalf("breaker = %+v", cfg.Breaker)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown policy", func(c *Config) { c.WeightPolicy = "log" }, false},
		{"unknown graph store", func(c *Config) { c.GraphStore = "dynamo" }, false},
		{"metrics without addr", func(c *Config) { c.MetricsEnabled, c.MetricsAddr = true, "" }, false},
		{"archive with bad driver", func(c *Config) { c.DB.Driver = "mysql" }, false},
		{"bad driver ignored without archive", func(c *Config) { c.ArchiveEnabled, c.DB.Driver = false, "mysql" }, true},
		{"zero concurrency", func(c *Config) { c.Aggregator.Concurrency = 0 }, false},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: Validate() = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestEffectiveGraphMode(t *testing.T) {
	cfg := testConfig()
	cfg.GraphStore = ""
	if got := effectiveGraphMode(cfg); got != GraphStoreMemory {
		t.Fatalf("mode without uri = %q", got)
	}
	cfg.Neo4j.URI = "neo4j://localhost:7687"
	if got := effectiveGraphMode(cfg); got != GraphStoreNeo4j {
		t.Fatalf("mode with uri = %q", got)
	}
	cfg.GraphStore = "MEMORY"
	if got := effectiveGraphMode(cfg); got != GraphStoreMemory {
		t.Fatalf("explicit mode = %q", got)
	}
}

func TestResolveGraphStoreErrors(t *testing.T) {
	log := logger.NewNop()
	cfg := testConfig()
	cfg.GraphStore = GraphStoreNeo4j
	_, err := resolveGraphStore(context.Background(), log, cfg)
	if code := graphProviderBootstrapErrorCode(err); code != GraphProviderBootstrapErrorMissingURI {
		t.Fatalf("missing uri code = %q (%v)", code, err)
	}

	orig := newNeo4jClient
	t.Cleanup(func() { newNeo4jClient = orig })
	newNeo4jClient = func(neo4jdb.Config, *logger.Logger) (*neo4jdb.Client, error) {
		return nil, errors.New("connection refused")
	}
	cfg.Neo4j.URI = "neo4j://localhost:7687"
	_, err = resolveGraphStore(context.Background(), log, cfg)
	var bootErr *GraphProviderBootstrapError
	if !errors.As(err, &bootErr) || bootErr.Code != GraphProviderBootstrapErrorConnectFailed {
		t.Fatalf("connect error = %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("cause lost: %v", err)
	}

	cfg.GraphStore = "dynamo"
	_, err = resolveGraphStore(context.Background(), log, cfg)
	if code := graphProviderBootstrapErrorCode(err); code != GraphProviderBootstrapErrorInvalidMode {
		t.Fatalf("invalid mode code = %q", code)
	}
}

func TestNewWithConfigServesSuggestions(t *testing.T) {
	ctx := context.Background()
	a, err := NewWithConfig(ctx, testConfig(), nil)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close(ctx)

	if _, err := a.Engine.LoadCatalog(ctx, []domain.Card{
		{ID: "a", NameFront: "ALPHA", FullName: "ALPHA"},
		{ID: "b", NameFront: "BRAVO", FullName: "BRAVO"},
		{ID: "c", NameFront: "CHARLIE", FullName: "CHARLIE"},
	}); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	batch := domain.DecklistBatch{ID: "batch-1", Source: "test", Decklists: []domain.Decklist{
		{Name: "d1", Cards: []string{"Alpha", "Bravo", "Charlie"}},
	}}
	if _, err := a.Engine.IngestDecklists(ctx, []domain.DecklistBatch{batch}); err != nil {
		t.Fatalf("IngestDecklists: %v", err)
	}
	rep, err := a.Engine.IngestDecklists(ctx, []domain.DecklistBatch{batch})
	if err != nil {
		t.Fatalf("second IngestDecklists: %v", err)
	}
	if rep.Occurrences() != 0 {
		t.Fatalf("archived batch applied twice: %+v", rep)
	}
	if _, err := a.Engine.RenormalizeWeights(ctx); err != nil {
		t.Fatalf("RenormalizeWeights: %v", err)
	}

	mem := a.Graph.(*memgraph.Store)
	if e, ok := mem.Edge("a", "b"); !ok || e.Sync != 1 {
		t.Fatalf("edge a-b = %+v, %v", e, ok)
	}
	rec, err := a.Archive.Get(ctx, "batch-1")
	if err != nil || rec.Status != domain.BatchStatusDone {
		t.Fatalf("archived batch = %+v, %v", rec, err)
	}
}
