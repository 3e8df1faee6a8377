package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/data/graph"
	"github.com/yungbote/cardaffinity/internal/data/memgraph"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
	"github.com/yungbote/cardaffinity/internal/platform/neo4jdb"
)

type GraphStoreMode string

const (
	GraphStoreNeo4j  GraphStoreMode = "neo4j"
	GraphStoreMemory GraphStoreMode = "memory"
)

var (
	newNeo4jClient = neo4jdb.New
	newCardGraph   = func(ctx context.Context, client *neo4jdb.Client, log *logger.Logger) (affinity.Store, error) {
		return graph.NewCardGraph(ctx, client, log)
	}
)

type GraphProviderBootstrapErrorCode string

const (
	GraphProviderBootstrapErrorInvalidMode   GraphProviderBootstrapErrorCode = "invalid_mode"
	GraphProviderBootstrapErrorMissingURI    GraphProviderBootstrapErrorCode = "missing_uri"
	GraphProviderBootstrapErrorConnectFailed GraphProviderBootstrapErrorCode = "connect_failed"
	GraphProviderBootstrapErrorInitFailed    GraphProviderBootstrapErrorCode = "init_failed"
)

type GraphProviderBootstrapError struct {
	Code  GraphProviderBootstrapErrorCode
	Mode  string
	URI   string
	Cause error
}

func (e *GraphProviderBootstrapError) Error() string {
	if e == nil {
		return "graph store bootstrap failed"
	}
	return fmt.Sprintf("graph store bootstrap failed (code=%s mode=%q uri=%q): %v", e.Code, e.Mode, e.URI, e.Cause)
}

func (e *GraphProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// graphStore is the resolved backend together with whatever must be closed
// on shutdown.
type graphStore struct {
	Store affinity.Store
	Mode  GraphStoreMode
	close func(context.Context) error
}

func (g graphStore) Close(ctx context.Context) error {
	if g.close == nil {
		return nil
	}
	return g.close(ctx)
}

// effectiveGraphMode resolves an empty mode from the Neo4j URI.
func effectiveGraphMode(cfg Config) GraphStoreMode {
	mode := GraphStoreMode(strings.ToLower(strings.TrimSpace(string(cfg.GraphStore))))
	if mode != "" {
		return mode
	}
	if strings.TrimSpace(cfg.Neo4j.URI) != "" {
		return GraphStoreNeo4j
	}
	return GraphStoreMemory
}

func resolveGraphStore(ctx context.Context, log *logger.Logger, cfg Config) (graphStore, error) {
	mode := effectiveGraphMode(cfg)
	uri := strings.TrimSpace(cfg.Neo4j.URI)

	switch mode {
	case GraphStoreMemory:
		log.Warn("Using in-memory card graph; nothing is persisted", "mode", mode)
		return graphStore{Store: memgraph.New(), Mode: mode}, nil
	case GraphStoreNeo4j:
	default:
		err := &GraphProviderBootstrapError{
			Code:  GraphProviderBootstrapErrorInvalidMode,
			Mode:  string(mode),
			Cause: fmt.Errorf("unsupported graph store %q", mode),
		}
		log.Error("Graph store selection failed", "mode", mode, "error_code", err.Code, "error", err)
		return graphStore{}, err
	}

	if uri == "" {
		err := &GraphProviderBootstrapError{
			Code:  GraphProviderBootstrapErrorMissingURI,
			Mode:  string(mode),
			Cause: errors.New("NEO4J_URI is empty"),
		}
		log.Error("Graph store selection failed", "mode", mode, "error_code", err.Code, "error", err)
		return graphStore{}, err
	}

	log.Info("Selecting graph store", "mode", mode, "uri", uri, "database", cfg.Neo4j.Database)
	client, err := newNeo4jClient(cfg.Neo4j, log)
	if err != nil {
		err := &GraphProviderBootstrapError{Code: GraphProviderBootstrapErrorConnectFailed, Mode: string(mode), URI: uri, Cause: err}
		log.Error("Graph store bootstrap failed", "mode", mode, "uri", uri, "error_code", err.Code, "error", err)
		return graphStore{}, err
	}
	store, err := newCardGraph(ctx, client, log)
	if err != nil {
		_ = client.Close(ctx)
		err := &GraphProviderBootstrapError{Code: GraphProviderBootstrapErrorInitFailed, Mode: string(mode), URI: uri, Cause: err}
		log.Error("Graph store bootstrap failed", "mode", mode, "uri", uri, "error_code", err.Code, "error", err)
		return graphStore{}, err
	}
	return graphStore{Store: store, Mode: mode, close: client.Close}, nil
}

func graphProviderBootstrapErrorCode(err error) GraphProviderBootstrapErrorCode {
	var bootstrapErr *GraphProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return GraphProviderBootstrapErrorConnectFailed
}
