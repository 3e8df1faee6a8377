package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/data/db"
	"github.com/yungbote/cardaffinity/internal/observability"
	"github.com/yungbote/cardaffinity/internal/platform/envutil"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
	"github.com/yungbote/cardaffinity/internal/platform/neo4jdb"
	"github.com/yungbote/cardaffinity/internal/platform/redislock"
)

type Config struct {
	LogMode  string
	LogLevel string

	// GraphStore selects the card graph backend. Empty picks neo4j when
	// NEO4J_URI is set and the in-memory graph otherwise.
	GraphStore GraphStoreMode `validate:"omitempty,oneof=neo4j memory"`
	Neo4j      neo4jdb.Config

	// ArchiveEnabled keeps ingested batches in the relational archive so
	// ingestion is at-most-once and the graph can be rebuilt.
	ArchiveEnabled bool
	DB             db.Config `validate:"-"`

	Redis redislock.Config

	MetricsEnabled bool
	MetricsAddr    string `validate:"required_if=MetricsEnabled true"`
	Otel           observability.OtelConfig

	WeightPolicy string `validate:"oneof=sqrt raw"`
	Aggregator   affinity.AggregatorConfig
	Breaker      affinity.BreakerConfig
}

// LoadConfig reads the environment. It never fails; call Validate before use.
func LoadConfig() Config {
	return Config{
		LogMode:        envutil.String("LOG_MODE", "development"),
		LogLevel:       envutil.String("LOG_LEVEL", "info"),
		GraphStore:     GraphStoreMode(strings.ToLower(envutil.String("GRAPH_STORE", ""))),
		Neo4j:          neo4jdb.ConfigFromEnv(),
		ArchiveEnabled: envutil.Bool("ARCHIVE_ENABLED", true),
		DB:             db.ConfigFromEnv(),
		Redis:          redislock.ConfigFromEnv(),
		MetricsEnabled: observability.Enabled(),
		MetricsAddr:    envutil.String("METRICS_ADDR", ":9090"),
		Otel: observability.OtelConfig{
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "cardaffinity"),
			Environment: envutil.String("APP_ENV", "development"),
			Version:     envutil.String("APP_VERSION", ""),
		},
		WeightPolicy: strings.ToLower(envutil.String("WEIGHT_POLICY", "sqrt")),
		Aggregator: affinity.AggregatorConfig{
			Concurrency:      envutil.Int("INGEST_CONCURRENCY", 4),
			MaxAttempts:      envutil.Int("INGEST_MAX_ATTEMPTS", 3),
			RetryInterval:    envutil.Duration("INGEST_RETRY_INTERVAL", 500*time.Millisecond),
			MaxDecklistCards: envutil.Int("INGEST_MAX_DECKLIST_CARDS", 250),
		},
		Breaker: affinity.BreakerConfig{
			FailureThreshold: uint32(max(envutil.Int("SUGGEST_BREAKER_FAILURES", 5), 0)),
			OpenTimeout:      envutil.Duration("SUGGEST_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
	}
}

func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("app: invalid config: %w", err)
	}
	if c.ArchiveEnabled {
		if err := v.Struct(c.DB); err != nil {
			return fmt.Errorf("app: invalid db config: %w", err)
		}
	}
	if c.Aggregator.Concurrency < 1 || c.Aggregator.MaxAttempts < 1 || c.Aggregator.MaxDecklistCards < 0 {
		return fmt.Errorf("app: invalid ingest config: %+v", c.Aggregator)
	}
	return nil
}

func (c Config) Policy() (affinity.WeightPolicy, error) {
	return affinity.PolicyByName(c.WeightPolicy)
}

func (c Config) NewLogger() (*logger.Logger, error) {
	return logger.New(c.LogMode, c.LogLevel)
}
