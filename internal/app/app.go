package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/cardaffinity/internal/affinity"
	"github.com/yungbote/cardaffinity/internal/data/db"
	"github.com/yungbote/cardaffinity/internal/data/decklists"
	"github.com/yungbote/cardaffinity/internal/observability"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
	"github.com/yungbote/cardaffinity/internal/platform/redislock"
)

// App owns the engine and every connection it was built on.
type App struct {
	Log      *logger.Logger
	Cfg      Config
	Engine   *affinity.Engine
	Metrics  *observability.Metrics
	Graph    affinity.Store
	Archive  decklists.Repo
	PassLock *redislock.Locker

	graph        graphStore
	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := NewWithConfig(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

// NewWithConfig wires the engine from cfg. On error everything opened so far
// is closed again.
func NewWithConfig(ctx context.Context, cfg Config, log *logger.Logger) (_ *App, err error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	a := &App{Log: log, Cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)
	if cfg.MetricsEnabled {
		a.Metrics = observability.NewMetrics()
	}

	log.Info("Wiring graph store...")
	a.graph, err = resolveGraphStore(ctx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("init graph store (%s): %w", graphProviderBootstrapErrorCode(err), err)
	}
	a.Graph = a.graph.Store

	opts := []affinity.Option{affinity.WithMetrics(a.Metrics)}

	if cfg.ArchiveEnabled {
		log.Info("Wiring decklist archive...", "driver", cfg.DB.Driver)
		a.dbService, err = db.Open(cfg.DB, log)
		if err != nil {
			return nil, fmt.Errorf("init archive db: %w", err)
		}
		if err = db.AutoMigrateAll(a.dbService.DB()); err != nil {
			return nil, fmt.Errorf("archive automigrate: %w", err)
		}
		a.Archive = decklists.NewRepo(a.dbService.DB(), log)
		opts = append(opts, affinity.WithLedger(a.Archive), affinity.WithArchive(a.Archive))
	} else {
		log.Warn("Decklist archive disabled; batches may be applied twice and rebuild is unavailable")
	}

	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		log.Info("Wiring pass lock...", "addr", cfg.Redis.Addr)
		a.PassLock, err = redislock.New(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init pass lock: %w", err)
		}
		opts = append(opts, affinity.WithPassLock(a.PassLock))
	} else if a.graph.Mode == GraphStoreNeo4j {
		log.Warn("REDIS_ADDR not set; graph-wide passes are only serialized within this process")
	}

	a.Engine = affinity.NewEngine(a.Graph, log, affinity.Config{
		Aggregator: cfg.Aggregator,
		Policy:     policy,
		Breaker:    cfg.Breaker,
	}, opts...)
	return a, nil
}

// Start runs background servers until Close.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if a.PassLock != nil {
		errs = append(errs, a.PassLock.Close())
	}
	if a.dbService != nil {
		errs = append(errs, a.dbService.Close())
	}
	errs = append(errs, a.graph.Close(ctx))
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil && a.Log != nil {
		a.Log.Warn("shutdown incomplete", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
