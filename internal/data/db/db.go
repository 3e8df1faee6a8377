package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/cardaffinity/internal/platform/envutil"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string `validate:"oneof=postgres sqlite"`
	// DSN is a postgres URL or a sqlite file path (":memory:" for tests).
	DSN string `validate:"required"`
}

// ConfigFromEnv reads DB_DRIVER and DB_DSN. Without DB_DSN the postgres URL
// is assembled from POSTGRES_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver: strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres)),
		DSN:    envutil.String("DB_DSN", ""),
	}
	if cfg.DSN == "" && cfg.Driver == DriverPostgres {
		cfg.DSN = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			envutil.String("POSTGRES_USER", "postgres"),
			envutil.String("POSTGRES_PASSWORD", ""),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "cardaffinity"),
		)
	}
	if cfg.DSN == "" && cfg.Driver == DriverSQLite {
		cfg.DSN = "cardaffinity.db"
	}
	return cfg
}

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func Open(cfg Config, logg *logger.Logger) (*Service, error) {
	if logg == nil {
		logg = logger.NewNop()
	}
	serviceLog := logg.With("service", "DBService", "driver", cfg.Driver)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// One connection keeps ":memory:" databases alive and serializes writers.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	serviceLog.Info("database connected")
	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
