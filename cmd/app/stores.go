package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"autoshorts/internal/config"
	"autoshorts/internal/domain/ports/repository"
	pg "autoshorts/internal/infra/db/postgres"
	"autoshorts/internal/infra/db/sqlite"
	"autoshorts/internal/infra/metrics"
	red "autoshorts/internal/infra/redis"
)

// stores is the state backend picked by storage.driver.
type stores struct {
	Jobs       repository.JobRepository
	Automation repository.AutomationRepository
	Counters   repository.CounterRepository
	Locker     repository.Locker
	Limiter    repository.RateLimiter
	Tx         repository.TransactionManager

	// stats publishes connection pool gauges; nil for sqlite.
	stats func(ctx context.Context) error
	close func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return openServerStores(ctx, cfg, logger)
	default:
		return openLocalStores(cfg, logger)
	}
}

// openServerStores keeps the ledger in Postgres and the small shared state
// (automation, counters, lock, rate windows) in Redis.
func openServerStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("using postgres + redis state")

	return &stores{
		Jobs:       pg.NewJobRepo(pool),
		Automation: red.NewAutomationRepo(rc),
		Counters:   red.NewCounterRepo(rc),
		Locker:     red.NewLocker(rc),
		Limiter:    red.NewRateLimiter(rc),
		Tx:         pg.NewTxManager(pool),
		stats: func(context.Context) error {
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
			return nil
		},
		close: func() {
			if err := rc.Close(); err != nil {
				logger.Warn().Err(err).Msg("redis close")
			}
			pool.Close()
		},
	}, nil
}

func openLocalStores(cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	db, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	applied, err := db.AppliedMigrations()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info().Str("path", cfg.Storage.SQLitePath).Ints("migrations", applied).Msg("using sqlite state")

	return &stores{
		Jobs:       sqlite.NewJobRepo(db),
		Automation: sqlite.NewAutomationRepo(db),
		Counters:   sqlite.NewCounterRepo(db),
		Locker:     sqlite.NewLocker(db),
		Limiter:    sqlite.NewRateLimiter(db),
		Tx:         sqlite.NewTxManager(db),
		close: func() {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("sqlite close")
			}
		},
	}, nil
}
