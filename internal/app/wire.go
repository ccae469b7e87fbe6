package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/parlay-labs/poolroom/internal/cache/local"
	"github.com/parlay-labs/poolroom/internal/cache/redis"
	"github.com/parlay-labs/poolroom/internal/config"
	"github.com/parlay-labs/poolroom/internal/domain"
	"github.com/parlay-labs/poolroom/internal/store/memory"
	"github.com/parlay-labs/poolroom/internal/store/postgres"
)

// Dependencies bundles the backends the settlement engine runs on. Server
// mode wires PostgreSQL and Redis; dev mode swaps both for in-process
// implementations so a single binary runs with no external services.
type Dependencies struct {
	Store       domain.Store
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
}

// Wire constructs the concrete backend implementations for the configured
// mode and returns them together with a cleanup function that releases
// resources on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if strings.ToLower(cfg.Mode) == "dev" {
		return &Dependencies{
			Store:       memory.New(),
			LockManager: local.NewLockManager(),
			SignalBus:   local.NewSignalBus(),
		}, cleanup, nil
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	return &Dependencies{
		Store:       postgres.NewStore(pgClient.Pool()),
		LockManager: redis.NewLockManager(redisClient),
		SignalBus:   redis.NewSignalBus(redisClient),
	}, cleanup, nil
}
