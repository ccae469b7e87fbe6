// Package app provides top-level application lifecycle management for the
// poolroom service. It wires the stores, caches, settlement engine, and HTTP
// server, and runs them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parlay-labs/poolroom/internal/config"
	"github.com/parlay-labs/poolroom/internal/server"
	"github.com/parlay-labs/poolroom/internal/server/handler"
	"github.com/parlay-labs/poolroom/internal/server/ws"
	"github.com/parlay-labs/poolroom/internal/settlement"
)

// shutdownGrace is how long in-flight HTTP requests get to finish once the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// WebSocket hub and HTTP server, and blocks until the context is cancelled
// or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	engine := settlement.New(
		deps.Store,
		deps.LockManager,
		deps.SignalBus,
		a.cfg.Settlement.LockTTL.Duration,
		a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:          a.cfg.Server.Port,
			CORSOrigins:   a.cfg.Server.CORSOrigins,
			APIKey:        a.cfg.Server.APIKey,
			FaucetEnabled: a.cfg.Settlement.FaucetEnabled,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Rooms:    handler.NewRoomHandler(engine, a.logger),
			Oracles:  handler.NewOracleHandler(engine, a.logger),
			Accounts: handler.NewAccountHandler(engine, a.logger),
		},
		hub,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	// Shut the HTTP server down once the context is cancelled so Start
	// returns and the group unblocks.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
