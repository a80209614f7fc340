// Package app provides the top-level application lifecycle for the
// bookwatch daemon. It wires dependencies (book store, Redis mirror, signal
// bus, services) and runs the feed manager, simulation registry, WebSocket
// hub, and HTTP server under one errgroup.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/depthlab/bookwatch/internal/config"
	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/feed"
	"github.com/depthlab/bookwatch/internal/server"
	"github.com/depthlab/bookwatch/internal/server/handler"
	"github.com/depthlab/bookwatch/internal/server/ws"
	"github.com/depthlab/bookwatch/internal/venue"
)

// shutdownTimeout bounds the graceful HTTP shutdown on exit.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions that are called in reverse order on
// shutdown.
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
// goroutines, and blocks until the context is cancelled. On return the
// caller should invoke Close to release resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("venue", a.cfg.Feed.Venue),
		slog.String("symbol", a.cfg.Feed.Symbol),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	// Feed manager: every normalized snapshot flows through the book service.
	sink := func(snap domain.BookSnapshot) {
		_ = deps.BookSvc.HandleBookUpdate(ctx, snap)
	}
	manager := feed.NewManager(deps.Specs, sink, a.connOptions(), a.logger)
	a.closers = append(a.closers, manager.Close)

	if err := manager.Subscribe(domain.VenueID(a.cfg.Feed.Venue), a.cfg.Feed.Symbol); err != nil {
		return fmt.Errorf("app: initial subscribe: %w", err)
	}

	// Simulation registry: re-evaluates tracked orders on book changes.
	g.Go(func() error {
		return deps.SimSvc.Run(ctx)
	})

	// WebSocket hub: requires the signal bus, so it only runs with Redis.
	var wsHub *ws.Hub
	if deps.Bus != nil {
		wsHub = ws.NewHub(deps.Bus, a.logger)
		g.Go(func() error {
			return wsHub.Run(ctx)
		})
	}

	// HTTP server.
	if a.cfg.Server.Enabled {
		// A nil concrete pointer must not become a non-nil interface.
		var cachePing handler.Pinger
		if deps.Redis != nil {
			cachePing = deps.Redis
		}
		handlers := server.Handlers{
			Health: handler.NewHealthHandler(startedAt, cachePing, a.logger),
			Books:  handler.NewBookHandler(deps.BookSvc, fetchers(deps.Specs), deps.Limiter, a.logger),
			Sims:   handler.NewSimHandler(deps.SimSvc, a.logger),
			Feeds:  handler.NewFeedHandler(manager, a.logger),
		}
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		}, handlers, wsHub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

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

// connOptions derives the shared connection options, honoring a
// connect_timeout override configured for the startup venue.
func (a *App) connOptions() feed.ConnOptions {
	opts := feed.ConnOptions{}
	if vc, ok := a.cfg.Venues[a.cfg.Feed.Venue]; ok && vc.ConnectTimeout.Duration > 0 {
		opts.ConnectTimeout = vc.ConnectTimeout.Duration
	}
	return opts
}

// fetchers extracts the per-venue REST fallback functions from the specs.
func fetchers(specs map[domain.VenueID]venue.Spec) map[domain.VenueID]venue.FetchFunc {
	out := make(map[domain.VenueID]venue.FetchFunc, len(specs))
	for id, spec := range specs {
		out[id] = spec.FetchREST
	}
	return out
}
