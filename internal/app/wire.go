package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/depthlab/bookwatch/internal/book"
	"github.com/depthlab/bookwatch/internal/cache/redis"
	"github.com/depthlab/bookwatch/internal/config"
	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/service"
	"github.com/depthlab/bookwatch/internal/venue"
)

// Dependencies bundles everything the application needs to run. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store   *book.Store
	BookSvc *service.BookService
	SimSvc  *service.SimService

	// Redis, Mirror, Bus, and Limiter are nil when Redis is disabled.
	Redis   *redis.Client
	Mirror  domain.SnapshotCache
	Bus     domain.SignalBus
	Limiter domain.RateLimiter

	Specs map[domain.VenueID]venue.Spec
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Store: book.NewStore(logger),
		Specs: venueSpecs(cfg),
	}

	// --- Redis (optional presentation mirror + event bus) ---
	if cfg.Redis.Enabled {
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

		deps.Redis = redisClient
		deps.Mirror = redis.NewBookCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient)
	}

	deps.BookSvc = service.NewBookService(deps.Store, deps.Mirror, deps.Bus, logger)
	deps.SimSvc = service.NewSimService(deps.Store, deps.Bus, cfg.Sim.MaxTrackedOrders, logger)

	return deps, cleanup, nil
}

// venueSpecs returns the venue specs with configuration overrides applied on
// top of the built-in defaults.
func venueSpecs(cfg *config.Config) map[domain.VenueID]venue.Spec {
	specs := venue.Defaults()
	for name, vc := range cfg.Venues {
		id := domain.VenueID(name)
		spec, ok := specs[id]
		if !ok {
			continue
		}
		if vc.WSURL != "" {
			spec.WSURL = vc.WSURL
		}
		if vc.ReconnectInterval.Duration > 0 {
			spec.ReconnectInterval = vc.ReconnectInterval.Duration
		}
		if vc.MaxReconnectAttempts > 0 {
			spec.MaxReconnectAttempts = vc.MaxReconnectAttempts
		}
		specs[id] = spec
	}
	return specs
}
