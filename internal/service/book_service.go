// Package service coordinates the book store, cache mirror, signal bus, and
// simulation registry behind the transport layer.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/depthlab/bookwatch/internal/book"
	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/sim"
)

// BookService handles canonical snapshot updates: applies them to the
// in-memory store, mirrors them to the snapshot cache when one is
// configured, and publishes a book-change event.
type BookService struct {
	store  *book.Store
	mirror domain.SnapshotCache // may be nil
	bus    domain.SignalBus     // may be nil
	logger *slog.Logger
}

// NewBookService creates a BookService. mirror and bus are optional; pass
// nil to run store-only.
func NewBookService(store *book.Store, mirror domain.SnapshotCache, bus domain.SignalBus, logger *slog.Logger) *BookService {
	return &BookService{
		store:  store,
		mirror: mirror,
		bus:    bus,
		logger: logger.With(slog.String("component", "book_service")),
	}
}

// HandleBookUpdate processes a normalized snapshot: validates and stores it,
// mirrors it, and publishes a book update event. A snapshot rejected by the
// store is dropped without touching the mirror.
func (s *BookService) HandleBookUpdate(ctx context.Context, snap domain.BookSnapshot) error {
	if err := s.store.Update(snap); err != nil {
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.SetSnapshot(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "mirror snapshot failed",
				slog.String("key", snap.Key().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":       "book_update",
			"venue":       snap.Venue,
			"symbol":      snap.Symbol,
			"best_bid":    snap.BestBid(),
			"best_ask":    snap.BestAsk(),
			"mid_price":   sim.MidPrice(snap),
			"spread":      sim.Spread(snap),
			"observed_at": snap.ObservedAt.Format(time.RFC3339Nano),
		})
		if pubErr := s.bus.Publish(ctx, "books", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "publish book update event failed",
				slog.String("key", snap.Key().String()),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	return nil
}

// GetBook returns the current snapshot for a (venue, symbol) pair from the
// in-memory store.
func (s *BookService) GetBook(venue domain.VenueID, symbol string) (domain.BookSnapshot, error) {
	snap, ok := s.store.Get(venue, symbol)
	if !ok {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

// GetMirrored reads the last mirrored snapshot for a (venue, symbol) pair.
// The mirror can outlive the live feed (a prior process run, or a feed that
// has not reconnected yet), so callers use it as a staleness-tolerant
// fallback when the store misses. Returns domain.ErrNotFound when no mirror
// is configured or the key was never mirrored.
func (s *BookService) GetMirrored(ctx context.Context, venue domain.VenueID, symbol string) (domain.BookSnapshot, error) {
	if s.mirror == nil {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	return s.mirror.GetSnapshot(ctx, domain.BookKey{Venue: venue, Symbol: symbol})
}

// GetBBO returns the best bid and ask for a (venue, symbol) pair, reading
// the live store first and falling back to the mirror.
func (s *BookService) GetBBO(ctx context.Context, venue domain.VenueID, symbol string) (bestBid, bestAsk float64, err error) {
	if snap, ok := s.store.Get(venue, symbol); ok {
		return snap.BestBid(), snap.BestAsk(), nil
	}
	if s.mirror != nil {
		return s.mirror.GetBBO(ctx, domain.BookKey{Venue: venue, Symbol: symbol})
	}
	return 0, 0, domain.ErrNotFound
}

// Keys returns every (venue, symbol) pair currently held by the store.
func (s *BookService) Keys() []domain.BookKey {
	return s.store.Keys()
}
