package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/depthlab/bookwatch/internal/book"
	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/sim"
)

// SimService computes one-off order impact estimates and maintains a
// registry of tracked simulated orders. Tracked orders are re-evaluated
// against the live book on every snapshot change until removed.
type SimService struct {
	store  *book.Store
	bus    domain.SignalBus // may be nil
	logger *slog.Logger

	maxOrders int

	mu     sync.RWMutex
	orders map[string]domain.TrackedOrder
}

// NewSimService creates a SimService capped at maxOrders tracked orders.
func NewSimService(store *book.Store, bus domain.SignalBus, maxOrders int, logger *slog.Logger) *SimService {
	return &SimService{
		store:     store,
		bus:       bus,
		logger:    logger.With(slog.String("component", "sim_service")),
		maxOrders: maxOrders,
		orders:    make(map[string]domain.TrackedOrder),
	}
}

// Simulate computes the impact of a hypothetical order against the current
// snapshot for (venue, symbol). It returns domain.ErrInvalidOrder for bad
// parameters. A key with no snapshot yet is not an error: the impact
// degrades to all-zero metrics with the full quantity remaining, the same
// way an empty book does.
func (s *SimService) Simulate(venue domain.VenueID, symbol string, order domain.SimulatedOrder) (domain.ImpactResult, error) {
	if err := validateOrder(venue, symbol, order); err != nil {
		return domain.ImpactResult{}, err
	}
	snap, _ := s.store.Get(venue, symbol)
	return sim.Simulate(snap, order), nil
}

// Track registers a simulated order for continuous re-evaluation and
// returns it with its initial impact. The book for (venue, symbol) does not
// have to exist yet; the impact stays zero-valued until a snapshot arrives.
func (s *SimService) Track(ctx context.Context, venue domain.VenueID, symbol string, order domain.SimulatedOrder, delaySec int) (domain.TrackedOrder, error) {
	if err := validateOrder(venue, symbol, order); err != nil {
		return domain.TrackedOrder{}, err
	}
	if delaySec < 0 {
		return domain.TrackedOrder{}, fmt.Errorf("sim_service: negative delay %d: %w", delaySec, domain.ErrInvalidOrder)
	}

	now := time.Now().UTC()
	tracked := domain.TrackedOrder{
		ID:        uuid.NewString(),
		Key:       domain.BookKey{Venue: venue, Symbol: symbol},
		Order:     order,
		DelaySec:  delaySec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if snap, ok := s.store.Get(venue, symbol); ok {
		tracked.Impact = sim.Simulate(snap, order)
	}

	s.mu.Lock()
	if len(s.orders) >= s.maxOrders {
		s.mu.Unlock()
		return domain.TrackedOrder{}, fmt.Errorf("sim_service: %d orders tracked: %w", s.maxOrders, domain.ErrRegistryFull)
	}
	s.orders[tracked.ID] = tracked
	s.mu.Unlock()

	s.publishEvent(ctx, "order_tracked", tracked)
	return tracked, nil
}

// Get returns a tracked order by ID.
func (s *SimService) Get(id string) (domain.TrackedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracked, ok := s.orders[id]
	if !ok {
		return domain.TrackedOrder{}, fmt.Errorf("sim_service: order %q: %w", id, domain.ErrNotFound)
	}
	return tracked, nil
}

// List returns every tracked order, oldest first.
func (s *SimService) List() []domain.TrackedOrder {
	s.mu.RLock()
	out := make([]domain.TrackedOrder, 0, len(s.orders))
	for _, tracked := range s.orders {
		out = append(out, tracked)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Remove deletes a tracked order by ID.
func (s *SimService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	tracked, ok := s.orders[id]
	if ok {
		delete(s.orders, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("sim_service: order %q: %w", id, domain.ErrNotFound)
	}
	s.publishEvent(ctx, "order_removed", tracked)
	return nil
}

// Run subscribes to store changes and re-evaluates tracked orders whose key
// changed, until ctx is cancelled. Intended to run as a dedicated goroutine.
func (s *SimService) Run(ctx context.Context) error {
	changes, cancel := s.store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-changes:
			if !ok {
				return nil
			}
			s.reevaluate(ctx, key)
		}
	}
}

// reevaluate recomputes impacts for every tracked order on the changed key
// and publishes an event per order whose impact moved.
func (s *SimService) reevaluate(ctx context.Context, key domain.BookKey) {
	snap, ok := s.store.Get(key.Venue, key.Symbol)
	if !ok {
		return
	}

	var updated []domain.TrackedOrder
	s.mu.Lock()
	for id, tracked := range s.orders {
		if tracked.Key != key {
			continue
		}
		impact := sim.Simulate(snap, tracked.Order)
		if impact == tracked.Impact {
			continue
		}
		tracked.Impact = impact
		tracked.UpdatedAt = time.Now().UTC()
		s.orders[id] = tracked
		updated = append(updated, tracked)
	}
	s.mu.Unlock()

	for _, tracked := range updated {
		s.publishEvent(ctx, "order_impact", tracked)
	}
}

func (s *SimService) publishEvent(ctx context.Context, event string, tracked domain.TrackedOrder) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event": event,
		"order": tracked,
	})
	if err := s.bus.Publish(ctx, "simulations", evt); err != nil {
		s.logger.WarnContext(ctx, "publish simulation event failed",
			slog.String("event", event),
			slog.String("order_id", tracked.ID),
			slog.String("error", err.Error()),
		)
	}
}

func validateOrder(venue domain.VenueID, symbol string, order domain.SimulatedOrder) error {
	if !venue.Valid() {
		return fmt.Errorf("sim_service: unknown venue %q: %w", venue, domain.ErrInvalidOrder)
	}
	if symbol == "" {
		return fmt.Errorf("sim_service: empty symbol: %w", domain.ErrInvalidOrder)
	}
	if !order.Side.Valid() {
		return fmt.Errorf("sim_service: unknown side %q: %w", order.Side, domain.ErrInvalidOrder)
	}
	if order.Quantity <= 0 {
		return fmt.Errorf("sim_service: quantity must be > 0, got %g: %w", order.Quantity, domain.ErrInvalidOrder)
	}
	if order.LimitPrice != nil && *order.LimitPrice <= 0 {
		return fmt.Errorf("sim_service: limit price must be > 0, got %g: %w", *order.LimitPrice, domain.ErrInvalidOrder)
	}
	return nil
}
