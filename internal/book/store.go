// Package book holds the latest canonical snapshot per (venue, symbol) key.
// The store is the single structure mutated from multiple concurrent
// producers; every write goes through Update, which swaps whole snapshots
// atomically so readers never observe a half-written book.
package book

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/depthlab/bookwatch/internal/domain"
)

// subscriberBuffer is the per-subscriber channel capacity. When a
// subscriber falls this far behind, further keys are dropped for it rather
// than blocking producers; delivered keys always stay in apply order.
const subscriberBuffer = 64

// Store is the in-memory source of truth for live books.
type Store struct {
	mu    sync.RWMutex
	books map[domain.BookKey]domain.BookSnapshot

	subSeq int
	subs   map[int]chan domain.BookKey

	logger *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		books:  make(map[domain.BookKey]domain.BookSnapshot),
		subs:   make(map[int]chan domain.BookKey),
		logger: logger.With(slog.String("component", "book_store")),
	}
}

// Update validates the candidate snapshot and, if it passes, replaces the
// entry for its key and notifies subscribers. A candidate violating book
// invariants is rejected with domain.ErrInvariant and the prior snapshot is
// retained; this is a logged data-quality event, never a crash.
func (s *Store) Update(snap domain.BookSnapshot) error {
	if err := Validate(snap); err != nil {
		s.logger.Warn("rejected snapshot",
			slog.String("venue", string(snap.Venue)),
			slog.String("symbol", snap.Symbol),
			slog.String("reason", err.Error()),
		)
		return err
	}

	key := snap.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[key] = snap

	// Notify inside the lock so every subscriber observes keys in apply
	// order. Sends never block; a full subscriber buffer drops the key.
	for _, ch := range s.subs {
		select {
		case ch <- key:
		default:
			s.logger.Debug("dropping change notification for slow subscriber",
				slog.String("key", key.String()),
			)
		}
	}
	return nil
}

// Get returns the current snapshot for a key. Absence is not an error;
// ok reports whether a snapshot has arrived yet.
func (s *Store) Get(venue domain.VenueID, symbol string) (domain.BookSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.books[domain.BookKey{Venue: venue, Symbol: symbol}]
	return snap, ok
}

// Keys returns every (venue, symbol) key currently held.
func (s *Store) Keys() []domain.BookKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]domain.BookKey, 0, len(s.books))
	for k := range s.books {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers interest in snapshot changes. The returned channel
// receives the key of each applied update; call the cancel function to
// unregister and close the channel.
func (s *Store) Subscribe() (<-chan domain.BookKey, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.subSeq
	s.subSeq++
	ch := make(chan domain.BookKey, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Validate checks the snapshot invariants: positive quantities, strictly
// descending bids, strictly ascending asks (which also forbids duplicate
// prices), and an uncrossed book.
func Validate(snap domain.BookSnapshot) error {
	for _, lvl := range snap.Bids {
		if lvl.Quantity <= 0 {
			return fmt.Errorf("%w: bid level %g with quantity %g", domain.ErrInvariant, lvl.Price, lvl.Quantity)
		}
	}
	for _, lvl := range snap.Asks {
		if lvl.Quantity <= 0 {
			return fmt.Errorf("%w: ask level %g with quantity %g", domain.ErrInvariant, lvl.Price, lvl.Quantity)
		}
	}
	for i := 1; i < len(snap.Bids); i++ {
		if snap.Bids[i].Price >= snap.Bids[i-1].Price {
			return fmt.Errorf("%w: bids not strictly descending at index %d", domain.ErrInvariant, i)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if snap.Asks[i].Price <= snap.Asks[i-1].Price {
			return fmt.Errorf("%w: asks not strictly ascending at index %d", domain.ErrInvariant, i)
		}
	}
	if snap.Crossed() {
		return fmt.Errorf("%w: crossed book, best bid %g >= best ask %g",
			domain.ErrInvariant, snap.BestBid(), snap.BestAsk())
	}
	return nil
}
