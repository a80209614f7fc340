package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/depthlab/bookwatch/internal/book"
	"github.com/depthlab/bookwatch/internal/domain"
)

// recordingCache captures mirrored snapshots in memory.
type recordingCache struct {
	snaps []domain.BookSnapshot
}

func (c *recordingCache) SetSnapshot(ctx context.Context, snap domain.BookSnapshot) error {
	c.snaps = append(c.snaps, snap)
	return nil
}

func (c *recordingCache) GetSnapshot(ctx context.Context, key domain.BookKey) (domain.BookSnapshot, error) {
	for i := len(c.snaps) - 1; i >= 0; i-- {
		if c.snaps[i].Key() == key {
			return c.snaps[i], nil
		}
	}
	return domain.BookSnapshot{}, domain.ErrNotFound
}

func (c *recordingCache) GetBBO(ctx context.Context, key domain.BookKey) (float64, float64, error) {
	snap, err := c.GetSnapshot(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return snap.BestBid(), snap.BestAsk(), nil
}

func TestHandleBookUpdateMirrors(t *testing.T) {
	store := book.NewStore(testLogger())
	mirror := &recordingCache{}
	svc := NewBookService(store, mirror, nil, testLogger())

	snap := domain.BookSnapshot{
		Venue:      domain.VenueBybit,
		Symbol:     "BTCUSDT",
		Bids:       []domain.BookLevel{{Price: 25000, Quantity: 1}},
		Asks:       []domain.BookLevel{{Price: 25001, Quantity: 1}},
		ObservedAt: time.Now().UTC(),
	}
	if err := svc.HandleBookUpdate(context.Background(), snap); err != nil {
		t.Fatalf("handle update failed: %v", err)
	}

	got, err := svc.GetBook(domain.VenueBybit, "BTCUSDT")
	if err != nil {
		t.Fatalf("get book failed: %v", err)
	}
	if got.BestBid() != 25000 {
		t.Fatalf("best bid = %g, want 25000", got.BestBid())
	}
	if len(mirror.snaps) != 1 {
		t.Fatalf("mirror writes = %d, want 1", len(mirror.snaps))
	}
}

func TestHandleBookUpdateRejectsInvalid(t *testing.T) {
	store := book.NewStore(testLogger())
	mirror := &recordingCache{}
	svc := NewBookService(store, mirror, nil, testLogger())

	crossed := domain.BookSnapshot{
		Venue:      domain.VenueBybit,
		Symbol:     "BTCUSDT",
		Bids:       []domain.BookLevel{{Price: 25002, Quantity: 1}},
		Asks:       []domain.BookLevel{{Price: 25001, Quantity: 1}},
		ObservedAt: time.Now().UTC(),
	}
	if err := svc.HandleBookUpdate(context.Background(), crossed); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if len(mirror.snaps) != 0 {
		t.Fatal("rejected snapshot must not reach the mirror")
	}
}

func TestGetBBOMissing(t *testing.T) {
	svc := NewBookService(book.NewStore(testLogger()), nil, nil, testLogger())

	if _, _, err := svc.GetBBO(context.Background(), domain.VenueOKX, "BTC-USDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBBOFallsBackToMirror(t *testing.T) {
	mirror := &recordingCache{}
	svc := NewBookService(book.NewStore(testLogger()), mirror, nil, testLogger())
	ctx := context.Background()

	// Mirrored by a previous run; the live store knows nothing about it.
	mirror.snaps = append(mirror.snaps, domain.BookSnapshot{
		Venue:      domain.VenueDeribit,
		Symbol:     "BTC-PERPETUAL",
		Bids:       []domain.BookLevel{{Price: 64990, Quantity: 2}},
		Asks:       []domain.BookLevel{{Price: 65010, Quantity: 1}},
		ObservedAt: time.Now().UTC(),
	})

	bid, ask, err := svc.GetBBO(ctx, domain.VenueDeribit, "BTC-PERPETUAL")
	if err != nil {
		t.Fatalf("bbo failed: %v", err)
	}
	if bid != 64990 || ask != 65010 {
		t.Fatalf("bbo = %g/%g, want 64990/65010", bid, ask)
	}
}

func TestGetMirrored(t *testing.T) {
	mirror := &recordingCache{}
	store := book.NewStore(testLogger())
	svc := NewBookService(store, mirror, nil, testLogger())
	ctx := context.Background()

	snap := domain.BookSnapshot{
		Venue:      domain.VenueOKX,
		Symbol:     "ETH-USDT",
		Bids:       []domain.BookLevel{{Price: 3000, Quantity: 4}},
		Asks:       []domain.BookLevel{{Price: 3001, Quantity: 4}},
		ObservedAt: time.Now().UTC(),
	}
	if err := svc.HandleBookUpdate(ctx, snap); err != nil {
		t.Fatalf("handle update failed: %v", err)
	}

	got, err := svc.GetMirrored(ctx, domain.VenueOKX, "ETH-USDT")
	if err != nil {
		t.Fatalf("get mirrored failed: %v", err)
	}
	if got.BestBid() != 3000 {
		t.Fatalf("mirrored best bid = %g, want 3000", got.BestBid())
	}

	// Without a mirror configured, the fallback reports a plain miss.
	bare := NewBookService(book.NewStore(testLogger()), nil, nil, testLogger())
	if _, err := bare.GetMirrored(ctx, domain.VenueOKX, "ETH-USDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without mirror, got %v", err)
	}
}
