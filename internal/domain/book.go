package domain

import "time"

// VenueID identifies an external exchange providing a book feed.
type VenueID string

const (
	VenueOKX     VenueID = "okx"
	VenueBybit   VenueID = "bybit"
	VenueDeribit VenueID = "deribit"
)

// Venues lists every supported venue in display order.
var Venues = []VenueID{VenueOKX, VenueBybit, VenueDeribit}

// Valid reports whether v names a supported venue.
func (v VenueID) Valid() bool {
	switch v {
	case VenueOKX, VenueBybit, VenueDeribit:
		return true
	}
	return false
}

// BookLevel is a single price+quantity entry on one side of an orderbook.
// A level with Quantity == 0 is treated as absent and never stored.
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// BookSnapshot is the venue-agnostic representation of an orderbook at one
// instant. Bids are strictly descending by price, asks strictly ascending.
// Snapshots are immutable once written to the store; producers build a fresh
// value per update.
type BookSnapshot struct {
	Venue      VenueID     `json:"venue"`
	Symbol     string      `json:"symbol"`
	Bids       []BookLevel `json:"bids"`
	Asks       []BookLevel `json:"asks"`
	ObservedAt time.Time   `json:"observed_at"`
}

// Key returns the store key for this snapshot's (venue, symbol) pair.
func (s BookSnapshot) Key() BookKey {
	return BookKey{Venue: s.Venue, Symbol: s.Symbol}
}

// BestBid returns the highest bid price, or 0 when there are no bids.
func (s BookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 when there are no asks.
func (s BookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// Crossed reports whether best bid >= best ask while both sides are
// non-empty. A crossed book is a data-quality error, not a valid state.
func (s BookSnapshot) Crossed() bool {
	return len(s.Bids) > 0 && len(s.Asks) > 0 && s.Bids[0].Price >= s.Asks[0].Price
}

// BookKey identifies one (venue, symbol) book in the store.
type BookKey struct {
	Venue  VenueID `json:"venue"`
	Symbol string  `json:"symbol"`
}

// String renders the key in "venue:symbol" form, used for cache keys and
// pub/sub channel suffixes.
func (k BookKey) String() string {
	return string(k.Venue) + ":" + k.Symbol
}
