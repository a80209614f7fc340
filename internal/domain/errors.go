package domain

import "errors"

var (
	// ErrNotFound is returned when no snapshot exists for a (venue, symbol) key.
	ErrNotFound = errors.New("not found")

	// ErrNotBookUpdate marks a structurally valid venue message that is not a
	// book update for the subscribed channel (heartbeat, ack, other topic).
	// It is a normal, silent outcome, not a fault.
	ErrNotBookUpdate = errors.New("not a book update")

	// ErrDecode marks a payload that is not valid structured data.
	ErrDecode = errors.New("decode failed")

	// ErrNormalize marks a structurally valid message missing the expected
	// book fields for the subscribed channel.
	ErrNormalize = errors.New("normalization failed")

	// ErrInvariant marks a candidate snapshot that violates book invariants
	// (unsorted side, duplicate price, zero quantity, crossed book).
	ErrInvariant = errors.New("book invariant violated")

	// ErrExhaustedRetries marks a connection that reached its reconnect limit
	// and moved to the terminal failed state.
	ErrExhaustedRetries = errors.New("reconnect attempts exhausted")

	// ErrInvalidOrder marks a simulation request with a bad side, quantity,
	// or venue.
	ErrInvalidOrder = errors.New("invalid order parameters")

	// ErrRegistryFull is returned when the tracked-order registry reached its
	// configured capacity.
	ErrRegistryFull = errors.New("tracked order registry full")
)
