package domain

import (
	"context"
	"time"
)

// SnapshotCache mirrors canonical snapshots into an external cache for
// presentation-layer consumers. The in-memory book store remains the single
// source of truth; the mirror is best-effort and holds no core state.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap BookSnapshot) error
	GetSnapshot(ctx context.Context, key BookKey) (BookSnapshot, error)
	GetBBO(ctx context.Context, key BookKey) (bestBid, bestAsk float64, err error)
}

// SignalBus provides ephemeral pub/sub used to push book-change, status,
// and simulation events to the outbound WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter throttles outbound venue REST requests across the process.
// Allow counts the request when permitted.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
