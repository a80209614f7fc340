package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/depthlab/bookwatch/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a fixed-window counter.
// The counter key expires with the window, so an idle key costs nothing.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.rdb}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow checks whether a request for the given key is permitted under the
// fixed-window rate limit. It returns true if the request is allowed (and
// the request is counted), or false if the limit has been reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitKey(key)

	pipe := rl.rdb.TxPipeline()
	count := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	return count.Val() <= int64(limit), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
