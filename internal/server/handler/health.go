package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable. The Redis client
// satisfies it; nil means the dependency is not configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	startedAt time.Time
	cache     Pinger // may be nil
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. cache is the optional snapshot
// mirror backend; pass nil when Redis is disabled.
func NewHealthHandler(startedAt time.Time, cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, cache: cache, logger: logger}
}

// HealthCheck reports liveness plus the reachability of the optional cache
// backend. An unreachable cache does not fail the check: the in-memory
// store keeps the service functional without it.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	cacheStatus := "disabled"
	if h.cache != nil {
		cacheStatus = "ok"
		if err := h.cache.Ping(r.Context()); err != nil {
			cacheStatus = "unreachable"
			h.logger.WarnContext(r.Context(), "cache health check failed",
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"cache":          cacheStatus,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
