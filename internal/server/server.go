// Package server assembles the HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/depthlab/bookwatch/internal/server/handler"
	"github.com/depthlab/bookwatch/internal/server/middleware"
	"github.com/depthlab/bookwatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Books  *handler.BookHandler
	Sims   *handler.SimHandler
	Feeds  *handler.FeedHandler
}

// Server is the headless HTTP + WebSocket API server for the bookwatch daemon.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Orderbook endpoints.
	mux.HandleFunc("GET /api/orderbook", handlers.Books.GetBook)
	mux.HandleFunc("GET /api/orderbook/bbo", handlers.Books.GetBBO)
	mux.HandleFunc("GET /api/orderbook/analytics", handlers.Books.GetAnalytics)
	mux.HandleFunc("GET /api/orderbook/keys", handlers.Books.ListBooks)

	// Simulation endpoints.
	mux.HandleFunc("POST /api/simulate", handlers.Sims.Simulate)
	mux.HandleFunc("GET /api/orders", handlers.Sims.ListOrders)
	mux.HandleFunc("POST /api/orders", handlers.Sims.TrackOrder)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Sims.GetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Sims.RemoveOrder)

	// Feed control endpoints.
	mux.HandleFunc("GET /api/status", handlers.Feeds.Status)
	mux.HandleFunc("POST /api/feeds", handlers.Feeds.Subscribe)
	mux.HandleFunc("DELETE /api/feeds/{venue}", handlers.Feeds.Teardown)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
