package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/service"
	"github.com/depthlab/bookwatch/internal/sim"
	"github.com/depthlab/bookwatch/internal/venue"
)

const (
	// restTimeout bounds the one-shot REST fallback request.
	restTimeout = 10 * time.Second

	// restLimit caps fallback requests per venue per restWindow so a
	// hammering client cannot burn the venue's public REST quota.
	restLimit  = 5
	restWindow = time.Second
)

// BookHandler serves orderbook snapshots and derived analytics.
type BookHandler struct {
	books    *service.BookService
	fetchers map[domain.VenueID]venue.FetchFunc
	limiter  domain.RateLimiter // may be nil
	client   *http.Client
	logger   *slog.Logger
}

// NewBookHandler creates a BookHandler. fetchers provides the per-venue REST
// fallback used when the live feed has no snapshot yet; limiter, when
// non-nil, throttles those fallback requests.
func NewBookHandler(books *service.BookService, fetchers map[domain.VenueID]venue.FetchFunc, limiter domain.RateLimiter, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		books:    books,
		fetchers: fetchers,
		limiter:  limiter,
		client:   &http.Client{Timeout: restTimeout},
		logger:   logger.With(slog.String("handler", "book")),
	}
}

// GetBook returns the current snapshot for a (venue, symbol) pair. When the
// live feed has not produced one yet, it serves the last mirrored snapshot
// if one exists, and otherwise falls back to the venue's REST endpoint. The
// response carries "source": "live", "mirror", or "rest" so callers can tell
// how fresh the data is.
// GET /api/orderbook?venue=okx&symbol=BTC-USDT
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	venueID, symbol, err := bookParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.books.GetBook(venueID, symbol)
	source := "live"
	if err != nil {
		if mirrored, mErr := h.books.GetMirrored(r.Context(), venueID, symbol); mErr == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"source": "mirror",
				"book":   mirrored,
			})
			return
		}

		fetch, ok := h.fetchers[venueID]
		if !ok {
			writeDomainError(w, err)
			return
		}
		if h.limiter != nil {
			allowed, limErr := h.limiter.Allow(r.Context(), "rest:"+string(venueID), restLimit, restWindow)
			if limErr != nil {
				h.logger.WarnContext(r.Context(), "rate limiter check failed",
					slog.String("venue", string(venueID)),
					slog.String("error", limErr.Error()),
				)
			} else if !allowed {
				writeError(w, http.StatusTooManyRequests, "rest fallback rate limit reached, retry shortly")
				return
			}
		}
		snap, err = fetch(r.Context(), h.client, symbol)
		if err != nil {
			h.logger.WarnContext(r.Context(), "rest fallback failed",
				slog.String("venue", string(venueID)),
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "no live snapshot and rest fallback failed")
			return
		}
		source = "rest"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source": source,
		"book":   snap,
	})
}

// GetBBO returns just the best bid and ask for a (venue, symbol) pair,
// served from the live store with a mirror fallback. Lighter than GetBook
// for tickers that only need top-of-book.
// GET /api/orderbook/bbo?venue=okx&symbol=BTC-USDT
func (h *BookHandler) GetBBO(w http.ResponseWriter, r *http.Request) {
	venueID, symbol, err := bookParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, ask, err := h.books.GetBBO(r.Context(), venueID, symbol)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"venue":    venueID,
		"symbol":   symbol,
		"best_bid": bid,
		"best_ask": ask,
	})
}

// GetAnalytics returns derived book metrics for a (venue, symbol) pair.
// GET /api/orderbook/analytics?venue=okx&symbol=BTC-USDT
func (h *BookHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	venueID, symbol, err := bookParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.books.GetBook(venueID, symbol)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"venue":          snap.Venue,
		"symbol":         snap.Symbol,
		"best_bid":       snap.BestBid(),
		"best_ask":       snap.BestAsk(),
		"mid_price":      sim.MidPrice(snap),
		"spread":         sim.Spread(snap),
		"spread_percent": sim.SpreadPercent(snap),
		"imbalance":      sim.Imbalance(snap),
		"observed_at":    snap.ObservedAt.Format(time.RFC3339Nano),
	})
}

// ListBooks returns every (venue, symbol) key with a live snapshot.
// GET /api/orderbook/keys
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": h.books.Keys(),
	})
}
