package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/feed"
)

// FeedHandler exposes feed subscription control and connection status.
type FeedHandler struct {
	manager *feed.Manager
	logger  *slog.Logger
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(manager *feed.Manager, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		manager: manager,
		logger:  logger.With(slog.String("handler", "feed")),
	}
}

// feedRequest is the JSON body for subscribe requests.
type feedRequest struct {
	Venue  string `json:"venue"`
	Symbol string `json:"symbol"`
}

// Status returns the connection status of every active venue feed.
// GET /api/status
func (h *FeedHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": h.manager.Statuses(),
	})
}

// Subscribe starts (or restarts) a venue feed for a symbol. Re-subscribing
// is also the manual reset path out of the terminal failed state.
// POST /api/feeds
func (h *FeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.manager.Subscribe(domain.VenueID(req.Venue), req.Symbol); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, _ := h.manager.Status(domain.VenueID(req.Venue))
	writeJSON(w, http.StatusOK, status)
}

// Teardown disconnects the feed for a venue.
// DELETE /api/feeds/{venue}
func (h *FeedHandler) Teardown(w http.ResponseWriter, r *http.Request) {
	venueID := domain.VenueID(pathParam(r, "venue"))
	if !venueID.Valid() {
		writeError(w, http.StatusBadRequest, "unknown venue")
		return
	}
	h.manager.Teardown(venueID)
	w.WriteHeader(http.StatusNoContent)
}
