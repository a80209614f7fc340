package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/service"
)

// SimHandler serves one-off impact simulations and the tracked-order CRUD.
type SimHandler struct {
	sims   *service.SimService
	logger *slog.Logger
}

// NewSimHandler creates a SimHandler.
func NewSimHandler(sims *service.SimService, logger *slog.Logger) *SimHandler {
	return &SimHandler{
		sims:   sims,
		logger: logger.With(slog.String("handler", "sim")),
	}
}

// simRequest is the JSON body shared by the simulate and track endpoints.
type simRequest struct {
	Venue      string   `json:"venue"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	LimitPrice *float64 `json:"limit_price,omitempty"`
	DelaySec   int      `json:"delay_sec,omitempty"`
}

func (req simRequest) order() domain.SimulatedOrder {
	return domain.SimulatedOrder{
		Side:       domain.OrderSide(req.Side),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	}
}

// Simulate computes the impact of a hypothetical order against the current
// book without registering it.
// POST /api/simulate
func (h *SimHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	impact, err := h.sims.Simulate(domain.VenueID(req.Venue), req.Symbol, req.order())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"venue":  req.Venue,
		"symbol": req.Symbol,
		"impact": impact,
	})
}

// TrackOrder registers a simulated order for continuous re-evaluation.
// POST /api/orders
func (h *SimHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	var req simRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tracked, err := h.sims.Track(r.Context(), domain.VenueID(req.Venue), req.Symbol, req.order(), req.DelaySec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tracked)
}

// ListOrders returns every tracked order.
// GET /api/orders
func (h *SimHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": h.sims.List(),
	})
}

// GetOrder returns one tracked order by ID.
// GET /api/orders/{id}
func (h *SimHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	tracked, err := h.sims.Get(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracked)
}

// RemoveOrder deletes a tracked order by ID.
// DELETE /api/orders/{id}
func (h *SimHandler) RemoveOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.sims.Remove(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
