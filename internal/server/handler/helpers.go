// Package handler implements the HTTP API endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/depthlab/bookwatch/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps well-known domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRegistryFull):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// bookParams extracts the venue and symbol query parameters shared by the
// book and simulation endpoints.
func bookParams(r *http.Request) (domain.VenueID, string, error) {
	q := r.URL.Query()
	venue := domain.VenueID(q.Get("venue"))
	if !venue.Valid() {
		return "", "", errors.New("venue must be one of: okx, bybit, deribit")
	}
	symbol := q.Get("symbol")
	if symbol == "" {
		return "", "", errors.New("symbol must not be empty")
	}
	return venue, symbol, nil
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
