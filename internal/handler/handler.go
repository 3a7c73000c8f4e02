// Package handler exposes the dashboard over JSON: submitting URLs,
// reading a session's history and display state, and the probes.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/webpulse/webpulse/internal/handler/dto"
)

// Handler serves the root document and the router fallbacks.
type Handler struct {
	version string
}

func New(version string) *Handler {
	return &Handler{version: version}
}

// IndexResponse describes the service and its API.
type IndexResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Service: "webpulse",
		Version: h.version,
		Endpoints: []string{
			"POST /api/v1/reports",
			"GET /api/v1/reports",
			"GET /api/v1/reports/{id}",
			"GET /api/v1/session",
		},
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; the client sees a truncated body.
		slog.Debug("encode response", "error", err)
	}
}
