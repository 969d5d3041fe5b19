package handlers

import (
	"io"
	"log/slog"
	"net/http"
)

// HealthHandler answers liveness checks for the similarity API.
type HealthHandler struct{}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check handles GET /health. It reports that the process is serving and never calls the
// embedding provider, so a slow or failing provider does not fail the check.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, "OK"); err != nil {
		slog.DebugContext(r.Context(), "health check client went away before response was written", "error", err)
	}
}
