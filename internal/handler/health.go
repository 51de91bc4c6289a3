package handler

import (
	"net/http"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	nats     ReadinessChecker
	provider string
}

// NewHealthHandler creates a new health handler. nats may be nil when NATS is
// not configured.
func NewHealthHandler(nats ReadinessChecker, provider string) *HealthHandler {
	return &HealthHandler{
		nats:     nats,
		provider: provider,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.nats != nil && !h.nats.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"provider": h.provider,
	})
}
