package handler

import (
	"net/http"
)

// LiveChannel reports the state of the live event connection.
type LiveChannel interface {
	IsConnected() bool
	Registered() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	live LiveChannel
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(live LiveChannel) *HealthHandler {
	return &HealthHandler{
		live: live,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The console stays usable over REST while the
// live channel is down, so readiness only reports it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.live == nil || !h.live.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"reason": "live channel not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"registered": h.live.Registered(),
	})
}
