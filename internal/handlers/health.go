package handlers

import (
	"net/http"
	"time"
)

const version = "0.1.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Agent     string `json:"agent"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// Health handles the liveness/info endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now().UTC()
	h.JSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Agent:     h.agentName,
		Version:   version,
		Uptime:    now.Sub(h.startedAt).Truncate(time.Second).String(),
		Timestamp: now.Format(time.RFC3339),
	})
}
