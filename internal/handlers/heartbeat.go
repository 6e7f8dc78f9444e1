package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arakichanxd/Agent-Connect/internal/api/middleware"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
)

// HeartbeatBody represents an inbound liveness probe.
type HeartbeatBody struct {
	From string `json:"from"`
}

// Heartbeat handles POST /heartbeat: authenticate, stamp, done.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req HeartbeatBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.From == "" || !peers.ValidName(req.From) {
		h.Error(w, http.StatusBadRequest, "from is required")
		return
	}

	if _, err := h.peers.Authenticate(r.Context(), req.From, token); err != nil {
		if errors.Is(err, peers.ErrAuth) {
			h.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error().Err(err).Str("peer", req.From).Msg("peer lookup failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.peers.RecordHeartbeat(r.Context(), req.From); err != nil {
		h.logger.Error().Err(err).Str("peer", req.From).Msg("heartbeat stamp failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
