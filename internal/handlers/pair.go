package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arakichanxd/Agent-Connect/internal/api/middleware"
	"github.com/arakichanxd/Agent-Connect/internal/metrics"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
)

// PairRequestBody represents an inbound pairing request.
type PairRequestBody struct {
	From       string `json:"from"`
	Token      string `json:"token"`
	WebhookURL string `json:"webhook_url"`
}

// PairRequest handles POST /pair-request. The endpoint is unauthenticated,
// so the source-address rate limit is checked before anything else.
func (h *Handler) PairRequest(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimit(w, r, "pair:"+middleware.RealIP(r), middleware.PairRequestLimit) {
		metrics.RateLimitHits.WithLabelValues("pair_request").Inc()
		return
	}

	var req PairRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.From == "" || req.Token == "" || req.WebhookURL == "" {
		h.Error(w, http.StatusBadRequest, "from, token and webhook_url are required")
		return
	}
	if !peers.ValidName(req.From) {
		h.Error(w, http.StatusBadRequest, "invalid peer name")
		return
	}
	if len(req.Token) < peers.MinSecretLen {
		h.Error(w, http.StatusBadRequest, "token too short")
		return
	}

	if err := h.peers.ReceiveRequest(r.Context(), req.From, req.Token, req.WebhookURL); err != nil {
		if errors.Is(err, peers.ErrConflict) {
			h.Error(w, http.StatusConflict, "already paired")
			return
		}
		h.logger.Error().Err(err).Str("peer", req.From).Msg("pair request failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{
		"status": "pending",
		"agent":  h.agentName,
	})
}

// PairAcceptBody represents the remote side's accept notification.
type PairAcceptBody struct {
	From       string `json:"from"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

// PairAccept handles POST /pair-accept. The bearer token must equal the
// shared secret stored for the named peer.
func (h *Handler) PairAccept(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req PairAcceptBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.From == "" || !peers.ValidName(req.From) {
		h.Error(w, http.StatusBadRequest, "from is required")
		return
	}

	if err := h.peers.ReceiveAccept(r.Context(), req.From, token, req.WebhookURL); err != nil {
		switch {
		case errors.Is(err, peers.ErrNotFound):
			h.Error(w, http.StatusNotFound, "unknown peer")
		case errors.Is(err, peers.ErrAuth):
			h.Error(w, http.StatusUnauthorized, "invalid credentials")
		default:
			h.logger.Error().Err(err).Str("peer", req.From).Msg("pair accept failed")
			h.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "paired"})
}
