package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/arakichanxd/Agent-Connect/internal/api/middleware"
	"github.com/arakichanxd/Agent-Connect/internal/crypto"
	"github.com/arakichanxd/Agent-Connect/internal/metrics"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
)

// MessageBody represents an inbound message delivery.
type MessageBody struct {
	From        string `json:"from"`
	Message     string `json:"message"`
	Encrypted   bool   `json:"encrypted"`
	MessageType string `json:"message_type,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Message handles POST /message. Check order: validation, then auth, then
// the per-peer rate limit, then decryption, and only then state mutation.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req MessageBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.From == "" || !peers.ValidName(req.From) {
		h.Error(w, http.StatusBadRequest, "from is required")
		return
	}
	if req.Message == "" {
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	// Auth resolves the peer; an unknown name answers the same as a bad
	// secret so the endpoint can't be used to enumerate peers.
	peer, err := h.peers.Authenticate(r.Context(), req.From, token)
	if err != nil {
		if errors.Is(err, peers.ErrAuth) {
			h.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error().Err(err).Str("peer", req.From).Msg("peer lookup failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !h.rateLimit(w, r, "peer:"+req.From, middleware.MessageLimit) {
		metrics.RateLimitHits.WithLabelValues("message").Inc()
		return
	}

	content := req.Message
	if req.Encrypted {
		content, err = crypto.Decrypt(req.Message, peer.Secret)
		if err != nil {
			// Tamper or wrong key: drop the message, leak nothing
			metrics.DecryptFailures.Inc()
			h.logger.Warn().Str("peer", req.From).Msg("dropping undecryptable message")
			h.Error(w, http.StatusBadRequest, "invalid message")
			return
		}
	}

	isFile := req.MessageType == "file"
	replied, err := h.peers.ReceiveMessage(r.Context(), req.From, content, isFile)
	if err != nil {
		h.logger.Error().Err(err).Str("peer", req.From).Msg("message handling failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	metrics.MessagesReceived.WithLabelValues(strconv.FormatBool(req.Encrypted)).Inc()
	h.JSON(w, http.StatusOK, map[string]any{
		"status":       "delivered",
		"reply_queued": replied,
	})
}
