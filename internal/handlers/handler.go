package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/api/middleware"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	peers     *peers.Service
	limiter   *middleware.Limiter
	logger    zerolog.Logger
	clock     clock.Clock
	agentName string
	startedAt time.Time
}

// NewHandler creates a new Handler. A nil clk uses the real clock.
func NewHandler(svc *peers.Service, limiter *middleware.Limiter, logger zerolog.Logger, agentName string, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	return &Handler{
		peers:     svc,
		limiter:   limiter,
		logger:    logger,
		clock:     clk,
		agentName: agentName,
		startedAt: clk.Now(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// rateLimit applies a fixed-window limit for key and writes the standard
// rate limit headers. Returns false (after responding 429 with a retry
// hint) when the request must be rejected.
func (h *Handler) rateLimit(w http.ResponseWriter, r *http.Request, key string, limit middleware.Limit) bool {
	if h.limiter.IsWhitelisted(middleware.RealIP(r)) {
		return true
	}

	allowed, remaining, resetAt := h.limiter.Allow(key, limit)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

	if !allowed {
		retryAfter := int(time.Until(resetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}
