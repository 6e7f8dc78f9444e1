package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Limit defines a fixed-window rate limit.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Per-scope limits. Messages are throttled per peer name; pairing requests
// are throttled per source address, since the peer isn't known yet on the
// unauthenticated endpoint.
var (
	MessageLimit     = Limit{Requests: 10, Window: time.Minute}
	PairRequestLimit = Limit{Requests: 5, Window: 10 * time.Minute}
)

type window struct {
	count int
	start time.Time
}

// Limiter implements fixed-window rate limiting with lazily created,
// in-memory windows. State is deliberately not persisted across restarts.
// A periodic sweep evicts expired windows so the table stays bounded.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]window
	clock        clock.Clock
	logger       zerolog.Logger
	whitelist    []*net.IPNet
	whitelistIPs map[string]bool
}

// NewLimiter creates a rate limiter. whitelist entries are single IPs or
// CIDRs exempt from limiting. A nil clk uses the real clock.
func NewLimiter(clk clock.Clock, logger zerolog.Logger, whitelist []string) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	l := &Limiter{
		windows:      make(map[string]window),
		clock:        clk,
		logger:       logger,
		whitelistIPs: make(map[string]bool),
	}

	for _, entry := range whitelist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			l.whitelist = append(l.whitelist, ipNet)
		} else {
			l.whitelistIPs[entry] = true
		}
	}

	return l
}

// Allow checks and increments the counter for key. The window resets rather
// than slides: once it has expired the counter restarts at zero.
// Returns (allowed, remaining, resetAt).
func (l *Limiter) Allow(key string, limit Limit) (bool, int, time.Time) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= limit.Window {
		w = window{count: 0, start: now}
	}

	resetAt := w.start.Add(limit.Window)
	if w.count >= limit.Requests {
		l.windows[key] = w
		return false, 0, resetAt
	}

	w.count++
	l.windows[key] = w
	return true, limit.Requests - w.count, resetAt
}

// IsWhitelisted checks if an IP is exempt from rate limiting.
func (l *Limiter) IsWhitelisted(ipStr string) bool {
	if l.whitelistIPs[ipStr] {
		return true
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range l.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// Sweep evicts windows older than the longest configured limit window.
func (l *Limiter) Sweep() {
	now := l.clock.Now()
	maxWindow := MessageLimit.Window
	if PairRequestLimit.Window > maxWindow {
		maxWindow = PairRequestLimit.Window
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= maxWindow {
			delete(l.windows, key)
		}
	}
}

// SweepLoop runs Sweep at the given interval until ctx is cancelled.
func (l *Limiter) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := l.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
