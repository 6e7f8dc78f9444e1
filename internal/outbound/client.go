// Package outbound sends protocol calls to remote peers. Every call carries
// its own timeout; a timeout or network error is reported as a delivery
// failure and never retried at this layer.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Per-call-site timeouts.
const (
	PairRequestTimeout = 10 * time.Second
	PairAcceptTimeout  = 10 * time.Second
	MessageTimeout     = 30 * time.Second
	HeartbeatTimeout   = 5 * time.Second
)

// Client delivers outbound protocol calls to peer webhook endpoints.
type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates an outbound client. The underlying http.Client carries
// no global timeout; each call is bounded by its own context deadline.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{},
		logger: logger,
	}
}

// PairRequest sends an unauthenticated pairing request carrying the freshly
// generated shared secret to the remote endpoint.
func (c *Client) PairRequest(ctx context.Context, peerURL, from, token, webhookURL string) error {
	body := map[string]string{
		"from":        from,
		"token":       token,
		"webhook_url": webhookURL,
	}
	return c.post(ctx, peerURL, "/pair-request", "", body, PairRequestTimeout)
}

// PairAccept notifies the remote side that pairing was accepted, using the
// shared secret as bearer credential.
func (c *Client) PairAccept(ctx context.Context, peerURL, secret, from, webhookURL string) error {
	body := map[string]string{
		"from":        from,
		"webhook_url": webhookURL,
	}
	return c.post(ctx, peerURL, "/pair-accept", secret, body, PairAcceptTimeout)
}

// Message delivers an encrypted message blob to a peer.
func (c *Client) Message(ctx context.Context, peerURL, secret, from, blob string) error {
	body := map[string]any{
		"from":      from,
		"message":   blob,
		"encrypted": true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return c.post(ctx, peerURL, "/message", secret, body, MessageTimeout)
}

// Heartbeat sends an authenticated liveness probe to a peer.
func (c *Client) Heartbeat(ctx context.Context, peerURL, secret, from string) error {
	body := map[string]string{"from": from}
	return c.post(ctx, peerURL, "/heartbeat", secret, body, HeartbeatTimeout)
}

func (c *Client) post(ctx context.Context, baseURL, path, bearer string, body any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("deliver %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the log, then discard
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		c.logger.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Msg("peer rejected outbound call")
		return fmt.Errorf("deliver %s: peer returned status %d", path, resp.StatusCode)
	}
	return nil
}
