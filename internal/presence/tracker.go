// Package presence tracks peer liveness with periodic heartbeat probes.
package presence

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/metrics"
	"github.com/arakichanxd/Agent-Connect/internal/models"
	"github.com/arakichanxd/Agent-Connect/internal/outbound"
	"github.com/arakichanxd/Agent-Connect/internal/store"
)

const (
	// DefaultInterval is the probe period.
	DefaultInterval = 30 * time.Second
	// DefaultOfflineAfter is 3x the probe period, tolerating one missed beat.
	DefaultOfflineAfter = 90 * time.Second
)

// Tracker periodically probes every paired peer and classifies peers
// online/offline from their last recorded heartbeat. Probe failures are
// swallowed: an unresponsive peer simply ages into the offline state.
type Tracker struct {
	store        store.Store
	client       *outbound.Client
	logger       zerolog.Logger
	clock        clock.Clock
	agentName    string
	interval     time.Duration
	offlineAfter time.Duration
}

// Options configures a Tracker. Zero durations fall back to defaults and a
// nil Clock uses the real clock.
type Options struct {
	Store        store.Store
	Client       *outbound.Client
	Logger       zerolog.Logger
	Clock        clock.Clock
	AgentName    string
	Interval     time.Duration
	OfflineAfter time.Duration
}

// NewTracker creates a presence tracker.
func NewTracker(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.OfflineAfter <= 0 {
		opts.OfflineAfter = DefaultOfflineAfter
	}
	return &Tracker{
		store:        opts.Store,
		client:       opts.Client,
		logger:       opts.Logger,
		clock:        opts.Clock,
		agentName:    opts.AgentName,
		interval:     opts.Interval,
		offlineAfter: opts.OfflineAfter,
	}
}

// Run probes all paired peers every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Probe(ctx)
		}
	}
}

// Probe sends one round of heartbeats to every paired peer. Each probe runs
// in its own goroutine with its own timeout; Probe returns once all have
// completed.
func (t *Tracker) Probe(ctx context.Context) {
	peers, err := t.store.ListPeers(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("presence probe: listing peers failed")
		return
	}

	done := make(chan struct{})
	inflight := 0
	for _, peer := range peers {
		if peer.Status != models.StatusPaired {
			continue
		}
		inflight++
		go func(p *models.Peer) {
			defer func() { done <- struct{}{} }()
			if err := t.client.Heartbeat(ctx, p.URL, p.Secret, t.agentName); err != nil {
				// Absence of a response is not an error condition; the peer
				// will eventually classify as offline.
				t.logger.Debug().Err(err).Str("peer", p.Name).Msg("heartbeat probe failed")
				return
			}
			metrics.HeartbeatsSent.Inc()
		}(peer)
	}
	for i := 0; i < inflight; i++ {
		<-done
	}
}

// Online classifies a peer from its last recorded heartbeat. A peer with no
// recorded heartbeat is always offline.
func (t *Tracker) Online(peer *models.Peer) bool {
	if peer.LastHeartbeatAt == nil {
		return false
	}
	return t.clock.Now().Sub(*peer.LastHeartbeatAt) < t.offlineAfter
}
