// Package broadcast fans one message out to every member of a group.
//
// Each member gets its own pairwise encryption (there is no shared group
// key) and its own delivery attempt with an independent timeout. One
// member failing never aborts the batch; the caller receives the full
// per-member outcome set.
package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/metrics"
	"github.com/arakichanxd/Agent-Connect/internal/models"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
)

// Outcome classifies a per-member delivery result.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeNotPaired Outcome = "not_paired"
	OutcomeFailed    Outcome = "failed"
)

// Result is one member's delivery outcome.
type Result struct {
	Member  string  `json:"member"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// Report is the full result set for one broadcast.
type Report struct {
	ID      string   `json:"id"`
	Group   string   `json:"group"`
	Results []Result `json:"results"`
}

// Delivered counts successful deliveries.
func (r *Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeDelivered {
			n++
		}
	}
	return n
}

// Coordinator drives broadcast fan-out through the peer service, which
// handles per-member encryption, delivery and history recording.
type Coordinator struct {
	peers  *peers.Service
	logger zerolog.Logger
}

// NewCoordinator creates a broadcast coordinator.
func NewCoordinator(svc *peers.Service, logger zerolog.Logger) *Coordinator {
	return &Coordinator{peers: svc, logger: logger}
}

// Send delivers content to every member of the group concurrently and
// collects per-member outcomes. Results are ordered as the membership list.
func (c *Coordinator) Send(ctx context.Context, group *models.Group, content string) *Report {
	report := &Report{
		ID:      uuid.NewString(),
		Group:   group.Name,
		Results: make([]Result, len(group.Members)),
	}

	var wg sync.WaitGroup
	for i, member := range group.Members {
		wg.Add(1)
		go func(i int, member string) {
			defer wg.Done()
			report.Results[i] = c.sendOne(ctx, member, content)
		}(i, member)
	}
	wg.Wait()

	for _, res := range report.Results {
		metrics.BroadcastDeliveries.WithLabelValues(string(res.Outcome)).Inc()
	}
	c.logger.Info().
		Str("broadcast_id", report.ID).
		Str("group", group.Name).
		Int("members", len(group.Members)).
		Int("delivered", report.Delivered()).
		Msg("broadcast completed")

	return report
}

func (c *Coordinator) sendOne(ctx context.Context, member, content string) Result {
	err := c.peers.Send(ctx, member, content)
	switch {
	case err == nil:
		return Result{Member: member, Outcome: OutcomeDelivered}
	case errors.Is(err, peers.ErrNotFound), errors.Is(err, peers.ErrNotPaired):
		// Membership drifted past the peer's removal; fails per-recipient
		return Result{Member: member, Outcome: OutcomeNotPaired, Error: err.Error()}
	default:
		return Result{Member: member, Outcome: OutcomeFailed, Error: err.Error()}
	}
}
