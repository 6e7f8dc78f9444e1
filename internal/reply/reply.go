// Package reply defines the capability invoked to produce automatic
// replies. The core supplies conversation context and the trigger point;
// whether the trigger fires at all is gated by cooldown accounting.
package reply

import (
	"context"

	"github.com/arakichanxd/Agent-Connect/internal/models"
)

// Context carries the latest conversation state for reply generation.
type Context struct {
	Peer     string
	Incoming string
	History  []models.Message
}

// Generator produces outbound content from conversation context.
type Generator interface {
	GenerateReply(ctx context.Context, rc Context) (string, error)
}

// Static always replies with the same text. Useful for acknowledgement-style
// auto-replies and in tests.
type Static struct {
	Text string
}

func (s Static) GenerateReply(_ context.Context, _ Context) (string, error) {
	return s.Text, nil
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, rc Context) (string, error)

func (f Func) GenerateReply(ctx context.Context, rc Context) (string, error) {
	return f(ctx, rc)
}
