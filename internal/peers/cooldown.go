package peers

import (
	"time"

	"github.com/arakichanxd/Agent-Connect/internal/models"
)

// Cooldown bounds automatic reply loops. It is a pure read of current
// history, recomputed on every inbound message: once old entries age out of
// the trailing window the next evaluation self-corrects.
type Cooldown struct {
	MaxExchanges int
	Window       time.Duration
}

// Over reports whether the peer has reached the exchange threshold within
// the trailing window ending at now. A non-positive MaxExchanges disables
// the gate entirely.
func (c Cooldown) Over(peer *models.Peer, now time.Time) bool {
	if c.MaxExchanges <= 0 {
		return false
	}
	return peer.RecentExchanges(now, c.Window) >= c.MaxExchanges
}
