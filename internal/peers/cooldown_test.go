package peers

import (
	"testing"
	"time"

	"github.com/arakichanxd/Agent-Connect/internal/models"
)

func TestCooldownThreshold(t *testing.T) {
	now := time.Now().UTC()
	c := Cooldown{MaxExchanges: 3, Window: 30 * time.Minute}

	peer := &models.Peer{Name: "alice", Status: models.StatusPaired}
	for _, age := range []time.Duration{time.Minute, 2 * time.Minute, 29 * time.Minute} {
		peer.AppendHistory(models.Message{
			Content:   "m",
			Timestamp: now.Add(-age),
			Direction: models.DirectionIncoming,
		})
	}

	if !c.Over(peer, now) {
		t.Fatal("3 recent exchanges with threshold 3 should be over cooldown")
	}

	// 5 minutes later the 29-minute-old entry has aged out of the window
	// and only two exchanges remain.
	later := now.Add(5 * time.Minute)
	if c.Over(peer, later) {
		t.Fatal("2 remaining exchanges should be under cooldown")
	}
}

func TestCooldownCountsBothDirections(t *testing.T) {
	now := time.Now().UTC()
	c := Cooldown{MaxExchanges: 2, Window: 30 * time.Minute}

	peer := &models.Peer{Name: "alice"}
	peer.AppendHistory(models.Message{Timestamp: now.Add(-time.Minute), Direction: models.DirectionIncoming})
	peer.AppendHistory(models.Message{Timestamp: now.Add(-time.Minute), Direction: models.DirectionOutgoing})

	if !c.Over(peer, now) {
		t.Fatal("both directions must count toward the threshold")
	}
}

func TestCooldownDisabled(t *testing.T) {
	now := time.Now().UTC()
	c := Cooldown{MaxExchanges: 0, Window: 30 * time.Minute}

	peer := &models.Peer{Name: "alice"}
	for i := 0; i < 50; i++ {
		peer.AppendHistory(models.Message{Timestamp: now, Direction: models.DirectionIncoming})
	}
	if c.Over(peer, now) {
		t.Fatal("zero threshold disables the gate")
	}
}
