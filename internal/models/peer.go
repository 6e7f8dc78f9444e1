package models

import "time"

// PeerStatus is the lifecycle state of a pairing relationship.
// There is no "removed" state: deleting the record means removed.
type PeerStatus string

const (
	StatusPending PeerStatus = "pending"
	StatusPaired  PeerStatus = "paired"
)

// Direction marks whether a message was received or sent.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// MaxHistory bounds the per-peer message history; oldest entries are evicted first.
const MaxHistory = 100

// Message is one entry in a peer's conversation history, stored post-decryption.
type Message struct {
	ID        string    `json:"id"`
	Peer      string    `json:"peer"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
	Direction Direction `json:"direction"`
}

// Peer represents a pairing relationship with a remote agent.
// Secret is fixed at creation and never rotated; it serves both as the
// bearer credential and as the encryption key material.
type Peer struct {
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	Secret          string     `json:"secret"`
	Status          PeerStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	PairedAt        *time.Time `json:"paired_at,omitempty"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	History         []Message  `json:"history,omitempty"`
}

// AppendHistory adds a message to the history, evicting the oldest entries
// beyond MaxHistory.
func (p *Peer) AppendHistory(m Message) {
	p.History = append(p.History, m)
	if len(p.History) > MaxHistory {
		p.History = p.History[len(p.History)-MaxHistory:]
	}
}

// RecentExchanges counts history entries in either direction whose timestamp
// falls within the trailing window ending at now.
func (p *Peer) RecentExchanges(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, m := range p.History {
		if m.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}
