// Package notify delivers structured events to a monitoring channel.
// Delivery is fire-and-forget: sinks never block protocol handling and
// failures are ignored by the core.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType classifies notification events.
type EventType string

const (
	EventMessageIn      EventType = "message_in"
	EventMessageOut     EventType = "message_out"
	EventPairRequested  EventType = "pair_requested"
	EventPairAccepted   EventType = "pair_accepted"
	EventPairRemoved    EventType = "pair_removed"
	EventFileReceived   EventType = "file_received"
	EventServiceStarted EventType = "service_started"
	EventServiceStopped EventType = "service_stopped"
)

// Event is a structured notification about protocol activity.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Peer   string    `json:"peer,omitempty"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(typ EventType, peer, detail string) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   typ,
		Peer:   peer,
		Detail: detail,
		Time:   time.Now().UTC(),
	}
}

// Sink receives events. Implementations must not block and must swallow
// their own delivery failures.
type Sink interface {
	Notify(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Notify(Event) {}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Notify(event Event) {
	s.Logger.Info().
		Str("event_id", event.ID).
		Str("event", string(event.Type)).
		Str("peer", event.Peer).
		Str("detail", event.Detail).
		Msg("notification")
}

// WebhookSink posts events as JSON to an external webhook. Each delivery
// runs in its own goroutine with a short timeout; errors are ignored.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

// NewWebhookSink creates a webhook sink with a 5 second delivery timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSink) Notify(event Event) {
	go func() {
		body, err := json.Marshal(event)
		if err != nil {
			return
		}
		resp, err := s.Client.Post(s.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			return
		}
		resp.Body.Close()
	}()
}

// Multi fans one event out to several sinks.
type Multi []Sink

func (m Multi) Notify(event Event) {
	for _, sink := range m {
		sink.Notify(event)
	}
}
