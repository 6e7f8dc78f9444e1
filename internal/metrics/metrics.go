package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentconnect_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentconnect_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Protocol metrics
	PairRequestsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_pair_requests_received_total",
			Help: "Total inbound pairing requests",
		},
	)

	PairingsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_pairings_completed_total",
			Help: "Total pairings that reached the paired state",
		},
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentconnect_messages_received_total",
			Help: "Total inbound messages",
		},
		[]string{"encrypted"}, // "true" or "false"
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_messages_sent_total",
			Help: "Total outbound messages",
		},
	)

	DecryptFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_decrypt_failures_total",
			Help: "Total messages dropped due to decryption failure",
		},
	)

	HeartbeatsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_heartbeats_received_total",
			Help: "Total inbound heartbeats",
		},
	)

	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_heartbeats_sent_total",
			Help: "Total outbound heartbeat probes",
		},
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentconnect_broadcast_deliveries_total",
			Help: "Total per-member broadcast delivery outcomes",
		},
		[]string{"outcome"}, // "delivered", "not_paired", "failed"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentconnect_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"scope"}, // "message" or "pair_request"
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentconnect_auth_failures_total",
			Help: "Total bearer authentication failures",
		},
	)
)
