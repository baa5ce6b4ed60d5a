package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcaster metrics
var (
	// ConnectedClients tracks currently connected WebSocket subscribers by group.
	ConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_connected_clients",
			Help: "Currently connected WebSocket subscribers by group",
		},
		[]string{"group"},
	)

	// MessagesSentTotal tracks messages enqueued to subscribers by group.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Total messages enqueued to subscribers by group",
		},
		[]string{"group"},
	)

	// SlowClientsEvicted tracks subscribers pruned because their send buffer filled.
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_slow_clients_evicted_total",
			Help: "Subscribers disconnected because their send buffer was full",
		},
	)

	// BroadcastDuration tracks time spent fanning one message out to a group.
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_broadcast_duration_seconds",
			Help:    "Time spent fanning a message out to one subscriber group",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

// Poller metrics
var (
	// PollFailuresTotal tracks poll ticks skipped due to store errors.
	PollFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_poll_failures_total",
			Help: "Poll ticks skipped because the latest-location query failed",
		},
	)

	// LocationsBroadcastTotal tracks location samples handed to the broadcaster.
	LocationsBroadcastTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_locations_broadcast_total",
			Help: "Location samples handed to the broadcaster by the poller",
		},
	)
)

// Database metrics
var (
	// DBQueryDuration tracks query latency by statement kind.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_db_query_duration_seconds",
			Help:    "Database query duration by statement kind",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks failed queries by statement kind.
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_db_errors_total",
			Help: "Failed database queries by statement kind",
		},
		[]string{"query"},
	)
)

// Ingress metrics
var (
	// LocationWritesTotal tracks POST /mobile outcomes by status.
	LocationWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_location_writes_total",
			Help: "Location write requests by outcome",
		},
		[]string{"status"},
	)

	// CommentWritesTotal tracks POST /comment outcomes by status.
	CommentWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_comment_writes_total",
			Help: "Comment write requests by outcome",
		},
		[]string{"status"},
	)
)
