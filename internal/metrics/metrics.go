// Package metrics defines the Prometheus collectors exported on the
// metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics. Requests are labelled by the dispatch rule that answered
// them rather than the raw path to keep cardinality bounded.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_backend_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "rule", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_backend_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "rule"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_backend_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Lifecycle metrics
var (
	ServerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_backend_server_state",
			Help: "1 for the lifecycle state the server is currently in, 0 otherwise",
		},
		[]string{"state"},
	)

	DBConnectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_backend_db_connect_duration_seconds",
			Help:    "Time taken to establish the database connection",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	DBConnectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_backend_db_connect_total",
			Help: "Database connection attempts by outcome",
		},
		[]string{"status"},
	)
)

// Chat metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_backend_auth_attempts_total",
			Help: "Login and signup attempts by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_backend_messages_sent_total",
			Help: "Total number of direct messages stored",
		},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_backend_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_backend_online_users",
			Help: "Number of distinct users with at least one realtime connection",
		},
	)
)

// SetServerState marks state as current and clears every other known state
func SetServerState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		ServerState.WithLabelValues(s).Set(v)
	}
}
