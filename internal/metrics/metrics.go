package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_backend_requests_total",
			Help: "Total number of backend API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	backendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiekky_client_backend_request_seconds",
			Help:    "Backend API call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	connectionMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_connection_mutations_total",
			Help: "Connection request mutations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	syncPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_sync_polls_total",
			Help: "Conversation log fetches by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	handshakePhases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_session_handshake_total",
			Help: "Session handshake results by role and resulting phase",
		},
		[]string{"role", "phase"},
	)

	favoriteToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiekky_client_favorite_toggles_total",
			Help: "Favorite toggles by resulting membership",
		},
		[]string{"favorite"},
	)

	gatewayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiekky_client_gateway_ws_connections",
			Help: "Active UI websocket connections",
		},
	)
)

func RecordBackendRequest(operation, outcome string, duration time.Duration) {
	backendRequestsTotal.WithLabelValues(operation, outcome).Inc()
	backendLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordConnectionMutation(action, outcome string) {
	connectionMutationsTotal.WithLabelValues(action, outcome).Inc()
}

func RecordSyncPoll(trigger, outcome string) {
	syncPollsTotal.WithLabelValues(trigger, outcome).Inc()
}

func RecordHandshake(role, phase string) {
	handshakePhases.WithLabelValues(role, phase).Inc()
}

func RecordFavoriteToggle(favorite bool) {
	label := "false"
	if favorite {
		label = "true"
	}
	favoriteToggles.WithLabelValues(label).Inc()
}

func IncGatewayConnections() {
	gatewayConnections.Inc()
}

func DecGatewayConnections() {
	gatewayConnections.Dec()
}
