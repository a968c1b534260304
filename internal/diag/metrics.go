package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the bridge's Prometheus collectors. A per-server registry
// keeps repeated construction in tests from colliding.
type metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestErrors  *prometheus.CounterVec
	relayReconnect prometheus.Counter
	relayConnected prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synobridge_requests_total",
			Help: "JSON-RPC requests handled, by transport and method.",
		}, []string{"transport", "method"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synobridge_request_errors_total",
			Help: "JSON-RPC requests that produced an error response.",
		}, []string{"transport", "method"}),
		relayReconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synobridge_relay_reconnects_total",
			Help: "Relay reconnect attempts scheduled.",
		}),
		relayConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "synobridge_relay_connected",
			Help: "Whether the relay WebSocket is currently connected.",
		}),
	}
	m.registry.MustRegister(m.requests, m.requestErrors, m.relayReconnect, m.relayConnected)
	return m
}
