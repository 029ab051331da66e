package prommetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

const namespace = "outbound"

// Metrics implements secondary.Metrics with Prometheus collectors.
type Metrics struct {
	sentTotal      *prometheus.CounterVec
	queuedTotal    *prometheus.CounterVec
	noopTotal      *prometheus.CounterVec
	rejectedTotal  *prometheus.CounterVec
	reconnectTotal prometheus.Counter

	connectionState *prometheus.GaugeVec
	queueDepth      prometheus.Gauge
}

// New registers the producer collectors on reg.
func New(reg prometheus.Registerer) secondary.Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		sentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages handed to the broker transport.",
		}, []string{"destination"}),
		queuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_queued_total",
			Help:      "Total number of messages buffered while the connection was not open.",
		}, []string{"destination"}),
		noopTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_noop_total",
			Help:      "Total number of messages accepted in no-op mode without delivery.",
		}, []string{"destination"}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Total number of messages rejected, by reason.",
		}, []string{"destination", "reason"}),
		reconnectTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of scheduled reconnect attempts.",
		}),
		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of buffered messages.",
		}),
	}

	m.ConnectionState(entity.StateDisconnected)
	return m
}

func (m *Metrics) MessageSent(destination string) {
	m.sentTotal.WithLabelValues(destination).Inc()
}

func (m *Metrics) MessageQueued(destination string) {
	m.queuedTotal.WithLabelValues(destination).Inc()
}

func (m *Metrics) MessageNoop(destination string) {
	m.noopTotal.WithLabelValues(destination).Inc()
}

func (m *Metrics) MessageRejected(destination, reason string) {
	m.rejectedTotal.WithLabelValues(destination, reason).Inc()
}

// ConnectionState sets the gauge of state to 1 and every other state to 0.
func (m *Metrics) ConnectionState(state entity.ConnectionState) {
	for _, s := range entity.AllConnectionStates() {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connectionState.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) ReconnectAttempt() {
	m.reconnectTotal.Inc()
}

func (m *Metrics) QueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
