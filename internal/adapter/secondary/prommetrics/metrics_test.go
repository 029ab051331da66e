package prommetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

func TestMetrics_counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg).(*Metrics)

	m.MessageSent("work-queue-requests")
	m.MessageSent("work-queue-requests")
	m.MessageQueued("work-queue-requests")
	m.MessageNoop("audit")
	m.MessageRejected("work-queue-requests", "queue_full")
	m.ReconnectAttempt()
	m.QueueDepth(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sentTotal.WithLabelValues("work-queue-requests")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queuedTotal.WithLabelValues("work-queue-requests")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.noopTotal.WithLabelValues("audit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal.WithLabelValues("work-queue-requests", "queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnectTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
}

func TestMetrics_ConnectionState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg).(*Metrics)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState.WithLabelValues("disconnected")))

	m.ConnectionState(entity.StateOpen)
	for _, s := range entity.AllConnectionStates() {
		want := 0.0
		if s == entity.StateOpen {
			want = 1
		}
		assert.Equal(t, want, testutil.ToFloat64(m.connectionState.WithLabelValues(s.String())), s.String())
	}
}

func TestNew_registersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	n, err := testutil.GatherAndCount(reg, "outbound_connection_state", "outbound_queue_depth")
	require.NoError(t, err)
	assert.Equal(t, len(entity.AllConnectionStates())+1, n)
}
