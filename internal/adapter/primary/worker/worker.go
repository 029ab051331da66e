package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// StatusSource is the view of the connection manager the monitor samples.
type StatusSource interface {
	State() entity.ConnectionState
	QueueDepth(ctx context.Context) (int, error)
}

// Monitor samples the connection state and delivery queue depth at regular
// intervals, publishing them as metrics. It respects context cancellation
// for graceful shutdown.
type Monitor struct {
	source   StatusSource
	metrics  secondary.Metrics
	interval time.Duration
	logger   *zap.Logger

	lastState entity.ConnectionState
	lastDepth int
}

// NewMonitor creates a Monitor that samples at the given interval.
func NewMonitor(
	source StatusSource,
	metrics secondary.Metrics,
	interval time.Duration,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		source:    source,
		metrics:   metrics,
		interval:  interval,
		logger:    logger.Named("queue-monitor"),
		lastState: entity.StateDisconnected,
	}
}

// Run starts the sampling loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("queue monitor started",
		zap.Duration("interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("queue monitor shutting down")
			return ctx.Err()
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	state := m.source.State()
	if state != m.lastState {
		m.logger.Info("connection state changed",
			zap.Stringer("from", m.lastState),
			zap.Stringer("to", state),
		)
		m.lastState = state
	}

	depth, err := m.source.QueueDepth(ctx)
	if err != nil {
		// Log but do not return -- the monitor should keep running.
		m.logger.Error("error reading queue depth", zap.Error(err))
		return
	}

	m.metrics.QueueDepth(depth)
	if depth != m.lastDepth && depth > 0 {
		m.logger.Debug("messages buffered",
			zap.Int("depth", depth),
			zap.Stringer("state", state),
		)
	}
	m.lastDepth = depth
}
