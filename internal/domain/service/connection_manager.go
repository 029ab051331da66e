package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/backoff"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// envelope pairs a message with the receipt its sender is holding.
type envelope struct {
	msg     *entity.OutboundMessage
	receipt *entity.Receipt
}

// ConnectionManager owns the single outbound connection. A single event loop
// goroutine is the only caller of Transport.Send: it connects, drains the
// delivery queue, forwards direct sends and reconnects with backoff.
//
// mu guards state and inbox admission and is never held across I/O.
// queueMu serializes changes to the DeliveryQueue. An Enqueue holds it from the
// state check until the message is buffered, and drain holds it from the
// empty-queue check until the state is Open, so a message is either
// forwarded or buffered, never stranded in between. Lock order is queueMu
// before mu.
type ConnectionManager struct {
	transport   secondary.Transport
	queue       secondary.DeliveryQueue
	policy      backoff.Policy
	metrics     secondary.Metrics
	sendTimeout time.Duration
	logger      *zap.Logger

	queueMu sync.Mutex

	mu       sync.Mutex
	state    entity.ConnectionState
	terminal error
	started  bool
	inbox    chan envelope
	receipts map[string]*entity.Receipt
	cancel   context.CancelFunc

	fatal     chan error
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnectionManager creates a manager in the Disconnected state. The inbox
// for direct sends holds up to inboxSize messages.
func NewConnectionManager(
	transport secondary.Transport,
	queue secondary.DeliveryQueue,
	policy backoff.Policy,
	metrics secondary.Metrics,
	sendTimeout time.Duration,
	inboxSize int,
	logger *zap.Logger,
) *ConnectionManager {
	if sendTimeout <= 0 {
		sendTimeout = domain.DefaultSendTimeout
	}
	if inboxSize <= 0 {
		inboxSize = queue.Capacity()
	}

	return &ConnectionManager{
		transport:   transport,
		queue:       queue,
		policy:      policy,
		metrics:     metrics,
		sendTimeout: sendTimeout,
		logger:      logger.Named("connection-manager").With(zap.String("transport", transport.Name())),
		state:       entity.StateDisconnected,
		inbox:       make(chan envelope, inboxSize),
		receipts:    make(map[string]*entity.Receipt),
		fatal:       make(chan error, 1),
		done:        make(chan struct{}),
	}
}

// Start begins connecting in the background and returns immediately.
// Cancelling ctx has the same effect as Shutdown.
func (m *ConnectionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminal != nil {
		return m.terminal
	}
	if m.started {
		return fmt.Errorf("connection manager already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel

	m.logger.Info("attempting to connect to broker")
	go m.run(loopCtx)
	return nil
}

// State returns the current connection state.
func (m *ConnectionManager) State() entity.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that stopped the manager, or nil while it accepts sends.
func (m *ConnectionManager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminal
}

// Fatal delivers unrecoverable failures. The process is expected to exit
// with domain.FatalExitCode when it receives one.
func (m *ConnectionManager) Fatal() <-chan error {
	return m.fatal
}

// QueueDepth returns the number of buffered messages.
func (m *ConnectionManager) QueueDepth(ctx context.Context) (int, error) {
	return m.queue.Len(ctx)
}

// Send forwards msg to the event loop when the connection is open. It returns
// domain.ErrNotReady otherwise, leaving the decision to buffer to the caller.
func (m *ConnectionManager) Send(ctx context.Context, msg *entity.OutboundMessage) (*entity.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminal != nil {
		return nil, m.terminal
	}
	if m.state != entity.StateOpen {
		return nil, domain.ErrNotReady
	}
	return m.admitLocked(msg)
}

// Enqueue buffers msg until the connection opens. The receipt is accepted
// immediately; Delivered resolves once the queue drains. If the connection
// opened in the meantime the message is forwarded instead.
func (m *ConnectionManager) Enqueue(ctx context.Context, msg *entity.OutboundMessage) (*entity.Receipt, error) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	m.mu.Lock()
	if m.terminal != nil {
		err := m.terminal
		m.mu.Unlock()
		return nil, err
	}
	if m.state == entity.StateOpen {
		defer m.mu.Unlock()
		return m.admitLocked(msg)
	}
	m.mu.Unlock()

	ok, err := m.queue.Enqueue(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: buffering message: %v", domain.ErrNotReady, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: capacity %d reached", domain.ErrQueueFull, m.queue.Capacity())
	}

	r := entity.NewReceipt(msg.MessageID)
	r.Accept()

	m.mu.Lock()
	m.receipts[msg.MessageID] = r
	m.mu.Unlock()
	return r, nil
}

// ReportFatal records an unrecoverable failure raised outside the event loop.
func (m *ConnectionManager) ReportFatal(err error) {
	m.logger.Error("fatal error reported", zap.Error(err))
	select {
	case m.fatal <- err:
	default:
	}
}

// Shutdown stops reconnect attempts, flushes in-flight sends best-effort,
// rejects every buffered message with domain.ErrShuttingDown and releases the
// transport. Later sends are rejected with domain.ErrShuttingDown.
func (m *ConnectionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.terminal == nil {
		m.terminal = domain.ErrShuttingDown
	}
	started := m.started
	cancel := m.cancel
	m.mu.Unlock()

	m.logger.Info("shutting down connection manager")

	if started {
		cancel()
		select {
		case <-m.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for connection manager: %w", ctx.Err())
		}
	} else {
		m.rejectBuffered(context.WithoutCancel(ctx), domain.ErrShuttingDown)
		m.closeTransport()
	}

	m.setState(entity.StateDisconnected)
	return nil
}

func (m *ConnectionManager) admitLocked(msg *entity.OutboundMessage) (*entity.Receipt, error) {
	r := entity.NewReceipt(msg.MessageID)
	select {
	case m.inbox <- envelope{msg: msg, receipt: r}:
		return r, nil
	default:
		return nil, fmt.Errorf("%w: send buffer of %d reached", domain.ErrQueueFull, cap(m.inbox))
	}
}

func (m *ConnectionManager) run(ctx context.Context) {
	defer close(m.done)
	defer m.closeTransport()
	defer m.cleanup()

	attempt := 0
	for ctx.Err() == nil {
		m.setState(entity.StateConnecting)

		err := m.transport.Connect(ctx)
		if err == nil {
			m.logger.Info("connected to broker")
			attempt = 0
			if err = m.drain(ctx); err == nil {
				err = m.serve(ctx)
			}
		}

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, domain.ErrFatalTransport) {
			m.fail(err)
			m.ReportFatal(err)
			return
		}

		attempt++
		delay, ok := m.policy.Next(attempt)
		if !ok {
			m.fail(fmt.Errorf("%w: giving up after %d attempts: %v", domain.ErrNotReady, attempt, err))
			return
		}

		m.setState(entity.StateFailed)
		m.metrics.ReconnectAttempt()
		m.logger.Warn("broker connection failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)

		if !sleep(ctx, delay) {
			return
		}
	}
}

// drain hands buffered messages to the transport in FIFO order. The state is
// switched to Open under the lock once the queue is observed empty.
func (m *ConnectionManager) drain(ctx context.Context) error {
	drained := 0
	for {
		m.queueMu.Lock()
		msg, err := m.queue.Dequeue(ctx)
		if err != nil {
			m.queueMu.Unlock()
			return fmt.Errorf("%w: reading delivery queue: %v", domain.ErrConnectionLost, err)
		}
		if msg == nil {
			m.setState(entity.StateOpen)
			m.queueMu.Unlock()
			if drained > 0 {
				m.logger.Info("delivery queue drained", zap.Int("messages", drained))
			}
			return nil
		}
		m.mu.Lock()
		r := m.receipts[msg.MessageID]
		delete(m.receipts, msg.MessageID)
		m.mu.Unlock()
		m.queueMu.Unlock()

		if err := m.handOff(ctx, msg); err != nil {
			if errors.Is(err, domain.ErrTransportRejected) {
				rejectReceipt(r, err)
				continue
			}
			m.requeue([]envelope{{msg: msg, receipt: r}})
			return err
		}
		if r != nil {
			r.Deliver()
		}
		drained++
	}
}

// serve forwards direct sends until the connection is lost or ctx ends.
func (m *ConnectionManager) serve(ctx context.Context) error {
	closed := m.transport.Closed()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closed:
			if err == nil {
				err = domain.ErrConnectionLost
			}
			m.interrupt(nil)
			return err

		case env := <-m.inbox:
			err := m.handOff(ctx, env.msg)
			switch {
			case err == nil:
				env.receipt.Deliver()
			case errors.Is(err, domain.ErrTransportRejected):
				env.receipt.Reject(err)
			case errors.Is(err, domain.ErrFatalTransport):
				env.receipt.Reject(err)
				return err
			default:
				m.interrupt(&env)
				return err
			}
		}
	}
}

func (m *ConnectionManager) handOff(ctx context.Context, msg *entity.OutboundMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	if err := m.transport.Send(sendCtx, msg); err != nil {
		if errors.Is(err, domain.ErrTransportRejected) {
			m.metrics.MessageRejected(msg.Destination, "transport_rejected")
		}
		m.logger.Warn("hand-off failed",
			zap.String("message_id", msg.MessageID),
			zap.String("destination", msg.Destination),
			zap.Error(err),
		)
		return err
	}

	m.metrics.MessageSent(msg.Destination)
	m.logger.Debug("message handed to transport",
		zap.String("message_id", msg.MessageID),
		zap.String("destination", msg.Destination),
	)
	return nil
}

// interrupt marks the connection as failed and moves the failed message plus
// everything still waiting in the inbox back to the front of the queue.
func (m *ConnectionManager) interrupt(failed *envelope) {
	m.mu.Lock()
	m.setStateLocked(entity.StateFailed)
	pending := make([]envelope, 0, len(m.inbox)+1)
	if failed != nil {
		pending = append(pending, *failed)
	}
	pending = append(pending, m.drainInboxLocked()...)
	m.mu.Unlock()

	if len(pending) > 0 {
		m.requeue(pending)
	}
}

// requeue puts envelopes back at the front of the queue. Their receipts are
// accepted: the messages will be retried after reconnecting.
func (m *ConnectionManager) requeue(envs []envelope) {
	msgs := make([]*entity.OutboundMessage, len(envs))
	for i, env := range envs {
		msgs[i] = env.msg
	}

	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	if err := m.queue.Requeue(context.Background(), msgs...); err != nil {
		m.logger.Error("failed to requeue messages", zap.Error(err), zap.Int("messages", len(msgs)))
		for _, env := range envs {
			rejectReceipt(env.receipt, fmt.Errorf("%w: requeue failed: %v", domain.ErrNotReady, err))
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, env := range envs {
		if env.receipt == nil {
			continue
		}
		env.receipt.Accept()
		m.receipts[env.msg.MessageID] = env.receipt
	}
}

// fail puts the manager into its terminal Failed state.
func (m *ConnectionManager) fail(err error) {
	m.logger.Error("broker connection failed permanently", zap.Error(err))

	m.mu.Lock()
	if m.terminal == nil {
		m.terminal = err
	}
	m.setStateLocked(entity.StateFailed)
	inflight := m.drainInboxLocked()
	m.mu.Unlock()

	for _, env := range inflight {
		env.receipt.Reject(err)
	}
	m.rejectBuffered(context.Background(), err)
}

// cleanup runs when the event loop exits.
func (m *ConnectionManager) cleanup() {
	m.mu.Lock()
	if m.terminal == nil {
		m.terminal = domain.ErrShuttingDown
	}
	wasOpen := m.state == entity.StateOpen
	inflight := m.drainInboxLocked()
	m.mu.Unlock()

	for _, env := range inflight {
		if !wasOpen {
			env.receipt.Reject(domain.ErrShuttingDown)
			continue
		}
		if err := m.handOff(context.Background(), env.msg); err != nil {
			env.receipt.Reject(fmt.Errorf("%w: %v", domain.ErrShuttingDown, err))
			continue
		}
		env.receipt.Deliver()
	}

	m.rejectBuffered(context.Background(), domain.ErrShuttingDown)
}

// rejectBuffered removes this manager's messages from the queue and rejects
// their receipts with err. Entries without a local receipt belong to another
// producer sharing the queue, or to a crashed predecessor, and are put back
// in their original order.
func (m *ConnectionManager) rejectBuffered(ctx context.Context, err error) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	var (
		dropped int
		foreign []*entity.OutboundMessage
	)
	for {
		msg, qerr := m.queue.Dequeue(ctx)
		if qerr != nil {
			m.logger.Error("failed to empty delivery queue", zap.Error(qerr))
			break
		}
		if msg == nil {
			break
		}

		m.mu.Lock()
		r, ok := m.receipts[msg.MessageID]
		delete(m.receipts, msg.MessageID)
		m.mu.Unlock()

		if !ok {
			foreign = append(foreign, msg)
			continue
		}
		r.Reject(err)
		dropped++
	}

	if len(foreign) > 0 {
		if qerr := m.queue.Requeue(ctx, foreign...); qerr != nil {
			m.logger.Error("failed to restore foreign messages", zap.Error(qerr), zap.Int("messages", len(foreign)))
		}
	}

	m.mu.Lock()
	for id, r := range m.receipts {
		r.Reject(err)
		delete(m.receipts, id)
	}
	m.mu.Unlock()

	if dropped > 0 {
		m.logger.Warn("rejected buffered messages", zap.Int("messages", dropped), zap.Error(err))
	}
}

func (m *ConnectionManager) drainInboxLocked() []envelope {
	var out []envelope
	for {
		select {
		case env := <-m.inbox:
			out = append(out, env)
		default:
			return out
		}
	}
}

func (m *ConnectionManager) closeTransport() {
	m.closeOnce.Do(func() {
		if err := m.transport.Close(); err != nil {
			m.logger.Error("error closing transport", zap.Error(err))
		}
	})
}

func (m *ConnectionManager) setState(state entity.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(state)
}

func (m *ConnectionManager) setStateLocked(state entity.ConnectionState) {
	if m.state == state {
		return
	}
	m.logger.Debug("connection state changed",
		zap.Stringer("from", m.state),
		zap.Stringer("to", state),
	)
	m.state = state
	m.metrics.ConnectionState(state)
}

func rejectReceipt(r *entity.Receipt, err error) {
	if r != nil {
		r.Reject(err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
