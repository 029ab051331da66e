package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// mockTransport implements secondary.Transport for testing.
type mockTransport struct {
	mu          sync.Mutex
	connectErrs []error
	connects    int
	closes      int
	closed      chan error
	sent        []*entity.OutboundMessage
	sendFunc    func(msg *entity.OutboundMessage) error

	// gate, when set, holds Connect until it is closed or ctx ends.
	gate chan struct{}

	inSend    atomic.Int32
	maxInSend atomic.Int32
}

func (m *mockTransport) Name() string { return "mock" }

func (m *mockTransport) Connect(ctx context.Context) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.connects++
	if len(m.connectErrs) > 0 {
		err := m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	m.closed = make(chan error, 1)
	return nil
}

func (m *mockTransport) Send(_ context.Context, msg *entity.OutboundMessage) error {
	n := m.inSend.Add(1)
	defer m.inSend.Add(-1)
	for {
		max := m.maxInSend.Load()
		if n <= max || m.maxInSend.CompareAndSwap(max, n) {
			break
		}
	}

	m.mu.Lock()
	fn := m.sendFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(msg); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) Closed() <-chan error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// drop simulates the broker closing an open connection.
func (m *mockTransport) drop(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed != nil {
		m.closed <- err
	}
}

func (m *mockTransport) setGate(gate chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

func (m *mockTransport) sentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.sent))
	for i, msg := range m.sent {
		ids[i] = msg.MessageID
	}
	return ids
}

func (m *mockTransport) sentMessages() []*entity.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.OutboundMessage(nil), m.sent...)
}

func (m *mockTransport) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *mockTransport) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// mockQueue implements secondary.DeliveryQueue for testing.
type mockQueue struct {
	mu       sync.Mutex
	items    []*entity.OutboundMessage
	capacity int
}

func newMockQueue(capacity int) *mockQueue {
	return &mockQueue{capacity: capacity}
}

func (q *mockQueue) Enqueue(_ context.Context, msg *entity.OutboundMessage) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false, nil
	}
	q.items = append(q.items, msg)
	return true, nil
}

func (q *mockQueue) Dequeue(_ context.Context) (*entity.OutboundMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, nil
}

func (q *mockQueue) Requeue(_ context.Context, msgs ...*entity.OutboundMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]*entity.OutboundMessage(nil), msgs...), q.items...)
	return nil
}

func (q *mockQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *mockQueue) Capacity() int { return q.capacity }

func (q *mockQueue) ids() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.items))
	for i, msg := range q.items {
		ids[i] = msg.MessageID
	}
	return ids
}

// slowQueue delays Enqueue to stand in for a remote queue backend.
type slowQueue struct {
	*mockQueue
	delay   time.Duration
	entered chan struct{}
	once    sync.Once
}

func newSlowQueue(capacity int, delay time.Duration) *slowQueue {
	return &slowQueue{mockQueue: newMockQueue(capacity), delay: delay, entered: make(chan struct{})}
}

func (q *slowQueue) Enqueue(ctx context.Context, msg *entity.OutboundMessage) (bool, error) {
	q.once.Do(func() { close(q.entered) })
	time.Sleep(q.delay)
	return q.mockQueue.Enqueue(ctx, msg)
}

// mockMetrics implements secondary.Metrics and counts calls.
type mockMetrics struct {
	mu         sync.Mutex
	sent       int
	queued     int
	noop       int
	rejected   map[string]int
	reconnects int
	states     []entity.ConnectionState
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{rejected: make(map[string]int)}
}

func (m *mockMetrics) MessageSent(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *mockMetrics) MessageQueued(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued++
}

func (m *mockMetrics) MessageNoop(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noop++
}

func (m *mockMetrics) MessageRejected(_, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *mockMetrics) ConnectionState(state entity.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *mockMetrics) ReconnectAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *mockMetrics) QueueDepth(int) {}

func (m *mockMetrics) rejectedFor(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

var (
	_ secondary.Transport     = (*mockTransport)(nil)
	_ secondary.DeliveryQueue = (*mockQueue)(nil)
	_ secondary.DeliveryQueue = (*slowQueue)(nil)
	_ secondary.Metrics       = (*mockMetrics)(nil)
)
