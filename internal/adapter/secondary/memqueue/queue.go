package memqueue

import (
	"context"
	"sync"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// Queue implements secondary.DeliveryQueue as a bounded in-process FIFO.
// Its contents do not survive a restart.
type Queue struct {
	mu       sync.Mutex
	items    []*entity.OutboundMessage
	capacity int
}

// New creates an empty queue holding at most capacity messages.
func New(capacity int) secondary.DeliveryQueue {
	return &Queue{
		items:    make([]*entity.OutboundMessage, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends msg unless the queue is full.
func (q *Queue) Enqueue(_ context.Context, msg *entity.OutboundMessage) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return false, nil
	}
	q.items = append(q.items, msg)
	return true, nil
}

// Dequeue removes the oldest message.
func (q *Queue) Dequeue(_ context.Context) (*entity.OutboundMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, nil
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, nil
}

// Requeue puts msgs back at the front, keeping their order.
func (q *Queue) Requeue(_ context.Context, msgs ...*entity.OutboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]*entity.OutboundMessage, 0, len(msgs)+len(q.items))
	items = append(items, msgs...)
	q.items = append(items, q.items...)
	return nil
}

// Len returns the number of buffered messages.
func (q *Queue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}
