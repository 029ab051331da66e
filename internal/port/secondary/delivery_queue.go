package secondary

import (
	"context"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

// DeliveryQueue defines the secondary port for the bounded FIFO buffer that
// holds messages while the connection is not open (e.g., memory, Redis list).
type DeliveryQueue interface {
	// Enqueue appends msg. It returns false without modifying the queue when
	// the queue is at capacity.
	Enqueue(ctx context.Context, msg *entity.OutboundMessage) (bool, error)

	// Dequeue removes and returns the oldest message, or nil when empty.
	Dequeue(ctx context.Context) (*entity.OutboundMessage, error)

	// Requeue puts msgs back at the front in the given order. It ignores
	// capacity: these messages were already accepted.
	Requeue(ctx context.Context, msgs ...*entity.OutboundMessage) error

	// Len returns the number of buffered messages.
	Len(ctx context.Context) (int, error)

	// Capacity returns the maximum number of buffered messages.
	Capacity() int
}
