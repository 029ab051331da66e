package secondary

import "github.com/ruudy-sib/outbound/internal/domain/entity"

// Metrics defines the secondary port for producer instrumentation.
type Metrics interface {
	MessageSent(destination string)
	MessageQueued(destination string)
	MessageNoop(destination string)
	MessageRejected(destination, reason string)
	ConnectionState(state entity.ConnectionState)
	ReconnectAttempt()
	QueueDepth(depth int)
}
