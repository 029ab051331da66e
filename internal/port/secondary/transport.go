package secondary

import (
	"context"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

// Transport defines the secondary port for the single outbound broker
// connection (e.g., AMQP, Kafka, HTTP).
//
// Errors returned by Connect and Send are classified with the domain
// sentinels: domain.ErrFatalTransport for unrecoverable failures such as
// rejected credentials, domain.ErrTransportRejected when the broker refuses
// a single message and domain.ErrConnectionLost for anything that a
// reconnect may fix.
type Transport interface {
	// Name identifies the transport in logs and health checks.
	Name() string

	// Connect establishes the connection. It is called again after a failure.
	Connect(ctx context.Context) error

	// Send hands a message to the broker. Only one goroutine calls Send at a time.
	Send(ctx context.Context, msg *entity.OutboundMessage) error

	// Closed delivers an error when an open connection is lost. Transports
	// without a long-lived connection may return nil.
	Closed() <-chan error

	// Close releases the underlying connection.
	Close() error
}
