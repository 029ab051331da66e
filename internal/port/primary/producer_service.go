package primary

import (
	"context"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

// ProducerService defines the primary port for publishing messages,
// exposed to driving adapters (HTTP handlers, CLI, embedding code).
type ProducerService interface {
	// Send stamps payload with a new message ID and routes it to destination.
	// It never blocks on the network; the result is delivered via the receipt.
	Send(ctx context.Context, destination string, payload any) *entity.Receipt

	// SendMessage is Send to the default destination.
	SendMessage(ctx context.Context, payload any) *entity.Receipt

	// Mode reports the operating mode chosen at startup.
	Mode() entity.Mode
}
