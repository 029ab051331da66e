package entity

import (
	"fmt"
	"strings"
	"time"
)

// OutboundMessage is a message stamped with its identifier and waiting to be
// handed to the transport.
type OutboundMessage struct {
	Destination string
	MessageID   string
	Payload     []byte
	EnqueuedAt  time.Time
}

// WireMessage is the shape handed to the broker: {to, message_id, body}.
// Body is the serialized JSON payload with message_id merged in.
type WireMessage struct {
	To        string `json:"to"`
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
}

// Validate checks the invariants every message must hold before it is routed.
func (m *OutboundMessage) Validate() error {
	if strings.TrimSpace(m.Destination) == "" {
		return fmt.Errorf("destination must not be empty")
	}
	if m.MessageID == "" {
		return fmt.Errorf("message ID must not be empty")
	}
	return nil
}

// ToWire converts the message to its wire representation.
func (m *OutboundMessage) ToWire() WireMessage {
	return WireMessage{
		To:        m.Destination,
		MessageID: m.MessageID,
		Body:      string(m.Payload),
	}
}

// Age returns how long the message has been waiting.
func (m *OutboundMessage) Age(now time.Time) time.Duration {
	if m.EnqueuedAt.IsZero() {
		return 0
	}
	return now.Sub(m.EnqueuedAt)
}
