package domain

import "errors"

var (
	// ErrNotReady indicates there is no usable connection and the client is
	// not in no-op mode.
	ErrNotReady = errors.New("broker connection is not ready")

	// ErrQueueFull indicates the delivery queue is at capacity.
	ErrQueueFull = errors.New("delivery queue is full")

	// ErrTransportRejected indicates the broker refused the message outright.
	ErrTransportRejected = errors.New("transport rejected message")

	// ErrShuttingDown indicates the client was shut down before the message
	// could be handed off.
	ErrShuttingDown = errors.New("producer is shutting down")

	// ErrConfiguration indicates contradictory or incomplete startup configuration.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrFatalTransport indicates a transport failure that must terminate the process.
	ErrFatalTransport = errors.New("fatal transport error")

	// ErrConnectionLost indicates the connection dropped. It is retried.
	ErrConnectionLost = errors.New("connection lost")

	// ErrInvalidMessage indicates the message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrSequenceExhausted indicates the per-client sequence reached its maximum.
	ErrSequenceExhausted = errors.New("message sequence exhausted")
)
