package domain

import "time"

const (
	// DefaultDestination is the queue requests are published to when the
	// caller does not name one.
	DefaultDestination = "work-queue-requests"

	// DefaultClientRole prefixes the client identity.
	DefaultClientRole = "frontend-go"

	// DefaultQueueCapacity bounds the delivery queue.
	DefaultQueueCapacity = 1000

	// DefaultSendTimeout bounds a single transport hand-off.
	DefaultSendTimeout = 5 * time.Second

	// DefaultMonitorInterval is the interval between queue monitor samples.
	DefaultMonitorInterval = 5 * time.Second

	// MessageIDField is the key merged into every JSON body.
	MessageIDField = "message_id"

	// FatalExitCode is the process exit status used when the transport fails
	// in a way that cannot be recovered locally. The supervisor restarts us.
	FatalExitCode = 100

	// EnvironmentProduction is the only environment that never runs in no-op mode.
	EnvironmentProduction = "production"
)
