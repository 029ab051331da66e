package secondary

import "context"

// HealthChecker defines the secondary port for reporting the health of a
// dependency (the broker connection, the Redis-backed queue).
type HealthChecker interface {
	// Name returns the name of the dependency being checked.
	Name() string

	// Check returns an error while the dependency is unhealthy.
	Check(ctx context.Context) error
}
