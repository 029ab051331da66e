package service

import (
	"context"
	"fmt"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// ConnectionHealthCheck reports the broker connection as healthy while it is
// open. In no-op mode there is no connection and the check always passes.
type ConnectionHealthCheck struct {
	manager *ConnectionManager
	mode    entity.Mode
}

// NewConnectionHealthCheck creates a health checker for the broker connection.
func NewConnectionHealthCheck(manager *ConnectionManager, mode entity.Mode) secondary.HealthChecker {
	return &ConnectionHealthCheck{manager: manager, mode: mode}
}

// Name returns the name of this health check.
func (h *ConnectionHealthCheck) Name() string {
	return "broker"
}

// Check returns an error unless the connection is open.
func (h *ConnectionHealthCheck) Check(_ context.Context) error {
	if h.mode == entity.ModeNoop {
		return nil
	}
	if err := h.manager.Err(); err != nil {
		return err
	}
	if state := h.manager.State(); state != entity.StateOpen {
		return fmt.Errorf("connection state %s", state)
	}
	return nil
}
