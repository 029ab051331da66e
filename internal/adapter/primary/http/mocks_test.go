package http

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/primary"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// mockProducerService implements primary.ProducerService for testing.
type mockProducerService struct {
	mu           sync.Mutex
	mode         entity.Mode
	sendErr      error
	destinations []string
	payloads     []json.RawMessage
}

func (m *mockProducerService) Send(_ context.Context, destination string, payload any) *entity.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destinations = append(m.destinations, destination)
	if raw, ok := payload.(json.RawMessage); ok {
		m.payloads = append(m.payloads, raw)
	}

	id := "frontend-go-1a2b/0"
	if m.sendErr != nil {
		return entity.RejectedReceipt(id, m.sendErr)
	}
	r := entity.NewReceipt(id)
	r.Accept()
	return r
}

func (m *mockProducerService) SendMessage(ctx context.Context, payload any) *entity.Receipt {
	return m.Send(ctx, "work-queue-requests", payload)
}

func (m *mockProducerService) Mode() entity.Mode {
	if m.mode == "" {
		return entity.ModeLive
	}
	return m.mode
}

var _ primary.ProducerService = (*mockProducerService)(nil)

// mockHealthCheck is a test double for health checks.
type mockHealthCheck struct {
	name string
	err  error
}

// healthCheckerAdapter wraps mockHealthCheck to satisfy secondary.HealthChecker.
type healthCheckerAdapter struct {
	check mockHealthCheck
}

func (a healthCheckerAdapter) Name() string {
	return a.check.name
}

func (a healthCheckerAdapter) Check(_ context.Context) error {
	return a.check.err
}

// Compile-time interface assertion
var _ secondary.HealthChecker = healthCheckerAdapter{}

// toHealthCheckers converts a slice of adapters to a slice of the interface.
func toHealthCheckers(adapters []healthCheckerAdapter) []secondary.HealthChecker {
	if len(adapters) == 0 {
		return nil
	}
	result := make([]secondary.HealthChecker, len(adapters))
	for i, a := range adapters {
		result[i] = a
	}
	return result
}
