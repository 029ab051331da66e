package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/backoff"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

func TestConnectionHealthCheck(t *testing.T) {
	m, _ := newTestManager(&mockTransport{}, newMockQueue(4), backoff.Constant{Delay: time.Millisecond})

	check := NewConnectionHealthCheck(m, entity.ModeLive)
	assert.Equal(t, "broker", check.Name())
	require.EqualError(t, check.Check(context.Background()), "connection state disconnected")

	require.NoError(t, NewConnectionHealthCheck(m, entity.ModeNoop).Check(context.Background()))

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return check.Check(context.Background()) == nil }, waitFor, time.Millisecond)

	shutdown(t, m)
	require.ErrorIs(t, check.Check(context.Background()), domain.ErrShuttingDown)
}
