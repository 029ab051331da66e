package amqptransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/valueobject"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"bad credentials", fmt.Errorf("dialing: %w", amqp.ErrCredentials), domain.ErrFatalTransport},
		{"sasl", amqp.ErrSASL, domain.ErrFatalTransport},
		{"vhost", amqp.ErrVhost, domain.ErrFatalTransport},
		{"access refused", &amqp.Error{Code: amqp.AccessRefused, Reason: "ACCESS_REFUSED"}, domain.ErrFatalTransport},
		{"not found", &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND"}, domain.ErrTransportRejected},
		{"precondition", &amqp.Error{Code: amqp.PreconditionFailed}, domain.ErrTransportRejected},
		{"too large", &amqp.Error{Code: amqp.ContentTooLarge}, domain.ErrTransportRejected},
		{"forced close", &amqp.Error{Code: amqp.ConnectionForced, Recover: true}, domain.ErrConnectionLost},
		{"closed", amqp.ErrClosed, domain.ErrConnectionLost},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, domain.ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, classify(tt.err), tt.want)
		})
	}

	assert.NoError(t, classify(nil))
}

func TestBrokerURI(t *testing.T) {
	tests := []struct {
		vhost     string
		wantVhost string
	}{
		{"/", "/"},
		{"", "/"},
		{"orders", "orders"},
		{"team/orders", "team/orders"},
	}

	for _, tt := range tests {
		t.Run(tt.vhost, func(t *testing.T) {
			cfg := &config.Config{
				AMQPHost:     "rabbit",
				AMQPPort:     5673,
				AMQPUser:     "producer",
				AMQPPassword: "s3cr@t",
				AMQPVHost:    tt.vhost,
			}

			uri, err := amqp.ParseURI(BrokerURI(cfg))
			require.NoError(t, err)
			assert.Equal(t, "rabbit", uri.Host)
			assert.Equal(t, 5673, uri.Port)
			assert.Equal(t, "producer", uri.Username)
			assert.Equal(t, "s3cr@t", uri.Password)
			assert.Equal(t, tt.wantVhost, uri.Vhost)
		})
	}
}

func TestTransport_Send_notConnected(t *testing.T) {
	identity, err := valueobject.NewClientIdentity("frontend-go")
	require.NoError(t, err)

	tr := New(&config.Config{AMQPHost: "rabbit", AMQPPort: 5672, AMQPVHost: "/"}, identity, zap.NewNop())
	assert.Equal(t, "amqp", tr.Name())
	assert.Nil(t, tr.Closed())

	err = tr.Send(context.Background(), &entity.OutboundMessage{Destination: "q", MessageID: "c/0"})
	require.ErrorIs(t, err, domain.ErrConnectionLost)
	require.NoError(t, tr.Close())
}

func TestTransport_Connect_cancelledContext(t *testing.T) {
	identity, err := valueobject.NewClientIdentity("frontend-go")
	require.NoError(t, err)
	tr := New(&config.Config{AMQPHost: "rabbit", AMQPPort: 5672, AMQPVHost: "/"}, identity, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, tr.Connect(ctx), context.Canceled)
}

func TestTransport_Connect_cancelDuringHandshake(t *testing.T) {
	// A listener that accepts TCP connections but never speaks AMQP.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	identity, err := valueobject.NewClientIdentity("frontend-go")
	require.NoError(t, err)
	tr := New(&config.Config{AMQPHost: host, AMQPPort: portNum, AMQPVHost: "/"}, identity, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err = tr.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), dialTimeout/2)
	require.NoError(t, tr.Close())
}
