package amqptransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/valueobject"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

const (
	dialTimeout = 10 * time.Second
	heartbeat   = 10 * time.Second
)

// Transport implements secondary.Transport over a single AMQP 0-9-1
// connection and channel. Messages are published to the default exchange
// with the destination as routing key.
type Transport struct {
	uri      string
	host     string
	identity string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  chan error

	logger *zap.Logger
}

// New creates an AMQP transport for the configured broker. The client
// identity is announced as the connection name and publisher app id.
func New(cfg *config.Config, identity valueobject.ClientIdentity, logger *zap.Logger) secondary.Transport {
	return &Transport{
		uri:      BrokerURI(cfg),
		host:     cfg.AMQPHost,
		identity: identity.String(),
		logger:   logger.Named("amqp-transport"),
	}
}

// BrokerURI builds the AMQP URI from the broker options. The default vhost
// "/" is expressed by omitting the path.
func BrokerURI(cfg *config.Config) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.AMQPUser, cfg.AMQPPassword),
		Host:   net.JoinHostPort(cfg.AMQPHost, strconv.Itoa(cfg.AMQPPort)),
	}
	if cfg.AMQPVHost != "" && cfg.AMQPVHost != "/" {
		u.Path = "/" + cfg.AMQPVHost
		u.RawPath = "/" + url.PathEscape(cfg.AMQPVHost)
	}
	return u.String()
}

// Name identifies the transport.
func (t *Transport) Name() string {
	return "amqp"
}

// Connect dials the broker and opens the publishing channel, replacing any
// previous connection.
func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeLocked()

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(t.identity)

	dial, stop := contextDial(ctx, dialTimeout)
	conn, err := amqp.DialConfig(t.uri, amqp.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
		Dial:       dial,
	})
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("dialing %s: %w", t.host, ctx.Err())
		}
		return classify(fmt.Errorf("dialing %s: %w", t.host, err))
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return classify(fmt.Errorf("opening channel: %w", err))
	}

	closed := make(chan error, 1)
	go watch(closed,
		conn.NotifyClose(make(chan *amqp.Error, 1)),
		channel.NotifyClose(make(chan *amqp.Error, 1)),
	)

	t.conn = conn
	t.channel = channel
	t.closed = closed

	t.logger.Info("connected to broker",
		zap.String("host", t.host),
		zap.String("connection_name", t.identity),
	)
	return nil
}

// contextDial returns an amqp dial func bound to ctx. Cancelling ctx aborts
// the TCP dial and closes the socket during the AMQP handshake. The returned
// stop func must be called once DialConfig returns.
func contextDial(ctx context.Context, timeout time.Duration) (func(network, addr string) (net.Conn, error), func()) {
	var (
		mu      sync.Mutex
		release = func() bool { return false }
	)

	dial := func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		// Same handshake deadline as amqp.DefaultDial; the library clears it
		// once the connection is open.
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}

		mu.Lock()
		release = context.AfterFunc(ctx, func() { _ = conn.Close() })
		mu.Unlock()
		return conn, nil
	}

	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		release()
	}
	return dial, stop
}

// watch reports the first close notification of the connection or channel.
func watch(closed chan<- error, connClose, chanClose <-chan *amqp.Error) {
	var amqpErr *amqp.Error
	select {
	case amqpErr = <-connClose:
	case amqpErr = <-chanClose:
	}

	// A nil error means a graceful Close initiated by us.
	if amqpErr == nil {
		return
	}
	closed <- classify(amqpErr)
}

// Send publishes msg and returns once the frame has been written.
func (t *Transport) Send(ctx context.Context, msg *entity.OutboundMessage) error {
	t.mu.Lock()
	channel := t.channel
	t.mu.Unlock()

	if channel == nil || channel.IsClosed() {
		return fmt.Errorf("%w: channel is not open", domain.ErrConnectionLost)
	}

	err := channel.PublishWithContext(ctx, "", msg.Destination, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		AppId:        t.identity,
		Timestamp:    time.Now(),
		Body:         msg.Payload,
	})
	if err != nil {
		return classify(fmt.Errorf("publishing %s to %q: %w", msg.MessageID, msg.Destination, err))
	}

	t.logger.Debug("message published",
		zap.String("message_id", msg.MessageID),
		zap.String("routing_key", msg.Destination),
		zap.Int("body_size", len(msg.Payload)),
	)
	return nil
}

// Closed reports the loss of the current connection.
func (t *Transport) Closed() <-chan error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close closes the channel and connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *Transport) closeLocked() error {
	var errs []error

	if t.channel != nil {
		if err := t.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing channel: %w", err))
		}
		t.channel = nil
	}

	if t.conn != nil {
		if err := t.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing connection: %w", err))
		}
		t.conn = nil
	}

	return errors.Join(errs...)
}

// classify maps AMQP failures onto the domain transport errors.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, amqp.ErrCredentials) || errors.Is(err, amqp.ErrSASL) || errors.Is(err, amqp.ErrVhost) {
		return fmt.Errorf("%w: %v", domain.ErrFatalTransport, err)
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.AccessRefused, amqp.NotAllowed:
			return fmt.Errorf("%w: %v", domain.ErrFatalTransport, err)
		case amqp.NotFound, amqp.PreconditionFailed, amqp.ContentTooLarge, amqp.NoRoute:
			return fmt.Errorf("%w: %v", domain.ErrTransportRejected, err)
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
}
