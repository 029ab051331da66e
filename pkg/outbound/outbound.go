package outbound

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/adapter/secondary/memqueue"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/prommetrics"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/transportfactory"
	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/backoff"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/service"
	"github.com/ruudy-sib/outbound/internal/domain/valueobject"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// Receipt tracks the outcome of a single send. Wait resolves once the
// message has been handed to the broker or buffered; Delivered resolves once
// it has reached the transport or been rejected for good.
type Receipt = entity.Receipt

// Errors reported through receipts and Fatal. Match them with errors.Is.
var (
	ErrNotReady          = domain.ErrNotReady
	ErrQueueFull         = domain.ErrQueueFull
	ErrTransportRejected = domain.ErrTransportRejected
	ErrShuttingDown      = domain.ErrShuttingDown
	ErrConfiguration     = domain.ErrConfiguration
	ErrFatalTransport    = domain.ErrFatalTransport
	ErrInvalidMessage    = domain.ErrInvalidMessage
)

// FatalExitCode is the process exit status expected after a fatal error.
const FatalExitCode = domain.FatalExitCode

// Config holds configuration for the producer client.
type Config struct {
	// Broker transport: "amqp" (default), "kafka" or "http".
	Transport string

	// AMQP broker. An empty Host outside production selects no-op mode.
	Host     string
	Port     int
	Username string
	Password string
	VHost    string

	// Kafka brokers, used when Transport is "kafka".
	KafkaBrokers []string

	// HTTP endpoint, used when Transport is "http".
	HTTPURL string

	// Environment name; "production" forbids no-op mode.
	Environment string

	// ClientRole prefixes the client identity, e.g. "frontend-go".
	ClientRole string

	// DefaultDestination is used by SendMessage.
	DefaultDestination string

	// QueueCapacity bounds the messages buffered while disconnected.
	QueueCapacity int

	// SendTimeout bounds a single hand-off to the transport.
	SendTimeout time.Duration

	// Reconnect backoff. RetryLimit 0 retries forever.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryJitter    float64
	RetryLimit     int

	// Logger (if nil, a production logger will be created)
	Logger *zap.Logger

	// Registerer receives the client metrics. Nil keeps them private.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Transport:          config.TransportAMQP,
		Port:               5672,
		Username:           "guest",
		Password:           "guest",
		VHost:              "/",
		Environment:        "local",
		ClientRole:         domain.DefaultClientRole,
		DefaultDestination: domain.DefaultDestination,
		QueueCapacity:      domain.DefaultQueueCapacity,
		SendTimeout:        domain.DefaultSendTimeout,
		RetryBaseDelay:     500 * time.Millisecond,
		RetryMaxDelay:      30 * time.Second,
		RetryJitter:        0.2,
	}
}

// Client is a reliable message producer that can be embedded in other Go
// applications. It owns one broker connection.
type Client struct {
	producer  *service.ProducerService
	manager   *service.ConnectionManager
	transport secondary.Transport
	logger    *zap.Logger
}

// New creates a Client. It does not connect; call Start.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}

	internalCfg := cfg.toInternal()
	if err := internalCfg.Validate(); err != nil {
		return nil, err
	}

	mode, err := internalCfg.Mode()
	if err != nil {
		return nil, err
	}

	identity, err := valueobject.NewClientIdentity(internalCfg.ClientRole)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	transport, err := transportfactory.New(internalCfg, identity, logger)
	if err != nil {
		return nil, err
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := prommetrics.New(reg)

	policy := backoff.NewExponential(
		internalCfg.RetryBaseDelay, internalCfg.RetryMaxDelay, internalCfg.RetryJitter, internalCfg.RetryLimit)

	manager := service.NewConnectionManager(
		transport,
		memqueue.New(internalCfg.QueueCapacity),
		policy,
		metrics,
		internalCfg.SendTimeout,
		0,
		logger,
	)

	producer := service.NewProducerService(identity, mode, manager, metrics, internalCfg.DefaultDestination, logger)

	return &Client{
		producer:  producer,
		manager:   manager,
		transport: transport,
		logger:    logger,
	}, nil
}

func (c *Config) toInternal() *config.Config {
	def := DefaultConfig()
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}

	out := &config.Config{
		Environment:        pick(c.Environment, def.Environment),
		ClientRole:         pick(c.ClientRole, def.ClientRole),
		BrokerTransport:    pick(c.Transport, def.Transport),
		DefaultDestination: pick(c.DefaultDestination, def.DefaultDestination),
		SendTimeout:        c.SendTimeout,
		AMQPHost:           c.Host,
		AMQPPort:           c.Port,
		AMQPUser:           pick(c.Username, def.Username),
		AMQPPassword:       pick(c.Password, def.Password),
		AMQPVHost:          pick(c.VHost, def.VHost),
		KafkaBrokers:       c.KafkaBrokers,
		HTTPBrokerURL:      c.HTTPURL,
		QueueBackend:       config.QueueMemory,
		QueueCapacity:      c.QueueCapacity,
		RetryBaseDelay:     c.RetryBaseDelay,
		RetryMaxDelay:      c.RetryMaxDelay,
		RetryJitter:        c.RetryJitter,
		RetryLimit:         c.RetryLimit,
	}

	if out.AMQPPort == 0 {
		out.AMQPPort = def.Port
	}
	if out.SendTimeout == 0 {
		out.SendTimeout = def.SendTimeout
	}
	if out.QueueCapacity == 0 {
		out.QueueCapacity = def.QueueCapacity
	}
	if out.RetryBaseDelay == 0 {
		out.RetryBaseDelay = def.RetryBaseDelay
	}
	if out.RetryMaxDelay == 0 {
		out.RetryMaxDelay = def.RetryMaxDelay
	}
	return out
}

// Start begins connecting in the background. It returns immediately; sends
// made before the connection opens are buffered. In no-op mode it does nothing.
func (c *Client) Start(ctx context.Context) error {
	if c.producer.Mode() == entity.ModeNoop {
		c.logger.Warn("no broker configured, running in no-op mode: messages will not be delivered")
		return nil
	}
	return c.manager.Start(ctx)
}

// Send stamps payload with a unique message ID and routes it to destination.
// payload must marshal to a JSON object; message_id is merged into it.
func (c *Client) Send(ctx context.Context, destination string, payload any) *Receipt {
	return c.producer.Send(ctx, destination, payload)
}

// SendMessage is Send to the default destination.
func (c *Client) SendMessage(ctx context.Context, payload any) *Receipt {
	return c.producer.SendMessage(ctx, payload)
}

// SendMessageSync sends payload to the default destination and waits until
// it has been handed off or buffered, returning its message ID.
func (c *Client) SendMessageSync(ctx context.Context, payload any) (string, error) {
	return c.producer.SendMessage(ctx, payload).Wait(ctx)
}

// Mode reports "live" or "noop".
func (c *Client) Mode() string {
	return string(c.producer.Mode())
}

// ClientID returns the identity that prefixes every message ID.
func (c *Client) ClientID() string {
	return c.producer.Identity().String()
}

// State reports the connection state: disconnected, connecting, open or failed.
func (c *Client) State() string {
	return c.manager.State().String()
}

// Fatal delivers unrecoverable errors such as rejected credentials. Callers
// are expected to stop and exit with FatalExitCode.
func (c *Client) Fatal() <-chan error {
	return c.manager.Fatal()
}

// Close stops the client. Buffered messages that were not handed off are
// rejected with ErrShuttingDown and the connection is closed.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("shutting down outbound client")
	return c.manager.Shutdown(ctx)
}
