package kafkaproducer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

const dialTimeout = 10 * time.Second

// Producer implements secondary.Transport using segmentio/kafka-go. The
// message destination is used as topic and the message id as key.
type Producer struct {
	brokers  []string
	clientID string

	mu     sync.Mutex
	writer *kafka.Writer

	logger *zap.Logger
}

// NewProducer creates a Kafka transport for the configured brokers.
func NewProducer(cfg *config.Config, clientID string, logger *zap.Logger) secondary.Transport {
	brokers := make([]string, 0, len(cfg.KafkaBrokers))
	for _, b := range cfg.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return &Producer{
		brokers:  brokers,
		clientID: clientID,
		logger:   logger.Named("kafka-producer"),
	}
}

// Name identifies the transport.
func (p *Producer) Name() string {
	return "kafka"
}

// Connect verifies that a broker is reachable and prepares the writer.
func (p *Producer) Connect(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("%w: no kafka brokers configured", domain.ErrFatalTransport)
	}

	dialer := &kafka.Dialer{Timeout: dialTimeout, ClientID: p.clientID}

	var lastErr error
	for _, broker := range p.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()

		p.mu.Lock()
		if p.writer == nil {
			p.writer = &kafka.Writer{
				Addr:         kafka.TCP(p.brokers...),
				Balancer:     &kafka.LeastBytes{},
				BatchTimeout: 10 * time.Millisecond,
				BatchSize:    1,
				RequiredAcks: kafka.RequireAll,
				Transport:    &kafka.Transport{ClientID: p.clientID, DialTimeout: dialTimeout},
			}
		}
		p.mu.Unlock()

		p.logger.Info("kafka producer connected", zap.String("broker", broker), zap.Strings("brokers", p.brokers))
		return nil
	}

	return classify(fmt.Errorf("dialing kafka brokers %v: %w", p.brokers, lastErr))
}

// Send writes msg to the topic named by its destination.
func (p *Producer) Send(ctx context.Context, msg *entity.OutboundMessage) error {
	p.mu.Lock()
	writer := p.writer
	p.mu.Unlock()

	if writer == nil {
		return fmt.Errorf("%w: kafka writer not initialized", domain.ErrConnectionLost)
	}

	km := kafka.Message{
		Topic: msg.Destination,
		Key:   []byte(msg.MessageID),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: domain.MessageIDField, Value: []byte(msg.MessageID)},
		},
	}

	if err := writer.WriteMessages(ctx, km); err != nil {
		return classify(fmt.Errorf("writing message to kafka topic %q: %w", msg.Destination, err))
	}

	p.logger.Debug("message produced",
		zap.String("topic", msg.Destination),
		zap.String("message_id", msg.MessageID),
		zap.Int("value_size", len(msg.Payload)),
	)

	return nil
}

// Closed returns nil: the writer manages its own connections and failures
// surface through Send.
func (p *Producer) Closed() <-chan error {
	return nil
}

// Close shuts down the Kafka writer and releases its resources.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

// classify maps kafka-go failures onto the domain transport errors.
func classify(err error) error {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil {
				return classify(fmt.Errorf("%v: %w", err, e))
			}
		}
	}

	var tooLarge kafka.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: %v", domain.ErrTransportRejected, err)
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		switch kerr {
		case kafka.SASLAuthenticationFailed, kafka.TopicAuthorizationFailed,
			kafka.ClusterAuthorizationFailed, kafka.IllegalSASLState:
			return fmt.Errorf("%w: %v", domain.ErrFatalTransport, err)
		}
		if !kerr.Temporary() {
			return fmt.Errorf("%w: %v", domain.ErrTransportRejected, err)
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
}
