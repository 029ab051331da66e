package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/valueobject"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// ProducerService stamps outbound messages and routes them: accepted locally
// in no-op mode, forwarded while the connection is open, buffered otherwise.
type ProducerService struct {
	identity           valueobject.ClientIdentity
	sequence           *valueobject.Sequence
	mode               entity.Mode
	manager            *ConnectionManager
	metrics            secondary.Metrics
	defaultDestination string
	logger             *zap.Logger
	now                func() time.Time
}

// NewProducerService creates a ProducerService with its dependencies injected.
func NewProducerService(
	identity valueobject.ClientIdentity,
	mode entity.Mode,
	manager *ConnectionManager,
	metrics secondary.Metrics,
	defaultDestination string,
	logger *zap.Logger,
) *ProducerService {
	if defaultDestination == "" {
		defaultDestination = domain.DefaultDestination
	}

	return &ProducerService{
		identity:           identity,
		sequence:           valueobject.NewSequence(),
		mode:               mode,
		manager:            manager,
		metrics:            metrics,
		defaultDestination: defaultDestination,
		logger:             logger.Named("producer").With(zap.Stringer("client_id", identity)),
		now:                time.Now,
	}
}

// Mode reports the operating mode chosen at startup.
func (s *ProducerService) Mode() entity.Mode {
	return s.mode
}

// Identity returns the client identity that prefixes every message ID.
func (s *ProducerService) Identity() valueobject.ClientIdentity {
	return s.identity
}

// SendMessage sends payload to the default destination.
func (s *ProducerService) SendMessage(ctx context.Context, payload any) *entity.Receipt {
	return s.Send(ctx, s.defaultDestination, payload)
}

// Send stamps payload with the next message ID and routes it. The returned
// receipt never blocks the caller; rejections are reported through it.
func (s *ProducerService) Send(ctx context.Context, destination string, payload any) *entity.Receipt {
	seq, err := s.sequence.Next()
	if err != nil {
		s.manager.ReportFatal(err)
		return entity.RejectedReceipt("", err)
	}
	messageID := valueobject.NewMessageID(s.identity, seq).String()

	logger := s.logger.With(
		zap.String("message_id", messageID),
		zap.String("destination", destination),
	)

	body, err := mergeMessageID(payload, messageID)
	if err != nil {
		return s.reject(logger, destination, messageID, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err))
	}

	msg := &entity.OutboundMessage{
		Destination: destination,
		MessageID:   messageID,
		Payload:     body,
		EnqueuedAt:  s.now(),
	}
	if err := msg.Validate(); err != nil {
		return s.reject(logger, destination, messageID, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err))
	}

	logger.Debug("constructed message for sending", zap.ByteString("body", body))

	if s.mode == entity.ModeNoop {
		logger.Warn("no broker configured outside production, message accepted without sending")
		s.metrics.MessageNoop(destination)
		r := entity.NewReceipt(messageID)
		r.Deliver()
		return r
	}

	r, err := s.manager.Send(ctx, msg)
	if err == nil {
		logger.Info("sending message")
		return r
	}

	if errors.Is(err, domain.ErrNotReady) {
		r, err = s.manager.Enqueue(ctx, msg)
		if err == nil {
			logger.Info("broker connection not open, message buffered for delivery")
			s.metrics.MessageQueued(destination)
			return r
		}
	}

	return s.reject(logger, destination, messageID, err)
}

func (s *ProducerService) reject(logger *zap.Logger, destination, messageID string, err error) *entity.Receipt {
	logger.Warn("message rejected", zap.Error(err))
	s.metrics.MessageRejected(destination, rejectReason(err))
	return entity.RejectedReceipt(messageID, err)
}

// mergeMessageID serializes payload and adds the message ID to the resulting
// JSON object. A nil payload becomes an object holding only the ID.
func mergeMessageID(payload any, messageID string) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case nil:
		raw = []byte("{}")
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("serializing payload: %w", err)
		}
		raw = b
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}

	id, err := json.Marshal(messageID)
	if err != nil {
		return nil, err
	}
	fields[domain.MessageIDField] = id

	return json.Marshal(fields)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, domain.ErrShuttingDown):
		return "shutting_down"
	case errors.Is(err, domain.ErrInvalidMessage):
		return "invalid"
	case errors.Is(err, domain.ErrTransportRejected):
		return "transport_rejected"
	case errors.Is(err, domain.ErrFatalTransport):
		return "fatal"
	case errors.Is(err, domain.ErrNotReady):
		return "not_ready"
	default:
		return "other"
	}
}
