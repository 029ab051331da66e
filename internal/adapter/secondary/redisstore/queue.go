package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// enqueueScript appends ARGV[1] to the list only while it holds fewer than
// ARGV[2] entries, so the length check and the push are atomic.
var enqueueScript = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('RPUSH', KEYS[1], ARGV[1])
return 1
`)

// messageDTO is the Redis-specific representation of a buffered message.
type messageDTO struct {
	Destination string `json:"to"`
	MessageID   string `json:"message_id"`
	Payload     string `json:"body"`
	EnqueuedAt  int64  `json:"enqueued_at"`
}

func toDTO(msg *entity.OutboundMessage) messageDTO {
	dto := messageDTO{
		Destination: msg.Destination,
		MessageID:   msg.MessageID,
		Payload:     string(msg.Payload),
	}
	if !msg.EnqueuedAt.IsZero() {
		dto.EnqueuedAt = msg.EnqueuedAt.UnixMilli()
	}
	return dto
}

func toEntity(dto messageDTO) *entity.OutboundMessage {
	msg := &entity.OutboundMessage{
		Destination: dto.Destination,
		MessageID:   dto.MessageID,
		Payload:     []byte(dto.Payload),
	}
	if dto.EnqueuedAt != 0 {
		msg.EnqueuedAt = time.UnixMilli(dto.EnqueuedAt)
	}
	return msg
}

func encode(msg *entity.OutboundMessage) (string, error) {
	data, err := json.Marshal(toDTO(msg))
	if err != nil {
		return "", fmt.Errorf("marshaling message %s: %w", msg.MessageID, err)
	}
	return string(data), nil
}

func decode(raw string) (*entity.OutboundMessage, error) {
	var dto messageDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		return nil, fmt.Errorf("unmarshaling buffered message: %w", err)
	}
	return toEntity(dto), nil
}

// Queue implements secondary.DeliveryQueue on a Redis list. Buffered
// messages survive a crash of the process and are drained by the next
// process using the same key. A graceful shutdown rejects and removes the
// messages it buffered.
type Queue struct {
	client   redis.UniversalClient
	key      string
	capacity int
	logger   *zap.Logger
}

// NewQueue creates a Redis-backed delivery queue stored under key.
func NewQueue(client redis.UniversalClient, key string, capacity int, logger *zap.Logger) secondary.DeliveryQueue {
	return &Queue{
		client:   client,
		key:      key,
		capacity: capacity,
		logger:   logger.Named("redis-queue"),
	}
}

// Enqueue appends msg unless the list already holds capacity entries.
func (q *Queue) Enqueue(ctx context.Context, msg *entity.OutboundMessage) (bool, error) {
	raw, err := encode(msg)
	if err != nil {
		return false, err
	}

	added, err := enqueueScript.Run(ctx, q.client, []string{q.key}, raw, q.capacity).Int()
	if err != nil {
		return false, fmt.Errorf("enqueueing message %s: %w", msg.MessageID, err)
	}

	if added == 0 {
		return false, nil
	}

	q.logger.Debug("message buffered",
		zap.String("message_id", msg.MessageID),
		zap.String("key", q.key),
	)
	return true, nil
}

// Dequeue pops the oldest message. Entries that cannot be decoded are
// logged and skipped.
func (q *Queue) Dequeue(ctx context.Context) (*entity.OutboundMessage, error) {
	for {
		raw, err := q.client.LPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("dequeueing from %s: %w", q.key, err)
		}

		msg, err := decode(raw)
		if err != nil {
			q.logger.Error("dropping undecodable queue entry", zap.Error(err))
			continue
		}
		return msg, nil
	}
}

// Requeue pushes msgs back to the head of the list in their original order.
func (q *Queue) Requeue(ctx context.Context, msgs ...*entity.OutboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	// LPUSH inserts each value at the head in turn, so push in reverse.
	values := make([]interface{}, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, err := encode(msgs[i])
		if err != nil {
			return err
		}
		values = append(values, raw)
	}

	if err := q.client.LPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("requeueing %d messages: %w", len(msgs), err)
	}
	return nil
}

// Len returns the length of the list.
func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("reading length of %s: %w", q.key, err)
	}
	return int(n), nil
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}
