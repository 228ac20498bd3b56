package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message represents a message read from a Redis stream.
type Message struct {
	ID    string        // Redis message ID (e.g., "1702000000000-0")
	Event ActivityEvent // Parsed event data
}

// Consumer defines the interface for consuming events from a stream.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist.
	// Should be called at worker startup.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read reads new messages for this consumer using XREADGROUP ">".
	// block: how long to block waiting for new messages
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending reads messages delivered to this consumer but never
	// acknowledged, e.g. because the process crashed mid-batch.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Ack acknowledges that a message has been processed.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending returns the number of pending (unacknowledged) messages for the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
	logger *zap.Logger
}

// NewConsumer creates a new Consumer backed by Redis Streams.
func NewConsumer(client *redis.Client, logger *zap.Logger) Consumer {
	return &RedisConsumer{client: client, logger: logger.Named("consumer")}
}

// EnsureGroup creates the consumer group if it doesn't exist.
// MKSTREAM creates the stream as well; "0" makes a new group read the
// stream from the beginning.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.logger.Debug("EnsureGroup: already exists", zap.String("stream", stream), zap.String("group", group))
			return nil
		}
		c.logger.Error("EnsureGroup FAILED", zap.String("stream", stream), zap.String("group", group), zap.Error(err))
		return fmt.Errorf("create consumer group: %w", err)
	}

	c.logger.Info("EnsureGroup OK: created", zap.String("stream", stream), zap.String("group", group))
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, ">", count, block)
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	// "0" re-delivers this consumer's pending entries instead of new ones.
	// A negative block omits BLOCK so the call returns immediately.
	return c.read(ctx, stream, group, consumer, "0", count, -1)
}

func (c *RedisConsumer) read(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]Message, error) {
	startTime := time.Now()

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", id, err)
	}

	var messages []Message
	var malformed []string
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseActivityEvent(msg.Values)
			if err != nil {
				c.logger.Warn("Dropping malformed message", zap.String("msgID", msg.ID), zap.Error(err))
				malformed = append(malformed, msg.ID)
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}

	// Malformed entries can never be handled; ack them so they do not sit in
	// the pending list forever.
	if len(malformed) > 0 {
		if err := c.Ack(ctx, stream, group, malformed...); err != nil {
			c.logger.Warn("Ack malformed FAILED", zap.Error(err))
		}
	}

	if len(messages) > 0 {
		c.logger.Debug("Read OK",
			zap.String("stream", stream),
			zap.String("consumer", consumer),
			zap.String("from", id),
			zap.Int("count", len(messages)),
			zap.Duration("duration", time.Since(startTime)),
		)
	}
	return messages, nil
}

// Ack acknowledges messages using XACK.
func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if _, err := c.client.XAck(ctx, stream, group, messageIDs...).Result(); err != nil {
		c.logger.Error("Ack FAILED", zap.String("stream", stream), zap.Strings("ids", messageIDs), zap.Error(err))
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Pending returns the count of pending messages for the consumer group.
func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
