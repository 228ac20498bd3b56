package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event ActivityEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client, logger *zap.Logger) Publisher {
	return &RedisPublisher{client: client, logger: logger.Named("publisher")}
}

// Publish adds an event to the stream using XADD.
// Uses "*" for auto-generated message ID (timestamp-sequence).
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event ActivityEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		p.logger.Error("Publish FAILED", zap.String("stream", stream), zap.String("type", event.Type), zap.Error(err))
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		p.logger.Error("Publish FAILED", zap.String("stream", stream), zap.String("type", event.Type), zap.Error(err))
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.logger.Info("Publish OK",
		zap.String("stream", stream),
		zap.String("type", event.Type),
		zap.String("event", event.ID),
		zap.String("actor", event.ActorID),
		zap.String("recipient", event.RecipientID),
		zap.String("msgID", messageID),
		zap.Duration("duration", time.Since(startTime)),
	)
	return messageID, nil
}
