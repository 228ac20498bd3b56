// Package realtime fans location changes out to live viewers over Redis
// pub/sub. Every sharing user has one channel; viewers subscribe to the
// channels of their mutual followers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shaka/internal/model"
)

// Event types
const (
	EventUpdated = "updated"
	EventRemoved = "removed"
)

const channelPrefix = "location:user:"

// LocationEvent is pushed to viewers when a share changes or disappears.
type LocationEvent struct {
	Type   string               `json:"type"`
	UserID string               `json:"user_id"`
	Share  *model.LocationShare `json:"share,omitempty"`
}

// Channel returns the pub/sub channel for a sharing user.
func Channel(userID string) string {
	return channelPrefix + userID
}

// Broadcaster publishes location events.
type Broadcaster interface {
	Updated(ctx context.Context, share *model.LocationShare) error
	Removed(ctx context.Context, userID string) error
}

// RedisBroadcaster implements Broadcaster with PUBLISH.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

func NewBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: logger.Named("broadcaster")}
}

func (b *RedisBroadcaster) Updated(ctx context.Context, share *model.LocationShare) error {
	return b.publish(ctx, LocationEvent{Type: EventUpdated, UserID: share.UserID, Share: share})
}

func (b *RedisBroadcaster) Removed(ctx context.Context, userID string) error {
	return b.publish(ctx, LocationEvent{Type: EventRemoved, UserID: userID})
}

func (b *RedisBroadcaster) publish(ctx context.Context, ev LocationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal location event: %w", err)
	}
	receivers, err := b.client.Publish(ctx, Channel(ev.UserID), data).Result()
	if err != nil {
		b.logger.Warn("Publish FAILED", zap.String("user", ev.UserID), zap.String("type", ev.Type), zap.Error(err))
		return fmt.Errorf("publish location event: %w", err)
	}
	b.logger.Debug("Publish OK", zap.String("user", ev.UserID), zap.String("type", ev.Type), zap.Int64("receivers", receivers))
	return nil
}
