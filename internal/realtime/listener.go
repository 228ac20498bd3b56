package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Listener delivers location events for a fixed set of users.
type Listener interface {
	// Listen calls emit for every event published for userIDs until ctx is
	// done or emit returns an error.
	Listen(ctx context.Context, userIDs []string, emit func(LocationEvent) error) error
}

// RedisListener implements Listener with SUBSCRIBE.
type RedisListener struct {
	client *redis.Client
	logger *zap.Logger
}

func NewListener(client *redis.Client, logger *zap.Logger) *RedisListener {
	return &RedisListener{client: client, logger: logger.Named("listener")}
}

func (l *RedisListener) Listen(ctx context.Context, userIDs []string, emit func(LocationEvent) error) error {
	if len(userIDs) == 0 {
		<-ctx.Done()
		return nil
	}

	channels := make([]string, len(userIDs))
	for i, id := range userIDs {
		channels[i] = Channel(id)
	}

	sub := l.client.Subscribe(ctx, channels...)
	defer sub.Close()

	// Wait for the subscription confirmation so no event published after
	// Listen returns from setup is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev LocationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				l.logger.Warn("Dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if err := emit(ev); err != nil {
				return err
			}
		}
	}
}
