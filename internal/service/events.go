package service

import (
	"context"

	"go.uber.org/zap"

	"shaka/internal/queue"
)

// publishActivity hands an event to the notification workers. The write that
// produced it has already committed, so a publish failure is logged rather
// than returned.
func publishActivity(ctx context.Context, publisher queue.Publisher, logger *zap.Logger, event queue.ActivityEvent) {
	if publisher == nil {
		return
	}
	if _, err := publisher.Publish(ctx, queue.StreamActivity, event); err != nil {
		logger.Error("Publish activity FAILED",
			zap.String("type", event.Type),
			zap.String("actor", event.ActorID),
			zap.String("recipient", event.RecipientID),
			zap.Error(err),
		)
	}
}
