package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shaka/internal/queue"
	"shaka/internal/service"
)

// ErrUnknownEvent is returned for event types no handler understands.
// Retrying such an event cannot succeed.
var ErrUnknownEvent = errors.New("unknown event type")

// Notifier turns an activity event into a notification.
// Implemented by service.NotificationService.
type Notifier interface {
	Fanout(ctx context.Context, event queue.ActivityEvent) (service.FanoutResult, error)
}

// Handler processes activity events from the queue.
type Handler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a new event handler.
func NewHandler(notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{notifier: notifier, logger: logger.Named("handler")}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ActivityEvent) error {
	switch event.Type {
	case queue.EventFollow, queue.EventLike, queue.EventComment, queue.EventReport:
		return h.fanout(ctx, event)
	default:
		h.logger.Warn("Unknown event type", zap.String("type", event.Type), zap.String("event", event.ID))
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}
}

func (h *Handler) fanout(ctx context.Context, event queue.ActivityEvent) error {
	startTime := time.Now()

	res, err := h.notifier.Fanout(ctx, event)
	if err != nil {
		h.logger.Error("HandleEvent FAILED",
			zap.String("type", event.Type),
			zap.String("event", event.ID),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("HandleEvent OK",
		zap.String("type", event.Type),
		zap.String("event", event.ID),
		zap.String("recipient", event.RecipientID),
		zap.Bool("skipped", res.Skipped),
		zap.Bool("duplicate", res.Duplicate),
		zap.Int("delivered", res.Delivered),
		zap.Int("transient", res.Transient),
		zap.Int("pruned", res.Pruned),
		zap.Duration("duration", time.Since(startTime)),
	)
	return nil
}
