package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"shaka/internal/cache"
	"shaka/internal/model"
	"shaka/internal/push"
	"shaka/internal/queue"
	"shaka/internal/repository"
)

// fallbackActorName is shown when the actor's profile cannot be loaded.
const fallbackActorName = "Someone"

// FanoutResult describes what Fanout did with one activity event.
type FanoutResult struct {
	// Skipped is set for self-directed actions, which never notify.
	Skipped bool
	// Duplicate is set when the event had already been turned into a
	// notification by an earlier delivery.
	Duplicate      bool
	NotificationID int64
	Delivered      int
	Transient      int
	Pruned         int
}

// NotificationService turns activity events into in-app notifications and
// push messages, and serves the notification list.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	tokenRepo repository.DeviceTokenRepository
	userRepo  repository.UserRepository
	badges    cache.BadgeCache
	sender    push.Sender // nil when push is not configured
	logger    *zap.Logger
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	tokenRepo repository.DeviceTokenRepository,
	userRepo repository.UserRepository,
	badges cache.BadgeCache,
	sender push.Sender,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		badges:    badges,
		sender:    sender,
		logger:    logger.Named("notification"),
	}
}

// Fanout creates the notification for event and pushes it to the recipient's
// devices. Redelivery of the same event creates nothing and sends nothing.
// Only the notification insert can fail the call; push problems are logged.
func (s *NotificationService) Fanout(ctx context.Context, event queue.ActivityEvent) (FanoutResult, error) {
	var res FanoutResult

	if event.ActorID == event.RecipientID {
		res.Skipped = true
		return res, nil
	}

	actorName := s.actorName(ctx, event.ActorID)
	title, body := buildMessage(event, actorName)

	n := &model.Notification{
		UserID:     event.RecipientID,
		EventID:    event.ID,
		Type:       event.Type,
		ActorID:    event.ActorID,
		TargetType: event.TargetType,
		TargetID:   event.TargetID,
		Message:    body,
		Snippet:    event.Snippet,
	}
	inserted, err := s.notifRepo.Create(ctx, n)
	if err != nil {
		return res, fmt.Errorf("create notification: %w", err)
	}
	if !inserted {
		res.Duplicate = true
		s.logger.Info("Duplicate event ignored", zap.String("event", event.ID))
		return res, nil
	}
	res.NotificationID = n.ID

	if s.sender == nil {
		return res, nil
	}

	tokens, err := s.tokenRepo.GetByUserID(ctx, event.RecipientID)
	if err != nil {
		s.logger.Error("Load device tokens FAILED", zap.String("user", event.RecipientID), zap.Error(err))
		return res, nil
	}
	if len(tokens) == 0 {
		return res, nil
	}

	tokenStrings := make([]string, len(tokens))
	for i, t := range tokens {
		tokenStrings[i] = t.Token
	}

	msg := push.Message{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":            event.Type,
			"actor_id":        event.ActorID,
			"target_type":     event.TargetType,
			"target_id":       event.TargetID,
			"notification_id": strconv.FormatInt(n.ID, 10),
		},
	}
	if badge, ok := s.unreadBadge(ctx, event.RecipientID); ok {
		msg.Badge = &badge
	}

	results, err := s.sender.Send(ctx, tokenStrings, msg)
	if err != nil {
		s.logger.Warn("Push send FAILED", zap.String("user", event.RecipientID), zap.Error(err))
	}

	for _, r := range results {
		switch r.Kind {
		case push.KindDelivered:
			res.Delivered++
		case push.KindTransient:
			res.Transient++
			s.logger.Warn("Push transient failure, keeping token", zap.String("user", event.RecipientID), zap.Error(r.Err))
		case push.KindPermanent:
			if err := s.tokenRepo.Delete(ctx, r.Token); err != nil {
				s.logger.Error("Prune token FAILED", zap.String("user", event.RecipientID), zap.Error(err))
				continue
			}
			res.Pruned++
			s.logger.Info("Pruned dead token", zap.String("user", event.RecipientID), zap.Error(r.Err))
		}
	}

	return res, nil
}

func (s *NotificationService) actorName(ctx context.Context, actorID string) string {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		s.logger.Warn("Actor lookup FAILED", zap.String("actor", actorID), zap.Error(err))
		return fallbackActorName
	}
	return actor.Name(fallbackActorName)
}

// unreadBadge bumps the recipient's badge counter. A missing counter is
// rebuilt from Postgres, which already includes the new notification.
func (s *NotificationService) unreadBadge(ctx context.Context, userID string) (int, bool) {
	if s.badges == nil {
		return 0, false
	}

	_, found, err := s.badges.Get(ctx, userID)
	if err == nil && found {
		count, err := s.badges.Incr(ctx, userID)
		if err == nil {
			return int(count), true
		}
	}

	count, err := s.notifRepo.GetUnreadCount(ctx, userID)
	if err != nil {
		s.logger.Warn("Unread count FAILED", zap.String("user", userID), zap.Error(err))
		return 0, false
	}
	if err := s.badges.Set(ctx, userID, int64(count)); err != nil {
		s.logger.Warn("Badge set FAILED", zap.String("user", userID), zap.Error(err))
	}
	return count, true
}

func buildMessage(event queue.ActivityEvent, actorName string) (title, body string) {
	switch event.Type {
	case model.NotificationTypeFollow:
		return "New Follower", actorName + " started following you"
	case model.NotificationTypeLike:
		return "New Like", fmt.Sprintf("%s liked your %s", actorName, event.TargetType)
	case model.NotificationTypeComment:
		if event.Snippet != "" {
			return "New Comment", fmt.Sprintf("%s commented: %s", actorName, event.Snippet)
		}
		return "New Comment", fmt.Sprintf("%s commented on your %s", actorName, event.TargetType)
	case model.NotificationTypeReport:
		return "New Report", fmt.Sprintf("%s reported a %s", actorName, event.TargetType)
	default:
		return "Shaka", "You have a new notification"
	}
}

// GetNotifications returns the newest notifications and the unread count.
func (s *NotificationService) GetNotifications(ctx context.Context, userID string, limit int) (*model.NotificationListResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	notifications, err := s.notifRepo.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// GetUnreadCount returns the number of unread notifications (for badge display).
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.notifRepo.GetUnreadCount(ctx, userID)
}

// SetRead marks one notification read or unread.
func (s *NotificationService) SetRead(ctx context.Context, userID string, id int64, read bool) error {
	if err := s.notifRepo.SetRead(ctx, userID, id, read); err != nil {
		return err
	}
	s.resetBadge(ctx, userID)
	return nil
}

// MarkAllAsRead marks all notifications for a user as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	if err := s.notifRepo.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}
	s.resetBadge(ctx, userID)
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.notifRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.resetBadge(ctx, userID)
	return nil
}

// resetBadge drops the cached counter so the next push recounts.
func (s *NotificationService) resetBadge(ctx context.Context, userID string) {
	if s.badges == nil {
		return
	}
	if err := s.badges.Reset(ctx, userID); err != nil {
		s.logger.Warn("Badge reset FAILED", zap.String("user", userID), zap.Error(err))
	}
}

// RegisterDeviceToken stores a device's FCM token. A token already held by
// another account moves to userID (the device changed hands).
func (s *NotificationService) RegisterDeviceToken(ctx context.Context, userID string, req *model.RegisterTokenRequest) error {
	platform := req.Platform
	if platform == "" {
		platform = model.PlatformIOS
	}
	return s.tokenRepo.Upsert(ctx, userID, req.Token, platform)
}

// RemoveDeviceToken unregisters a token on sign-out.
func (s *NotificationService) RemoveDeviceToken(ctx context.Context, userID, token string) error {
	return s.tokenRepo.DeleteForUser(ctx, userID, token)
}
