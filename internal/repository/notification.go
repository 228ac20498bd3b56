package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a new notification. A second insert for the same event_id
// is ignored and reported as false.
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (user_id, event_id, type, actor_id, target_type, target_id, message, snippet)
		VALUES (:user_id, :event_id, :type, :actor_id, :target_type, :target_id, :message, :snippet)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id, is_read, created_at
	`
	rows, err := r.db.NamedQueryContext(ctx, query, n)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, fmt.Errorf("insert notification: %w", err)
		}
		return false, nil
	}
	if err := rows.Scan(&n.ID, &n.IsRead, &n.CreatedAt); err != nil {
		return false, fmt.Errorf("scan notification: %w", err)
	}
	return true, nil
}

// List returns the newest notifications for a user.
func (r *notificationRepository) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, event_id, type, actor_id, target_type, target_id, message, snippet, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	notifications := []model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) SetRead(ctx context.Context, userID string, id int64, read bool) error {
	query := `UPDATE notifications SET is_read = $1 WHERE user_id = $2 AND id = $3`
	result, err := r.db.ExecContext(ctx, query, read, userID, id)
	if err != nil {
		return fmt.Errorf("set notification read: %w", err)
	}
	return expectRow(result, model.ErrNotificationNotFound)
}

// MarkAllAsRead marks all notifications for a user as read.
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID string) error {
	query := `
		UPDATE notifications
		SET is_read = true
		WHERE user_id = $1 AND is_read = false
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("mark all notifications as read: %w", err)
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return expectRow(result, model.ErrNotificationNotFound)
}

// GetUnreadCount returns the count of unread notifications.
func (r *notificationRepository) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = false
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("get unread count: %w", err)
	}
	return count, nil
}
