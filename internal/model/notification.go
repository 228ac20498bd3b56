package model

import (
	"errors"
	"time"
)

// Notification types
const (
	NotificationTypeFollow  = "follow"
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
	NotificationTypeReport  = "report"
)

// Notification is one item under a recipient's notification list.
// EventID is unique: the same activity event never yields two rows.
type Notification struct {
	ID         int64     `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"-"`
	EventID    string    `db:"event_id" json:"-"`
	Type       string    `db:"type" json:"type"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	TargetType string    `db:"target_type" json:"target_type,omitempty"`
	TargetID   string    `db:"target_id" json:"target_id,omitempty"`
	Message    string    `db:"message" json:"message"`
	Snippet    string    `db:"snippet" json:"snippet,omitempty"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// SetReadRequest is the body of PATCH /notifications/{id}.
type SetReadRequest struct {
	Read *bool `json:"read" validate:"required"`
}

var ErrNotificationNotFound = errors.New("notification not found")
