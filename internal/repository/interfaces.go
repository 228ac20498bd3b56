package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	// Upsert creates the profile on first write and updates it afterwards
	Upsert(ctx context.Context, user *model.User) error
	IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID string, delta int) error
	IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID string, delta int) error
}

type FollowRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID string) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID string) error
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	CheckFollows(ctx context.Context, followerID string, followeeIDs []string) (map[string]bool, error)
	// GetFollowerIDs returns everyone following userID
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
	// GetFolloweeIDs returns everyone userID follows
	GetFolloweeIDs(ctx context.Context, userID string) ([]string, error)
}

type EngagementRepository interface {
	// GetAuthorID returns the author of a work or question
	GetAuthorID(ctx context.Context, targetType, targetID string) (string, error)
	Like(ctx context.Context, targetType, targetID, userID string) error
	Unlike(ctx context.Context, targetType, targetID, userID string) error
	LikeCount(ctx context.Context, targetType, targetID string) (int, error)
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComments(ctx context.Context, targetType, targetID string, cursor *time.Time, limit int) ([]model.Comment, *time.Time, error)
}

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
}

type NotificationRepository interface {
	// Create inserts a notification keyed by its event ID. It reports false
	// when a notification for the same event already exists.
	Create(ctx context.Context, n *model.Notification) (bool, error)
	List(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	SetRead(ctx context.Context, userID string, id int64, read bool) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, id int64) error
	GetUnreadCount(ctx context.Context, userID string) (int, error)
}

type DeviceTokenRepository interface {
	// Upsert creates or moves a device token to userID
	Upsert(ctx context.Context, userID, token, platform string) error
	GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error)
	Delete(ctx context.Context, token string) error
	// DeleteForUser removes a token only if userID owns it
	DeleteForUser(ctx context.Context, userID, token string) error
}

type LocationRepository interface {
	// Save writes a fresh share for a new session, replacing any earlier row
	Save(ctx context.Context, share *model.LocationShare) error
	// Touch overwrites the coordinate of the row owned by sessionID and bumps
	// its version. Returns model.ErrShareNotFound when that session no longer
	// owns a row.
	Touch(ctx context.Context, userID, sessionID string, coord model.Coordinate, at time.Time) (int64, error)
	// Delete removes the row only if sessionID still owns it
	Delete(ctx context.Context, userID, sessionID string) (bool, error)
	Get(ctx context.Context, userID string) (*model.LocationShare, error)
	ListActive(ctx context.Context, userIDs []string, now time.Time) ([]model.LocationShare, error)
	// DeleteExpired removes rows past their deadline and returns their owners
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// CountsRepository backs the follower/following count backfill.
type CountsRepository interface {
	// ScanCounts returns up to limit users ordered by ID after afterID, with
	// both their stored counters and the counts derived from follows.
	ScanCounts(ctx context.Context, afterID string, limit int) ([]model.UserCounts, error)
	// ApplyCorrections writes the derived counts in a single transaction
	ApplyCorrections(ctx context.Context, rows []model.UserCounts) error
}
