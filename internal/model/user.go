package model

import (
	"errors"
	"time"
)

// User is a profile keyed by its Firebase Authentication UID.
type User struct {
	ID             string    `db:"id" json:"id"`
	DisplayName    *string   `db:"display_name" json:"display_name"`
	PhotoURL       *string   `db:"photo_url" json:"photo_url"`
	FollowerCount  int       `db:"follower_count" json:"follower_count"`
	FollowingCount int       `db:"following_count" json:"following_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Name returns the display name or fallback when the profile has none.
func (u *User) Name(fallback string) string {
	if u == nil || u.DisplayName == nil || *u.DisplayName == "" {
		return fallback
	}
	return *u.DisplayName
}

// UpdateProfileRequest is the body of PUT /me.
type UpdateProfileRequest struct {
	DisplayName string  `json:"display_name" validate:"required,min=1,max=50"`
	PhotoURL    *string `json:"photo_url" validate:"omitempty,url"`
}

// UserCounts pairs a user's stored follow counters with the values
// recomputed from the follows table.
type UserCounts struct {
	UserID          string `db:"id" json:"user_id"`
	FollowerCount   int    `db:"follower_count" json:"follower_count"`
	FollowingCount  int    `db:"following_count" json:"following_count"`
	ActualFollowers int    `db:"actual_followers" json:"actual_followers"`
	ActualFollowing int    `db:"actual_following" json:"actual_following"`
}

// Mismatched reports whether the stored counters disagree with follows.
func (c UserCounts) Mismatched() bool {
	return c.FollowerCount != c.ActualFollowers || c.FollowingCount != c.ActualFollowing
}

// Token error codes returned by the auth middleware.
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAuthenticated is returned when an operation needs a signed-in user
	ErrNotAuthenticated = errors.New("not authenticated")
)
