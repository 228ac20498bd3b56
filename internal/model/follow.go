package model

import (
	"errors"
	"time"
)

type Follow struct {
	FollowerID string    `db:"follower_id" json:"follower_id"`
	FolloweeID string    `db:"followee_id" json:"followee_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type UserSummary struct {
	ID          string  `db:"id" json:"id"`
	DisplayName *string `db:"display_name" json:"display_name"`
	PhotoURL    *string `db:"photo_url" json:"photo_url"`
	IsFollowing bool    `json:"is_following"`
}

type FollowListResponse struct {
	Users      []UserSummary `json:"users"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// MutualsResponse lists the users who both follow and are followed by the caller.
type MutualsResponse struct {
	UserIDs []string `json:"user_ids"`
	Count   int      `json:"count"`
}

var (
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
)
