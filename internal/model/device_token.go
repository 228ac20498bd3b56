package model

import (
	"time"
)

// DeviceToken is a push registration owned by one user. A user may have
// several devices; a token belongs to exactly one user at a time.
type DeviceToken struct {
	Token     string    `db:"token" json:"-"`
	UserID    string    `db:"user_id" json:"-"`
	Platform  string    `db:"platform" json:"platform"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegisterTokenRequest is the request body for registering a device token.
type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android"`
}

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)
