package model

import (
	"errors"
	"time"
)

// Coordinate is a WGS84 position.
type Coordinate struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// LocationShare is the record a sharing user publishes for their mutual
// followers. SessionID identifies the session that owns the row and Version
// increases with every write, so a stale writer can be told apart from the
// current one.
type LocationShare struct {
	UserID      string    `json:"user_id" db:"user_id"`
	SessionID   string    `json:"-" db:"session_id"`
	Latitude    float64   `json:"latitude" db:"latitude"`
	Longitude   float64   `json:"longitude" db:"longitude"`
	DisplayName string    `json:"display_name" db:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty" db:"photo_url"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	Version     int64     `json:"version" db:"version"`
}

// Visible reports whether the share is still live at now.
func (s *LocationShare) Visible(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

func (s *LocationShare) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// StartShareRequest is the body of POST /location/share. The coordinate may
// be omitted when the client already sent one with PUT.
type StartShareRequest struct {
	Latitude        *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude       *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=1"`
}

// Coordinate returns the body's coordinate, or nil when none was sent.
func (r *StartShareRequest) Coordinate() *Coordinate {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// UpdateCoordinateRequest is the body of PUT /location/share.
type UpdateCoordinateRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

var (
	ErrShareNotFound   = errors.New("location share not found")
	ErrNotSharing      = errors.New("location sharing is not active")
	ErrAlreadySharing  = errors.New("location sharing is already active")
	ErrNoCoordinate    = errors.New("current coordinate is unknown")
	ErrInvalidDuration = errors.New("invalid sharing duration")
)
