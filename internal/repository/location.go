package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"shaka/internal/model"
)

type locationRepository struct {
	db *sqlx.DB
}

func NewLocationRepository(db *sqlx.DB) LocationRepository {
	return &locationRepository{db: db}
}

// Save replaces the user's row with a new session's share. The version keeps
// counting across sessions so readers never see it go backwards.
func (r *locationRepository) Save(ctx context.Context, s *model.LocationShare) error {
	query := `
		INSERT INTO user_locations (user_id, session_id, latitude, longitude, display_name, photo_url, updated_at, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		ON CONFLICT (user_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at,
			version = user_locations.version + 1
		RETURNING version
	`
	err := r.db.GetContext(ctx, &s.Version, query,
		s.UserID, s.SessionID, s.Latitude, s.Longitude, s.DisplayName, s.PhotoURL, s.UpdatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (r *locationRepository) Touch(ctx context.Context, userID, sessionID string, coord model.Coordinate, at time.Time) (int64, error) {
	query := `
		UPDATE user_locations
		SET latitude = $1, longitude = $2, updated_at = $3, version = version + 1
		WHERE user_id = $4 AND session_id = $5
		RETURNING version
	`
	var version int64
	err := r.db.GetContext(ctx, &version, query, coord.Latitude, coord.Longitude, at, userID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrShareNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("touch location: %w", err)
	}
	return version, nil
}

func (r *locationRepository) Delete(ctx context.Context, userID, sessionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_locations WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete location: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *locationRepository) Get(ctx context.Context, userID string) (*model.LocationShare, error) {
	query := `
		SELECT user_id, session_id, latitude, longitude, display_name, photo_url, updated_at, expires_at, version
		FROM user_locations
		WHERE user_id = $1
	`
	var s model.LocationShare
	err := r.db.GetContext(ctx, &s, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &s, nil
}

// ListActive returns unexpired shares owned by any of userIDs.
func (r *locationRepository) ListActive(ctx context.Context, userIDs []string, now time.Time) ([]model.LocationShare, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT user_id, session_id, latitude, longitude, display_name, photo_url, updated_at, expires_at, version
		FROM user_locations
		WHERE user_id = ANY($1) AND expires_at > $2
	`
	var shares []model.LocationShare
	if err := r.db.SelectContext(ctx, &shares, query, pq.Array(userIDs), now); err != nil {
		return nil, fmt.Errorf("list active locations: %w", err)
	}
	return shares, nil
}

func (r *locationRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	var userIDs []string
	err := r.db.SelectContext(ctx, &userIDs, `DELETE FROM user_locations WHERE expires_at <= $1 RETURNING user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired locations: %w", err)
	}
	return userIDs, nil
}
