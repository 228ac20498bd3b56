package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert creates or updates a device token for a user.
// If the token already exists, it moves to userID.
func (r *deviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	query := `
		INSERT INTO device_tokens (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, token, userID, platform); err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// GetByUserID returns all device tokens for a user.
func (r *deviceTokenRepository) GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	query := `
		SELECT token, user_id, platform, updated_at
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	var tokens []model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

// Delete removes a device token.
func (r *deviceTokenRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}

func (r *deviceTokenRepository) DeleteForUser(ctx context.Context, userID, token string) error {
	query := `DELETE FROM device_tokens WHERE token = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, token, userID); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
