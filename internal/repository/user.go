package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
)

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their Firebase UID
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, display_name, photo_url, follower_count, following_count, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

func (r *userRepository) Upsert(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, display_name, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			updated_at = NOW()
		RETURNING follower_count, following_count, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query, u.ID, u.DisplayName, u.PhotoURL)
	if err := row.Scan(&u.FollowerCount, &u.FollowingCount, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *userRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID string, delta int) error {
	query := `UPDATE users SET follower_count = GREATEST(follower_count + $1, 0) WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to increment follower count: %w", err)
	}
	return nil
}

func (r *userRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID string, delta int) error {
	query := `UPDATE users SET following_count = GREATEST(following_count + $1, 0) WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to increment following count: %w", err)
	}
	return nil
}
