package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"shaka/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID string) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID string) error {
	query := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	result, err := tx.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}

	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

// GetFollowers retrieves users who follow userID, newest first.
//
// Pagination is keyed on follows.created_at: one extra row is fetched to know
// whether another page exists, and the last returned row's timestamp becomes
// the next cursor.
func (r *followRepository) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return r.page(ctx, "f.follower_id", "f.followee_id", userID, cursor, limit)
}

// GetFollowing retrieves users that userID follows. See GetFollowers.
func (r *followRepository) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return r.page(ctx, "f.followee_id", "f.follower_id", userID, cursor, limit)
}

func (r *followRepository) page(ctx context.Context, joinCol, whereCol, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = fmt.Sprintf(`
			SELECT u.id, u.display_name, u.photo_url, f.created_at
			FROM follows f
			JOIN users u ON u.id = %s
			WHERE %s = $1
			ORDER BY f.created_at DESC
			LIMIT $2
		`, joinCol, whereCol)
		args = []interface{}{userID, limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT u.id, u.display_name, u.photo_url, f.created_at
			FROM follows f
			JOIN users u ON u.id = %s
			WHERE %s = $1 AND f.created_at < $2
			ORDER BY f.created_at DESC
			LIMIT $3
		`, joinCol, whereCol)
		args = []interface{}{userID, cursor, limit + 1}
	}

	type userWithTime struct {
		model.UserSummary
		CreatedAt time.Time `db:"created_at"`
	}

	var results []userWithTime
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to list follows: %w", err)
	}

	var nextCursor *time.Time
	if len(results) > limit {
		results = results[:limit]
		nextCursor = &results[len(results)-1].CreatedAt
	}

	users := make([]model.UserSummary, 0, len(results))
	for _, result := range results {
		users = append(users, result.UserSummary)
	}

	return users, nextCursor, nil
}

func (r *followRepository) CheckFollows(ctx context.Context, followerID string, followeeIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(followeeIDs))
	if len(followeeIDs) == 0 {
		return result, nil
	}

	query := `SELECT followee_id FROM follows WHERE follower_id = $1 AND followee_id = ANY($2)`
	var followedIDs []string
	if err := r.db.SelectContext(ctx, &followedIDs, query, followerID, pq.Array(followeeIDs)); err != nil {
		return nil, fmt.Errorf("failed to check follows: %w", err)
	}

	for _, id := range followeeIDs {
		result[id] = false
	}
	for _, id := range followedIDs {
		result[id] = true
	}

	return result, nil
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT follower_id FROM follows WHERE followee_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}

func (r *followRepository) GetFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT followee_id FROM follows WHERE follower_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get followee ids: %w", err)
	}
	return ids, nil
}
