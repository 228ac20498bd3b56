package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
)

type countsRepository struct {
	db *sqlx.DB
}

func NewCountsRepository(db *sqlx.DB) CountsRepository {
	return &countsRepository{db: db}
}

func (r *countsRepository) ScanCounts(ctx context.Context, afterID string, limit int) ([]model.UserCounts, error) {
	query := `
		SELECT u.id, u.follower_count, u.following_count,
		       (SELECT COUNT(*) FROM follows f WHERE f.followee_id = u.id) AS actual_followers,
		       (SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.id) AS actual_following
		FROM users u
		WHERE u.id > $1
		ORDER BY u.id
		LIMIT $2
	`
	var rows []model.UserCounts
	if err := r.db.SelectContext(ctx, &rows, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("scan user counts: %w", err)
	}
	return rows, nil
}

func (r *countsRepository) ApplyCorrections(ctx context.Context, rows []model.UserCounts) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE users SET follower_count = $1, following_count = $2, updated_at = NOW() WHERE id = $3`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query, row.ActualFollowers, row.ActualFollowing, row.UserID); err != nil {
			return fmt.Errorf("update counts for %s: %w", row.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
