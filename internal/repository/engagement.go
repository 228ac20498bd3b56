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

// targetTables maps likeable target types to the table holding their author.
var targetTables = map[string]string{
	model.TargetWork:     "works",
	model.TargetQuestion: "questions",
}

type engagementRepository struct {
	db *sqlx.DB
}

func NewEngagementRepository(db *sqlx.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) GetAuthorID(ctx context.Context, targetType, targetID string) (string, error) {
	table, ok := targetTables[targetType]
	if !ok {
		return "", model.ErrTargetNotFound
	}

	var authorID string
	err := r.db.GetContext(ctx, &authorID, fmt.Sprintf(`SELECT author_id FROM %s WHERE id = $1`, table), targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrTargetNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get author id: %w", err)
	}
	return authorID, nil
}

// Like inserts a like record. Returns ErrAlreadyLiked on a duplicate.
func (r *engagementRepository) Like(ctx context.Context, targetType, targetID, userID string) error {
	query := `INSERT INTO likes (target_type, target_id, user_id) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, targetType, targetID, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.ErrAlreadyLiked
		}
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

// Unlike deletes a like record. Returns ErrNotLiked if not found.
func (r *engagementRepository) Unlike(ctx context.Context, targetType, targetID, userID string) error {
	query := `DELETE FROM likes WHERE target_type = $1 AND target_id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, targetType, targetID, userID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return expectRow(result, model.ErrNotLiked)
}

func (r *engagementRepository) LikeCount(ctx context.Context, targetType, targetID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM likes WHERE target_type = $1 AND target_id = $2`
	if err := r.db.GetContext(ctx, &count, query, targetType, targetID); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

func (r *engagementRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	query := `
		INSERT INTO comments (target_type, target_id, user_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	row := r.db.QueryRowxContext(ctx, query, c.TargetType, c.TargetID, c.UserID, c.Body)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetComments returns comments on a target, newest first, with their authors.
func (r *engagementRepository) GetComments(ctx context.Context, targetType, targetID string, cursor *time.Time, limit int) ([]model.Comment, *time.Time, error) {
	query := `
		SELECT c.id, c.target_type, c.target_id, c.user_id, c.body, c.created_at,
		       u.display_name AS author_display_name, u.photo_url AS author_photo_url
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.target_type = $1 AND c.target_id = $2 AND ($3::timestamptz IS NULL OR c.created_at < $3)
		ORDER BY c.created_at DESC
		LIMIT $4
	`

	type commentRow struct {
		model.Comment
		AuthorDisplayName *string `db:"author_display_name"`
		AuthorPhotoURL    *string `db:"author_photo_url"`
	}

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, targetType, targetID, cursor, limit+1); err != nil {
		return nil, nil, fmt.Errorf("get comments: %w", err)
	}

	var nextCursor *time.Time
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &rows[len(rows)-1].CreatedAt
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		c := row.Comment
		c.Author = &model.UserSummary{
			ID:          row.UserID,
			DisplayName: row.AuthorDisplayName,
			PhotoURL:    row.AuthorPhotoURL,
		}
		comments[i] = c
	}
	return comments, nextCursor, nil
}

// expectRow maps a statement that touched no rows to notFound.
func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
