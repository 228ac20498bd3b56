package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
)

type reportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, target_type, target_id, reason)
		VALUES (:id, :reporter_id, :target_type, :target_id, :reason)
	`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
