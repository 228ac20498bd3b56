// Package backfill repairs the denormalized follower/following counters on
// users by recomputing them from the follows table.
package backfill

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shaka/internal/model"
	"shaka/internal/repository"
)

const (
	DefaultBatchSize  = 400
	DefaultBatchDelay = 500 * time.Millisecond
)

type Options struct {
	DryRun     bool
	BatchSize  int
	BatchDelay time.Duration
}

func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, BatchDelay: DefaultBatchDelay}
}

// Summary is printed at the end of a run and optionally archived.
type Summary struct {
	Scanned    int       `json:"scanned"`
	Mismatched int       `json:"mismatched"`
	Written    int       `json:"written"`
	Batches    int       `json:"batches"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Runner struct {
	store  repository.CountsRepository
	opts   Options
	logger *zap.Logger
}

func NewRunner(store repository.CountsRepository, opts Options, logger *zap.Logger) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Runner{store: store, opts: opts, logger: logger.Named("backfill")}
}

// Run walks every user in ID order. In dry-run mode nothing is written.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{DryRun: r.opts.DryRun, StartedAt: time.Now()}

	afterID := ""
	for {
		rows, err := r.store.ScanCounts(ctx, afterID, r.opts.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("batch %d: %w", summary.Batches+1, err)
		}
		if len(rows) == 0 {
			break
		}
		summary.Batches++
		summary.Scanned += len(rows)

		var fixes []model.UserCounts
		for _, row := range rows {
			if row.Mismatched() {
				fixes = append(fixes, row)
			}
		}
		summary.Mismatched += len(fixes)

		if !r.opts.DryRun && len(fixes) > 0 {
			if err := r.store.ApplyCorrections(ctx, fixes); err != nil {
				return summary, fmt.Errorf("batch %d: %w", summary.Batches, err)
			}
			summary.Written += len(fixes)
		}

		r.logger.Debug("Batch OK",
			zap.Int("batch", summary.Batches),
			zap.Int("rows", len(rows)),
			zap.Int("mismatched", len(fixes)),
		)

		if len(rows) < r.opts.BatchSize {
			break
		}
		afterID = rows[len(rows)-1].UserID

		if err := sleep(ctx, r.opts.BatchDelay); err != nil {
			return summary, err
		}
	}

	summary.FinishedAt = time.Now()
	r.logger.Info("Backfill OK",
		zap.Int("scanned", summary.Scanned),
		zap.Int("mismatched", summary.Mismatched),
		zap.Int("written", summary.Written),
		zap.Bool("dry_run", summary.DryRun),
	)
	return summary, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
