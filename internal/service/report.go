package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shaka/internal/model"
	"shaka/internal/queue"
	"shaka/internal/repository"
)

// ReportService records content reports and notifies the moderators.
type ReportService struct {
	repo      repository.ReportRepository
	publisher queue.Publisher
	adminIDs  []string
	logger    *zap.Logger
}

func NewReportService(repo repository.ReportRepository, publisher queue.Publisher, adminIDs []string, logger *zap.Logger) *ReportService {
	return &ReportService{repo: repo, publisher: publisher, adminIDs: adminIDs, logger: logger.Named("report")}
}

func (s *ReportService) Create(ctx context.Context, reporterID string, req *model.CreateReportRequest) (*model.Report, error) {
	if reporterID == "" {
		return nil, model.ErrNotAuthenticated
	}

	r := &model.Report{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     strings.TrimSpace(req.Reason),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	for _, adminID := range s.adminIDs {
		publishActivity(ctx, s.publisher, s.logger, queue.NewReportEvent(reporterID, adminID, r.TargetType, r.TargetID, r.Reason))
	}
	s.logger.Info("Report created", zap.String("report", r.ID), zap.String("target", r.TargetType+"/"+r.TargetID))
	return r, nil
}
