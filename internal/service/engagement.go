package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"shaka/internal/model"
	"shaka/internal/queue"
	"shaka/internal/repository"
)

// EngagementService handles likes and comments on works and questions.
type EngagementService struct {
	repo      repository.EngagementRepository
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewEngagementService(repo repository.EngagementRepository, publisher queue.Publisher, logger *zap.Logger) *EngagementService {
	return &EngagementService{repo: repo, publisher: publisher, logger: logger.Named("engagement")}
}

func (s *EngagementService) Like(ctx context.Context, userID, targetType, targetID string) (*model.LikeResponse, error) {
	authorID, err := s.author(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Like(ctx, targetType, targetID, userID); err != nil {
		return nil, err
	}

	publishActivity(ctx, s.publisher, s.logger, queue.NewLikeEvent(userID, authorID, targetType, targetID))
	return s.likeResponse(ctx, targetType, targetID, true), nil
}

func (s *EngagementService) Unlike(ctx context.Context, userID, targetType, targetID string) (*model.LikeResponse, error) {
	if _, err := s.author(ctx, targetType, targetID); err != nil {
		return nil, err
	}
	if err := s.repo.Unlike(ctx, targetType, targetID, userID); err != nil {
		return nil, err
	}
	return s.likeResponse(ctx, targetType, targetID, false), nil
}

func (s *EngagementService) Comment(ctx context.Context, userID, targetType, targetID string, req *model.CreateCommentRequest) (*model.Comment, error) {
	authorID, err := s.author(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		TargetType: targetType,
		TargetID:   targetID,
		UserID:     userID,
		Body:       strings.TrimSpace(req.Body),
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, err
	}

	publishActivity(ctx, s.publisher, s.logger, queue.NewCommentEvent(userID, authorID, targetType, targetID, c.Body))
	return c, nil
}

func (s *EngagementService) GetComments(ctx context.Context, targetType, targetID string, cursor *time.Time, limit int) (*model.CommentListResponse, error) {
	if !model.ValidPostTarget(targetType) {
		return nil, model.ErrTargetNotFound
	}

	comments, next, err := s.repo.GetComments(ctx, targetType, targetID, cursor, limit)
	if err != nil {
		return nil, err
	}

	resp := &model.CommentListResponse{Comments: comments, HasMore: next != nil}
	if next != nil {
		str := next.Format(time.RFC3339Nano)
		resp.NextCursor = &str
	}
	return resp, nil
}

func (s *EngagementService) author(ctx context.Context, targetType, targetID string) (string, error) {
	if !model.ValidPostTarget(targetType) {
		return "", model.ErrTargetNotFound
	}
	return s.repo.GetAuthorID(ctx, targetType, targetID)
}

// likeResponse reports the new like count. A failed count still returns the
// like state; the count is cosmetic.
func (s *EngagementService) likeResponse(ctx context.Context, targetType, targetID string, liked bool) *model.LikeResponse {
	count, err := s.repo.LikeCount(ctx, targetType, targetID)
	if err != nil {
		s.logger.Warn("LikeCount FAILED", zap.String("target", targetType+"/"+targetID), zap.Error(err))
	}
	return &model.LikeResponse{Liked: liked, LikeCount: count}
}
