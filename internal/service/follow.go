package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"shaka/internal/model"
	"shaka/internal/queue"
	"shaka/internal/repository"
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	db         *sqlx.DB
	publisher  queue.Publisher
	logger     *zap.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
	logger *zap.Logger,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		db:         db,
		publisher:  publisher,
		logger:     logger.Named("follow"),
	}
}

func (s *FollowService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := s.followRepo.Create(ctx, tx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !inserted {
		return model.ErrAlreadyFollowing
	}

	if err := s.userRepo.IncrementFollowerCount(ctx, tx, followeeID, 1); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowingCount(ctx, tx, followerID, 1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	// Publish only after commit so a notification never refers to a
	// rolled-back follow.
	publishActivity(ctx, s.publisher, s.logger, queue.NewFollowEvent(followerID, followeeID))
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.followRepo.Delete(ctx, tx, followerID, followeeID); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowerCount(ctx, tx, followeeID, -1); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowingCount(ctx, tx, followerID, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetFollowers retrieves users who follow userID, newest first. When viewerID
// is set each user carries whether the viewer follows them.
func (s *FollowService) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int, viewerID string) (*model.FollowListResponse, error) {
	users, nextCursor, err := s.followRepo.GetFollowers(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return s.listResponse(ctx, users, nextCursor, viewerID), nil
}

// GetFollowing retrieves users that userID follows. See GetFollowers.
func (s *FollowService) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int, viewerID string) (*model.FollowListResponse, error) {
	users, nextCursor, err := s.followRepo.GetFollowing(ctx, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return s.listResponse(ctx, users, nextCursor, viewerID), nil
}

func (s *FollowService) listResponse(ctx context.Context, users []model.UserSummary, nextCursor *time.Time, viewerID string) *model.FollowListResponse {
	if viewerID != "" {
		users = s.enrichWithFollowStatus(ctx, viewerID, users)
	}

	var nextCursorStr *string
	if nextCursor != nil {
		str := nextCursor.Format(time.RFC3339Nano)
		nextCursorStr = &str
	}

	return &model.FollowListResponse{
		Users:      users,
		NextCursor: nextCursorStr,
		HasMore:    nextCursor != nil,
	}
}

// enrichWithFollowStatus checks follow status for the whole page in one
// query. On failure users are returned with is_following=false.
func (s *FollowService) enrichWithFollowStatus(ctx context.Context, viewerID string, users []model.UserSummary) []model.UserSummary {
	if len(users) == 0 {
		return users
	}

	userIDs := make([]string, len(users))
	for i, user := range users {
		userIDs[i] = user.ID
	}

	followMap, err := s.followRepo.CheckFollows(ctx, viewerID, userIDs)
	if err != nil {
		s.logger.Warn("CheckFollows FAILED", zap.String("viewer", viewerID), zap.Error(err))
		return users
	}

	for i := range users {
		users[i].IsFollowing = followMap[users[i].ID]
	}
	return users
}
