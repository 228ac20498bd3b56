package service

import (
	"context"
	"strings"

	"shaka/internal/model"
	"shaka/internal/repository"
)

// UserService manages the profile attached to a Firebase account.
type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile creates the profile on first call and updates it afterwards.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.User, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}

	name := strings.TrimSpace(req.DisplayName)
	u := &model.User{
		ID:          userID,
		DisplayName: &name,
		PhotoURL:    req.PhotoURL,
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
