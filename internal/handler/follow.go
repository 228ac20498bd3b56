package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shaka/internal/httputil"
	"shaka/internal/model"
	"shaka/internal/service"
	"shaka/internal/transport/http/middleware"
)

type FollowHandler struct {
	followService *service.FollowService
	logger        *zap.Logger
}

func NewFollowHandler(followService *service.FollowService, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{
		followService: followService,
		logger:        logger.Named("follow_handler"),
	}
}

func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	followeeID := chi.URLParam(r, "id")

	if err := h.followService.Follow(r.Context(), followerID, followeeID); err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrAlreadyFollowing):
			httputil.WriteConflict(w, err.Error())
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, err.Error())
		default:
			h.logger.Error("Follow FAILED", zap.String("follower", followerID), zap.String("followee", followeeID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to follow user")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully followed user",
	})
}

func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	followeeID := chi.URLParam(r, "id")

	if err := h.followService.Unfollow(r.Context(), followerID, followeeID); err != nil {
		switch {
		case errors.Is(err, model.ErrNotFollowing):
			httputil.WriteNotFound(w, err.Error())
		default:
			h.logger.Error("Unfollow FAILED", zap.String("follower", followerID), zap.String("followee", followeeID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to unfollow user")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully unfollowed user",
	})
}

func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.followService.GetFollowers, "followers")
}

func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.followService.GetFollowing, "following")
}

type followLister func(ctx context.Context, userID string, cursor *time.Time, limit int, viewerID string) (*model.FollowListResponse, error)

func (h *FollowHandler) list(w http.ResponseWriter, r *http.Request, fetch followLister, what string) {
	userID := chi.URLParam(r, "id")

	cursor, err := httputil.QueryCursor(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.QueryLimit(r, 20, 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	viewerID, _ := middleware.GetUserIDFromContext(r.Context())

	result, err := fetch(r.Context(), userID, cursor, limit, viewerID)
	if err != nil {
		h.logger.Error("List "+what+" FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to fetch "+what)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
