package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shaka/internal/httputil"
	"shaka/internal/model"
	"shaka/internal/service"
	"shaka/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.Named("user_handler"),
	}
}

// Me handles GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	h.writeProfile(w, r, userID)
}

// GetProfile handles GET /users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, chi.URLParam(r, "id"))
}

func (h *UserHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("GetProfile FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateMe handles PUT /me. The first call creates the profile.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateProfileRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	profile, err := h.userService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		h.logger.Error("UpdateProfile FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to update profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
