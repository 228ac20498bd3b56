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

// EngagementHandler serves likes and comments. Routes are mounted once per
// target type; targetType fixes which one.
type EngagementHandler struct {
	engagementService *service.EngagementService
	targetType        string
	logger            *zap.Logger
}

func NewEngagementHandler(engagementService *service.EngagementService, targetType string, logger *zap.Logger) *EngagementHandler {
	return &EngagementHandler{
		engagementService: engagementService,
		targetType:        targetType,
		logger:            logger.Named(targetType + "_handler"),
	}
}

// Like handles POST /{works|questions}/{id}/likes
func (h *EngagementHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID := chi.URLParam(r, "id")

	resp, err := h.engagementService.Like(r.Context(), userID, h.targetType, targetID)
	if err != nil {
		h.writeError(w, "Like", userID, targetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Unlike handles DELETE /{works|questions}/{id}/likes
func (h *EngagementHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID := chi.URLParam(r, "id")

	resp, err := h.engagementService.Unlike(r.Context(), userID, h.targetType, targetID)
	if err != nil {
		h.writeError(w, "Unlike", userID, targetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Comment handles POST /{works|questions}/{id}/comments
func (h *EngagementHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetID := chi.URLParam(r, "id")

	var req model.CreateCommentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	comment, err := h.engagementService.Comment(r.Context(), userID, h.targetType, targetID, &req)
	if err != nil {
		h.writeError(w, "Comment", userID, targetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// GetComments handles GET /{works|questions}/{id}/comments
func (h *EngagementHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

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

	result, err := h.engagementService.GetComments(r.Context(), h.targetType, targetID, cursor, limit)
	if err != nil {
		h.writeError(w, "GetComments", "", targetID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *EngagementHandler) writeError(w http.ResponseWriter, action, userID, targetID string, err error) {
	switch {
	case errors.Is(err, model.ErrTargetNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrAlreadyLiked):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrNotLiked):
		httputil.WriteNotFound(w, err.Error())
	default:
		h.logger.Error(action+" FAILED",
			zap.String("user", userID),
			zap.String("target", h.targetType+"/"+targetID),
			zap.Error(err),
		)
		httputil.WriteInternalError(w, "Failed to "+action)
	}
}
