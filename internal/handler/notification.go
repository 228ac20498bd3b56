package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shaka/internal/httputil"
	"shaka/internal/model"
	"shaka/internal/service"
	"shaka/internal/transport/http/middleware"
)

type NotificationHandler struct {
	notifService *service.NotificationService
	logger       *zap.Logger
}

func NewNotificationHandler(notifService *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
		logger:       logger.Named("notification_handler"),
	}
}

// List handles GET /notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, err := httputil.QueryLimit(r, 20, 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	notifications, err := h.notifService.GetNotifications(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("List notifications FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get notifications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, notifications)
}

// SetRead handles PATCH /notifications/{id} with {"read": bool}.
func (h *NotificationHandler) SetRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, ok := notificationID(w, r)
	if !ok {
		return
	}

	var req model.SetReadRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.notifService.SetRead(r.Context(), userID, id, *req.Read); err != nil {
		if errors.Is(err, model.ErrNotificationNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		h.logger.Error("SetRead FAILED", zap.String("user", userID), zap.Int64("id", id), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to update notification")
		return
	}
	httputil.WriteNoContent(w)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.notifService.MarkAllAsRead(r.Context(), userID); err != nil {
		h.logger.Error("MarkAllRead FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to mark all notifications as read")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "All notifications marked as read",
	})
}

// Delete handles DELETE /notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, ok := notificationID(w, r)
	if !ok {
		return
	}

	if err := h.notifService.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, model.ErrNotificationNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		h.logger.Error("Delete notification FAILED", zap.String("user", userID), zap.Int64("id", id), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to delete notification")
		return
	}
	httputil.WriteNoContent(w)
}

// GetUnreadCount handles GET /notifications/unread-count
// Returns the count of unread notifications (for badge display).
func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	count, err := h.notifService.GetUnreadCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("Get unread count FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get unread count")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"unread_count": count,
	})
}

// RegisterToken handles POST /devices/token
// Registers a device token for push notifications.
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.RegisterTokenRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.notifService.RegisterDeviceToken(r.Context(), userID, &req); err != nil {
		h.logger.Error("Register device token FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to register device token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device token registered",
	})
}

// RemoveToken handles DELETE /devices/token on sign-out.
func (h *NotificationHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.RegisterTokenRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.notifService.RemoveDeviceToken(r.Context(), userID, req.Token); err != nil {
		h.logger.Error("Remove device token FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to remove device token")
		return
	}
	httputil.WriteNoContent(w)
}

func notificationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteBadRequest(w, "Invalid notification ID")
		return 0, false
	}
	return id, true
}
