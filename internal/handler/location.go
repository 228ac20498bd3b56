package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shaka/internal/httputil"
	"shaka/internal/location"
	"shaka/internal/model"
	"shaka/internal/realtime"
	"shaka/internal/transport/http/middleware"
)

const (
	// wsWriteTimeout bounds a single event write to a stream client.
	wsWriteTimeout = 10 * time.Second
	// wsReadLimit caps inbound frames; clients only send control frames.
	wsReadLimit = 512
)

// LocationSharer is the sharing side of location.Manager.
type LocationSharer interface {
	Start(ctx context.Context, userID string, coord *model.Coordinate, duration time.Duration) (*model.LocationShare, error)
	UpdateCoordinate(userID string, coord model.Coordinate) error
	Stop(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (location.Activity, error)
}

// LocationViewer is the viewing side, implemented by location.Subscriber.
type LocationViewer interface {
	Snapshot(ctx context.Context, viewerID string) ([]model.LocationShare, error)
	Watch(ctx context.Context, viewerID string, emit func(realtime.LocationEvent) error) error
}

type LocationHandler struct {
	sharer   LocationSharer
	viewer   LocationViewer
	mutuals  location.MutualSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewLocationHandler(sharer LocationSharer, viewer LocationViewer, mutuals location.MutualSource, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{
		sharer:  sharer,
		viewer:  viewer,
		mutuals: mutuals,
		upgrader: websocket.Upgrader{
			// Native mobile clients send no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("location_handler"),
	}
}

// Start handles POST /location/share
func (h *LocationHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.StartShareRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	share, err := h.sharer.Start(r.Context(), userID, req.Coordinate(), time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNoCoordinate):
			httputil.WriteBadRequestWithCode(w, "NO_COORDINATE", err.Error())
		case errors.Is(err, model.ErrInvalidDuration):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrAlreadySharing):
			httputil.WriteConflict(w, err.Error())
		default:
			h.logger.Error("Start sharing FAILED", zap.String("user", userID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to start sharing")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, share)
}

// UpdateCoordinate handles PUT /location/share. The next publish tick
// carries the new coordinate.
func (h *LocationHandler) UpdateCoordinate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateCoordinateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	coord := model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := h.sharer.UpdateCoordinate(userID, coord); err != nil {
		h.logger.Error("Update coordinate FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to update coordinate")
		return
	}
	httputil.WriteNoContent(w)
}

// Stop handles DELETE /location/share
func (h *LocationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.sharer.Stop(r.Context(), userID); err != nil {
		h.logger.Error("Stop sharing FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to stop sharing")
		return
	}
	httputil.WriteNoContent(w)
}

// Status handles GET /location/share
func (h *LocationHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	activity, err := h.sharer.Status(r.Context(), userID)
	if err != nil {
		h.logger.Error("Status FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get sharing status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, activity)
}

// Mutual handles GET /location/mutual
func (h *LocationHandler) Mutual(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	shares, err := h.viewer.Snapshot(r.Context(), userID)
	if err != nil {
		h.logger.Error("Snapshot FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to load shared locations")
		return
	}
	if shares == nil {
		shares = []model.LocationShare{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"shares": shares})
}

// MutualFollowers handles GET /me/mutuals
func (h *LocationHandler) MutualFollowers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	ids, err := h.mutuals.MutualIDs(r.Context(), userID)
	if err != nil {
		h.logger.Error("MutualIDs FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to load mutual followers")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, model.MutualsResponse{UserIDs: ids, Count: len(ids)})
}

// Stream handles GET /location/stream. The connection receives the current
// snapshot followed by every change until either side closes it.
func (h *LocationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn("WebSocket upgrade FAILED", zap.String("user", userID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop only notices the client going away.
	conn.SetReadLimit(wsReadLimit)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("Stream connected", zap.String("user", userID))
	err = h.viewer.Watch(ctx, userID, func(ev realtime.LocationEvent) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(ev)
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Warn("Stream ended", zap.String("user", userID), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream failed"),
			time.Now().Add(time.Second))
		return
	}
	h.logger.Debug("Stream closed", zap.String("user", userID))
}
