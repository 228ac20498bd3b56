package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shaka/internal/handler"
	"shaka/internal/httputil"
	authmw "shaka/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	UserHandler         *handler.UserHandler
	FollowHandler       *handler.FollowHandler
	LocationHandler     *handler.LocationHandler
	NotificationHandler *handler.NotificationHandler
	WorkHandler         *handler.EngagementHandler
	QuestionHandler     *handler.EngagementHandler
	ReportHandler       *handler.ReportHandler
	Verifier            authmw.TokenVerifier
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	optional := authmw.OptionalAuthMiddleware(cfg.Verifier)

	// Public user endpoints with optional authentication
	r.Route("/users", func(r chi.Router) {
		r.With(optional).Get("/{id}", cfg.UserHandler.GetProfile)
		r.With(optional).Get("/{id}/followers", cfg.FollowHandler.GetFollowers)
		r.With(optional).Get("/{id}/following", cfg.FollowHandler.GetFollowing)
	})

	r.With(optional).Get("/works/{id}/comments", cfg.WorkHandler.GetComments)
	r.With(optional).Get("/questions/{id}/comments", cfg.QuestionHandler.GetComments)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.Verifier))

		r.Get("/me", cfg.UserHandler.Me)
		r.Put("/me", cfg.UserHandler.UpdateMe)
		r.Get("/me/mutuals", cfg.LocationHandler.MutualFollowers)

		r.Post("/users/{id}/follow", cfg.FollowHandler.Follow)
		r.Delete("/users/{id}/follow", cfg.FollowHandler.Unfollow)

		mountEngagement(r, "/works", cfg.WorkHandler)
		mountEngagement(r, "/questions", cfg.QuestionHandler)

		r.Post("/reports", cfg.ReportHandler.Create)

		r.Route("/location", func(r chi.Router) {
			r.Post("/share", cfg.LocationHandler.Start)
			r.Put("/share", cfg.LocationHandler.UpdateCoordinate)
			r.Delete("/share", cfg.LocationHandler.Stop)
			r.Get("/share", cfg.LocationHandler.Status)
			r.Get("/mutual", cfg.LocationHandler.Mutual)
			r.Get("/stream", cfg.LocationHandler.Stream)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread-count", cfg.NotificationHandler.GetUnreadCount)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
			r.Patch("/{id}", cfg.NotificationHandler.SetRead)
			r.Delete("/{id}", cfg.NotificationHandler.Delete)
		})

		r.Post("/devices/token", cfg.NotificationHandler.RegisterToken)
		r.Delete("/devices/token", cfg.NotificationHandler.RemoveToken)
	})

	return r
}

func mountEngagement(r chi.Router, prefix string, h *handler.EngagementHandler) {
	r.Post(prefix+"/{id}/likes", h.Like)
	r.Delete(prefix+"/{id}/likes", h.Unlike)
	r.Post(prefix+"/{id}/comments", h.Comment)
}
