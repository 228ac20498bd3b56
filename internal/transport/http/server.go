package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"go.uber.org/zap"

	"shaka/internal/cache"
	"shaka/internal/config"
	"shaka/internal/database"
	"shaka/internal/handler"
	"shaka/internal/location"
	"shaka/internal/model"
	"shaka/internal/push"
	"shaka/internal/queue"
	"shaka/internal/realtime"
	"shaka/internal/redis"
	"shaka/internal/repository"
	"shaka/internal/service"
	authmw "shaka/internal/transport/http/middleware"
	"shaka/internal/worker"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server, workers and
// live sharing sessions.
const shutdownTimeout = 15 * time.Second

// Run wires every component and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 1. Connect to Database
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. Connect to Redis
	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		return err
	}

	// 3. Firebase: ID token verification and push delivery
	var verifier authmw.TokenVerifier
	var sender push.Sender
	if cfg.FirebaseEnabled() {
		app, err := push.NewFirebaseApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey)
		if err != nil {
			return err
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("get auth client: %w", err)
		}
		verifier = authmw.NewFirebaseVerifier(authClient)

		fcm, err := push.NewFCMSender(ctx, app, logger)
		if err != nil {
			return err
		}
		sender = fcm
	} else {
		if cfg.IsProduction() || cfg.JWTSecret == "" {
			return errors.New("firebase credentials are required (JWT_SECRET is accepted outside production only)")
		}
		logger.Warn("Firebase not configured: using HMAC tokens and no push delivery")
		verifier = authmw.NewHMACVerifier(cfg.JWTSecret)
	}

	// 4. Repositories
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	reportRepo := repository.NewReportRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	// 5. Redis-backed infrastructure
	publisher := queue.NewPublisher(rdb.Client, logger)
	consumer := queue.NewConsumer(rdb.Client, logger)
	badges := cache.NewBadgeCache(rdb.Client, logger)
	broadcaster := realtime.NewBroadcaster(rdb.Client, logger)
	listener := realtime.NewListener(rdb.Client, logger)

	// 6. Services
	userService := service.NewUserService(userRepo)
	followService := service.NewFollowService(followRepo, userRepo, db, publisher, logger)
	engagementService := service.NewEngagementService(engagementRepo, publisher, logger)
	reportService := service.NewReportService(reportRepo, publisher, cfg.AdminUserIDs, logger)
	notifService := service.NewNotificationService(notifRepo, tokenRepo, userRepo, badges, sender, logger)

	// 7. Location sharing
	mutuals := location.NewMutualCalculator(followRepo)
	locations := location.NewManager(locationRepo, broadcaster, userRepo, mutuals, location.SessionConfig{
		PublishInterval: cfg.LocationPublishInterval,
		MaxDuration:     cfg.LocationMaxDuration,
	}, logger)
	subscriber := location.NewSubscriber(mutuals, locationRepo, listener, logger)
	sweeper := location.NewSweeper(locationRepo, broadcaster, cfg.LocationSweepSchedule, logger)

	// 8. Background workers
	workerCfg := worker.DefaultManagerConfig()
	workerCfg.WorkerCount = cfg.WorkerCount
	workers := worker.NewManager(consumer, worker.NewHandler(notifService, logger), workerCfg, logger)
	if err := workers.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer workers.Stop()

	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	// 9. HTTP server
	router := NewRouter(RouterConfig{
		UserHandler:         handler.NewUserHandler(userService, logger),
		FollowHandler:       handler.NewFollowHandler(followService, logger),
		LocationHandler:     handler.NewLocationHandler(locations, subscriber, mutuals, logger),
		NotificationHandler: handler.NewNotificationHandler(notifService, logger),
		WorkHandler:         handler.NewEngagementHandler(engagementService, model.TargetWork, logger),
		QuestionHandler:     handler.NewEngagementHandler(engagementService, model.TargetQuestion, logger),
		ReportHandler:       handler.NewReportHandler(reportService, logger),
		Verifier:            verifier,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; their
	// Watch loops end when the listener's Redis client closes.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown FAILED", zap.Error(err))
	}
	if err := locations.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Location shutdown FAILED", zap.Error(err))
	}
	return nil
}
