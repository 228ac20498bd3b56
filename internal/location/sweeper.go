package location

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shaka/internal/realtime"
	"shaka/internal/repository"
)

const sweepTimeout = 30 * time.Second

// Sweeper deletes shares whose session died without cleaning up, e.g. a
// server restart mid-share.
type Sweeper struct {
	store       repository.LocationRepository
	broadcaster realtime.Broadcaster
	schedule    string
	cron        *cron.Cron
	now         func() time.Time
	logger      *zap.Logger
}

func NewSweeper(store repository.LocationRepository, broadcaster realtime.Broadcaster, schedule string, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:       store,
		broadcaster: broadcaster,
		schedule:    schedule,
		cron:        cron.New(),
		now:         time.Now,
		logger:      logger.Named("sweeper"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Sweep FAILED", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("Started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep removes expired rows and tells viewers they are gone.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	userIDs, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, id := range userIDs {
		if err := s.broadcaster.Removed(ctx, id); err != nil {
			s.logger.Warn("Broadcast removed FAILED", zap.String("user", id), zap.Error(err))
		}
	}
	if len(userIDs) > 0 {
		s.logger.Info("Sweep OK", zap.Int("removed", len(userIDs)))
	}
	return len(userIDs), nil
}
