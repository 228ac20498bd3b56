// Package location implements live location sharing between mutual followers.
//
// A Session belongs to one sharing user. While Sharing it republishes the
// user's latest coordinate every publish interval and ends itself at the
// deadline chosen when sharing started. Postgres holds the authoritative
// record; realtime events are a best-effort fan-out on top.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shaka/internal/model"
	"shaka/internal/realtime"
	"shaka/internal/repository"
)

// State of a sharing session.
type State string

const (
	StateIdle    State = "idle"
	StateSharing State = "sharing"
	StateStopped State = "stopped"
	StateExpired State = "expired"
)

// DefaultPublishInterval is how often a sharing session republishes.
const DefaultPublishInterval = 30 * time.Second

// storeTimeout bounds each store call made from the publish loop, which has
// no request context of its own.
const storeTimeout = 5 * time.Second

// Profile is the display data copied onto every published share.
type Profile struct {
	DisplayName string
	PhotoURL    string
}

// Activity mirrors the state shown in the client's Live Activity.
type Activity struct {
	State            State      `json:"state"`
	RemainingMinutes int        `json:"remaining_minutes"`
	SharedWithCount  int        `json:"shared_with_count"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// SessionConfig holds the timing knobs of a session.
type SessionConfig struct {
	PublishInterval time.Duration
	MaxDuration     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Session struct {
	mu sync.Mutex

	userID      string
	store       repository.LocationRepository
	broadcaster realtime.Broadcaster
	logger      *zap.Logger
	now         func() time.Time
	interval    time.Duration
	maxDuration time.Duration

	profile  Profile
	coord    model.Coordinate
	hasCoord bool

	state  State
	share  *model.LocationShare
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(userID string, store repository.LocationRepository, broadcaster realtime.Broadcaster, cfg SessionConfig, logger *zap.Logger) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	return &Session{
		userID:      userID,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger.With(zap.String("user", userID)),
		now:         cfg.Now,
		interval:    cfg.PublishInterval,
		maxDuration: cfg.MaxDuration,
		state:       StateIdle,
	}
}

// SetProfile changes the display data used by the next write.
func (s *Session) SetProfile(p Profile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
}

// UpdateCoordinate records the latest fix. The next tick publishes it.
func (s *Session) UpdateCoordinate(c model.Coordinate) {
	s.mu.Lock()
	s.coord = c
	s.hasCoord = true
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Share returns a copy of the published record, or nil when not sharing.
func (s *Session) Share() *model.LocationShare {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.share == nil {
		return nil
	}
	cp := *s.share
	return &cp
}

// Start begins sharing for duration. The record is written before the state
// changes; if the write fails the session stays where it was.
func (s *Session) Start(ctx context.Context, duration time.Duration) (*model.LocationShare, error) {
	s.mu.Lock()

	switch {
	case s.userID == "":
		s.mu.Unlock()
		return nil, model.ErrNotAuthenticated
	case !s.hasCoord:
		s.mu.Unlock()
		return nil, model.ErrNoCoordinate
	case duration <= 0 || (s.maxDuration > 0 && duration > s.maxDuration):
		s.mu.Unlock()
		return nil, model.ErrInvalidDuration
	case s.state == StateSharing:
		s.mu.Unlock()
		return nil, model.ErrAlreadySharing
	}

	now := s.now()
	share := &model.LocationShare{
		UserID:      s.userID,
		SessionID:   uuid.NewString(),
		Latitude:    s.coord.Latitude,
		Longitude:   s.coord.Longitude,
		DisplayName: s.profile.DisplayName,
		PhotoURL:    s.profile.PhotoURL,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(duration),
	}

	if err := s.store.Save(ctx, share); err != nil {
		s.mu.Unlock()
		s.logger.Error("Start FAILED", zap.Duration("duration", duration), zap.Error(err))
		return nil, fmt.Errorf("failed to start: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.state = StateSharing
	s.share = share
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, share.SessionID, share.ExpiresAt, s.done)

	published := *share
	s.mu.Unlock()

	s.logger.Info("Start OK", zap.String("session", share.SessionID), zap.Time("expires_at", share.ExpiresAt))
	if err := s.broadcaster.Updated(ctx, &published); err != nil {
		s.logger.Warn("Broadcast start FAILED", zap.Error(err))
	}
	return &published, nil
}

// run is the publish loop: a ticker at the publish interval and a one-shot
// timer at the deadline.
func (s *Session) run(ctx context.Context, sessionID string, expiresAt time.Time, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	timer := time.NewTimer(expiresAt.Sub(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			s.tick(tctx, sessionID)
			cancel()
		case <-timer.C:
			tctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			s.expire(tctx, sessionID)
			cancel()
			return
		}
	}
}

// Tick republishes the latest coordinate. It is a no-op unless sharing, and
// ends the session when the deadline has passed.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateSharing {
		s.mu.Unlock()
		return nil
	}
	sessionID := s.share.SessionID
	s.mu.Unlock()
	return s.tick(ctx, sessionID)
}

func (s *Session) tick(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if s.state != StateSharing || s.share.SessionID != sessionID {
		s.mu.Unlock()
		return nil
	}
	now := s.now()
	if !now.Before(s.share.ExpiresAt) {
		s.mu.Unlock()
		return s.expire(ctx, sessionID)
	}
	coord := s.coord
	s.mu.Unlock()

	// Conditional on sessionID: a tick racing a stop can never recreate a
	// deleted record or overwrite a newer session's row.
	version, err := s.store.Touch(ctx, s.userID, sessionID, coord, now)
	if errors.Is(err, model.ErrShareNotFound) {
		s.logger.Info("Record gone, stopping", zap.String("session", sessionID))
		if _, ok := s.end(StateStopped, sessionID); ok {
			s.broadcastRemoved(ctx)
		}
		return nil
	}
	if err != nil {
		s.logger.Warn("Tick FAILED", zap.String("session", sessionID), zap.Error(err))
		return fmt.Errorf("tick: %w", err)
	}

	s.mu.Lock()
	if s.state != StateSharing || s.share.SessionID != sessionID {
		s.mu.Unlock()
		return nil
	}
	s.share.Latitude = coord.Latitude
	s.share.Longitude = coord.Longitude
	s.share.UpdatedAt = now
	s.share.Version = version
	published := *s.share
	s.mu.Unlock()

	if err := s.broadcaster.Updated(ctx, &published); err != nil {
		s.logger.Warn("Broadcast tick FAILED", zap.Error(err))
	}
	return nil
}

// Stop ends sharing and removes the record. Stopping a session that is not
// sharing is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateSharing {
		s.mu.Unlock()
		return nil
	}
	sessionID := s.share.SessionID
	s.mu.Unlock()

	done, ok := s.end(StateStopped, sessionID)
	if !ok {
		return nil
	}
	// Wait outside the lock: the loop may be inside tick, which takes it.
	<-done
	s.logger.Info("Stop OK", zap.String("session", sessionID))
	return s.cleanup(ctx, sessionID)
}

// expire ends the session at its deadline. Called from the loop itself, so
// it must not wait for the loop to exit.
func (s *Session) expire(ctx context.Context, sessionID string) error {
	if _, ok := s.end(StateExpired, sessionID); !ok {
		return nil
	}
	s.logger.Info("Expired", zap.String("session", sessionID))
	return s.cleanup(ctx, sessionID)
}

// end moves the session out of Sharing if sessionID is still the active one
// and cancels its loop. It returns the loop's done channel.
func (s *Session) end(target State, sessionID string) (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSharing || s.share.SessionID != sessionID {
		return nil, false
	}
	s.state = target
	s.share = nil
	s.cancel()
	return s.done, true
}

func (s *Session) cleanup(ctx context.Context, sessionID string) error {
	var result error
	if _, err := s.store.Delete(ctx, s.userID, sessionID); err != nil {
		// The row still expires on its own; the sweeper removes it.
		s.logger.Error("Delete FAILED", zap.String("session", sessionID), zap.Error(err))
		result = fmt.Errorf("delete share: %w", err)
	}
	s.broadcastRemoved(ctx)
	return result
}

func (s *Session) broadcastRemoved(ctx context.Context) {
	if err := s.broadcaster.Removed(ctx, s.userID); err != nil {
		s.logger.Warn("Broadcast removed FAILED", zap.Error(err))
	}
}

// Activity reports the session as of now. SharedWithCount is filled in by
// the caller.
func (s *Session) Activity(now time.Time) Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Activity{State: s.state}
	if s.state == StateSharing {
		expiresAt := s.share.ExpiresAt
		a.ExpiresAt = &expiresAt
		a.RemainingMinutes = remainingMinutes(expiresAt.Sub(now))
	}
	return a
}

func remainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
