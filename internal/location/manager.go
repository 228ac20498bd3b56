package location

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shaka/internal/model"
	"shaka/internal/realtime"
	"shaka/internal/repository"
)

// ProfileLookup resolves display data for a sharing user.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Manager owns the sharing sessions of every user served by this process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store       repository.LocationRepository
	broadcaster realtime.Broadcaster
	profiles    ProfileLookup
	mutuals     MutualSource
	cfg         SessionConfig
	logger      *zap.Logger
}

func NewManager(
	store repository.LocationRepository,
	broadcaster realtime.Broadcaster,
	profiles ProfileLookup,
	mutuals MutualSource,
	cfg SessionConfig,
	logger *zap.Logger,
) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		store:       store,
		broadcaster: broadcaster,
		profiles:    profiles,
		mutuals:     mutuals,
		cfg:         cfg,
		logger:      logger.Named("location"),
	}
}

func (m *Manager) session(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		s = NewSession(userID, m.store, m.broadcaster, m.cfg, m.logger)
		m.sessions[userID] = s
	}
	return s
}

func (m *Manager) lookup(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Start begins sharing userID's location for duration. A nil coord reuses the
// last fix sent with UpdateCoordinate.
func (m *Manager) Start(ctx context.Context, userID string, coord *model.Coordinate, duration time.Duration) (*model.LocationShare, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}

	s := m.session(userID)
	if coord != nil {
		s.UpdateCoordinate(*coord)
	}

	profile := Profile{}
	if u, err := m.profiles.GetByID(ctx, userID); err != nil {
		m.logger.Warn("Profile lookup FAILED", zap.String("user", userID), zap.Error(err))
	} else {
		profile.DisplayName = u.Name("")
		if u.PhotoURL != nil {
			profile.PhotoURL = *u.PhotoURL
		}
	}
	s.SetProfile(profile)

	return s.Start(ctx, duration)
}

// UpdateCoordinate records userID's latest fix.
func (m *Manager) UpdateCoordinate(userID string, coord model.Coordinate) error {
	if userID == "" {
		return model.ErrNotAuthenticated
	}
	m.session(userID).UpdateCoordinate(coord)
	return nil
}

// Stop ends userID's sharing. A user who is not sharing is a no-op.
func (m *Manager) Stop(ctx context.Context, userID string) error {
	s, ok := m.lookup(userID)
	if !ok {
		return nil
	}
	return s.Stop(ctx)
}

// Status reports userID's Live Activity. SharedWithCount is the current
// number of mutual followers.
func (m *Manager) Status(ctx context.Context, userID string) (Activity, error) {
	if userID == "" {
		return Activity{}, model.ErrNotAuthenticated
	}

	a := Activity{State: StateIdle}
	if s, ok := m.lookup(userID); ok {
		a = s.Activity(m.cfg.Now())
	}

	ids, err := m.mutuals.MutualIDs(ctx, userID)
	if err != nil {
		return Activity{}, err
	}
	a.SharedWithCount = len(ids)
	return a, nil
}

// Shutdown stops every active session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			return s.Stop(gctx)
		})
	}
	err := g.Wait()
	m.logger.Info("Shutdown complete", zap.Int("sessions", len(sessions)))
	return err
}
