package location_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"shaka/internal/model"
	"shaka/internal/realtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeStore is an in-memory LocationRepository.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]model.LocationShare

	saveErr  error
	touchErr error

	saves       int
	touches     int
	listQueries [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]model.LocationShare)}
}

func (f *fakeStore) Save(ctx context.Context, s *model.LocationShare) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	s.Version = 1
	if old, ok := f.rows[s.UserID]; ok {
		s.Version = old.Version + 1
	}
	f.rows[s.UserID] = *s
	return nil
}

func (f *fakeStore) Touch(ctx context.Context, userID, sessionID string, coord model.Coordinate, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return 0, f.touchErr
	}
	row, ok := f.rows[userID]
	if !ok || row.SessionID != sessionID {
		return 0, model.ErrShareNotFound
	}
	f.touches++
	row.Latitude = coord.Latitude
	row.Longitude = coord.Longitude
	row.UpdatedAt = at
	row.Version++
	f.rows[userID] = row
	return row.Version, nil
}

func (f *fakeStore) Delete(ctx context.Context, userID, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok || row.SessionID != sessionID {
		return false, nil
	}
	delete(f.rows, userID)
	return true, nil
}

func (f *fakeStore) Get(ctx context.Context, userID string) (*model.LocationShare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	if !ok {
		return nil, model.ErrShareNotFound
	}
	return &row, nil
}

// ListActive ignores now so tests can check that callers filter stale rows.
func (f *fakeStore) ListActive(ctx context.Context, userIDs []string, now time.Time) ([]model.LocationShare, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listQueries = append(f.listQueries, append([]string(nil), userIDs...))
	var out []model.LocationShare
	for _, id := range userIDs {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, row := range f.rows {
		if !now.Before(row.ExpiresAt) {
			ids = append(ids, id)
			delete(f.rows, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) row(userID string) (model.LocationShare, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID]
	return row, ok
}

func (f *fakeStore) put(s model.LocationShare) {
	f.mu.Lock()
	f.rows[s.UserID] = s
	f.mu.Unlock()
}

func (f *fakeStore) remove(userID string) {
	f.mu.Lock()
	delete(f.rows, userID)
	f.mu.Unlock()
}

// fakeBroadcaster records published events.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []realtime.LocationEvent
}

func (b *fakeBroadcaster) Updated(ctx context.Context, s *model.LocationShare) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *s
	b.events = append(b.events, realtime.LocationEvent{Type: realtime.EventUpdated, UserID: s.UserID, Share: &cp})
	return nil
}

func (b *fakeBroadcaster) Removed(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, realtime.LocationEvent{Type: realtime.EventRemoved, UserID: userID})
	return nil
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Type
	}
	return out
}

// fakeGraph is an in-memory follow graph.
type fakeGraph struct {
	following map[string][]string
	followers map[string][]string
	err       error
}

func (g *fakeGraph) GetFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.following[userID], nil
}

func (g *fakeGraph) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.followers[userID], nil
}

// staticMutuals returns a fixed mutual set.
type staticMutuals []string

func (m staticMutuals) MutualIDs(ctx context.Context, userID string) ([]string, error) {
	return m, nil
}

// fakeProfiles resolves users from a map.
type fakeProfiles map[string]*model.User

func (p fakeProfiles) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := p[id]; ok {
		return u, nil
	}
	return nil, model.ErrUserNotFound
}

// scriptedListener replays a fixed list of events and returns.
type scriptedListener struct {
	events   []realtime.LocationEvent
	listened []string
}

func (l *scriptedListener) Listen(ctx context.Context, userIDs []string, emit func(realtime.LocationEvent) error) error {
	l.listened = userIDs
	for _, ev := range l.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

var errBoom = errors.New("boom")
