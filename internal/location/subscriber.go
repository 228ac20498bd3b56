package location

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shaka/internal/model"
	"shaka/internal/realtime"
	"shaka/internal/repository"
)

// MaxInQueryIDs caps the user IDs per share query. Larger mutual sets are
// split into batches.
const MaxInQueryIDs = 30

// snapshotParallelism limits concurrent batch queries per snapshot.
const snapshotParallelism = 4

// Subscriber gives a viewer the live locations of their mutual followers.
type Subscriber struct {
	mutuals  MutualSource
	store    repository.LocationRepository
	listener realtime.Listener
	now      func() time.Time
	logger   *zap.Logger
}

func NewSubscriber(mutuals MutualSource, store repository.LocationRepository, listener realtime.Listener, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		mutuals:  mutuals,
		store:    store,
		listener: listener,
		now:      time.Now,
		logger:   logger.Named("subscriber"),
	}
}

// Snapshot returns the visible shares of viewerID's mutual followers,
// ordered by user ID.
func (s *Subscriber) Snapshot(ctx context.Context, viewerID string) ([]model.LocationShare, error) {
	if viewerID == "" {
		return nil, model.ErrNotAuthenticated
	}
	ids, err := s.mutuals.MutualIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("mutual ids: %w", err)
	}
	return s.sharesFor(ctx, ids)
}

func (s *Subscriber) sharesFor(ctx context.Context, ids []string) ([]model.LocationShare, error) {
	chunks := chunk(ids, MaxInQueryIDs)
	results := make([][]model.LocationShare, len(chunks))
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotParallelism)
	for i, c := range chunks {
		g.Go(func() error {
			shares, err := s.store.ListActive(gctx, c, now)
			if err != nil {
				return err
			}
			results[i] = shares
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	out := []model.LocationShare{}
	for _, shares := range results {
		for _, sh := range shares {
			if sh.Visible(now) {
				out = append(out, sh)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Watch emits the current snapshot as updated events, then every change to a
// mutual follower's share until ctx is done or emit fails. An update that
// arrives already expired is delivered as a removal.
func (s *Subscriber) Watch(ctx context.Context, viewerID string, emit func(realtime.LocationEvent) error) error {
	if viewerID == "" {
		return model.ErrNotAuthenticated
	}
	ids, err := s.mutuals.MutualIDs(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("mutual ids: %w", err)
	}

	shares, err := s.sharesFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range shares {
		if err := emit(realtime.LocationEvent{Type: realtime.EventUpdated, UserID: shares[i].UserID, Share: &shares[i]}); err != nil {
			return err
		}
	}

	s.logger.Debug("Watching", zap.String("viewer", viewerID), zap.Int("mutuals", len(ids)))
	return s.listener.Listen(ctx, ids, func(ev realtime.LocationEvent) error {
		return emit(s.normalize(ev))
	})
}

func (s *Subscriber) normalize(ev realtime.LocationEvent) realtime.LocationEvent {
	if ev.Type == realtime.EventUpdated && !ev.Share.Visible(s.now()) {
		return realtime.LocationEvent{Type: realtime.EventRemoved, UserID: ev.UserID}
	}
	return ev
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
