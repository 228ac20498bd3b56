package location

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// FollowGraph lists one user's edges in each direction.
type FollowGraph interface {
	GetFolloweeIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// MutualSource resolves a user's mutual followers.
type MutualSource interface {
	MutualIDs(ctx context.Context, userID string) ([]string, error)
}

// MutualCalculator computes mutual followers on every call. Nothing is
// cached: unfollowing takes effect on the next snapshot.
type MutualCalculator struct {
	graph FollowGraph
}

func NewMutualCalculator(graph FollowGraph) *MutualCalculator {
	return &MutualCalculator{graph: graph}
}

// MutualIDs returns the users userID follows who also follow userID back.
func (c *MutualCalculator) MutualIDs(ctx context.Context, userID string) ([]string, error) {
	var following, followers []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := c.graph.GetFolloweeIDs(gctx, userID)
		if err != nil {
			return fmt.Errorf("following: %w", err)
		}
		following = ids
		return nil
	})
	g.Go(func() error {
		ids, err := c.graph.GetFollowerIDs(gctx, userID)
		if err != nil {
			return fmt.Errorf("followers: %w", err)
		}
		followers = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Intersect(following, followers), nil
}

// Intersect returns the IDs present in both lists, deduplicated and sorted.
func Intersect(following, followers []string) []string {
	inFollowers := make(map[string]struct{}, len(followers))
	for _, id := range followers {
		inFollowers[id] = struct{}{}
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, id := range following {
		if _, ok := inFollowers[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
