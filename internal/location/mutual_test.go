package location_test

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaka/internal/location"
)

func TestIntersect(t *testing.T) {
	tests := []struct {
		name      string
		following []string
		followers []string
		want      []string
	}{
		{"both empty", nil, nil, []string{}},
		{"no followers", []string{"a", "b"}, nil, []string{}},
		{"no following", nil, []string{"a"}, []string{}},
		{"disjoint", []string{"a"}, []string{"b"}, []string{}},
		{"overlap sorted", []string{"d", "b", "a"}, []string{"a", "c", "d"}, []string{"a", "d"}},
		{"duplicates collapse", []string{"a", "a", "b"}, []string{"b", "a", "a"}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, location.Intersect(tt.following, tt.followers))
		})
	}
}

func TestIntersectMatchesSetIntersection(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := randomIDs(r, r.Intn(40))
		b := randomIDs(r, r.Intn(40))

		inB := map[string]bool{}
		for _, id := range b {
			inB[id] = true
		}
		set := map[string]bool{}
		for _, id := range a {
			if inB[id] {
				set[id] = true
			}
		}
		want := []string{}
		for id := range set {
			want = append(want, id)
		}
		sort.Strings(want)

		require.Equal(t, want, location.Intersect(a, b))
	}
}

func randomIDs(r *rand.Rand, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%02d", r.Intn(50))
	}
	return ids
}

func TestMutualCalculator(t *testing.T) {
	graph := &fakeGraph{
		following: map[string][]string{"me": {"ann", "bob", "cy"}},
		followers: map[string][]string{"me": {"cy", "ann", "dee"}},
	}
	calc := location.NewMutualCalculator(graph)

	ids, err := calc.MutualIDs(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "cy"}, ids)

	ids, err = calc.MutualIDs(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMutualCalculatorError(t *testing.T) {
	calc := location.NewMutualCalculator(&fakeGraph{err: errBoom})

	_, err := calc.MutualIDs(context.Background(), "me")
	assert.ErrorIs(t, err, errBoom)
}
