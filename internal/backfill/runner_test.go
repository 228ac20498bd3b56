package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shaka/internal/model"
)

// memCounts serves users from memory, sorted by ID.
type memCounts struct {
	users    []model.UserCounts
	scans    int
	applied  [][]model.UserCounts
	applyErr error
}

func newMemCounts(n int, mismatchEvery int) *memCounts {
	users := make([]model.UserCounts, n)
	for i := range users {
		u := model.UserCounts{
			UserID:          fmt.Sprintf("user-%06d", i),
			FollowerCount:   i % 7,
			FollowingCount:  i % 5,
			ActualFollowers: i % 7,
			ActualFollowing: i % 5,
		}
		if mismatchEvery > 0 && i%mismatchEvery == 0 {
			u.ActualFollowers++
		}
		users[i] = u
	}
	sort.Slice(users, func(a, b int) bool { return users[a].UserID < users[b].UserID })
	return &memCounts{users: users}
}

func (m *memCounts) ScanCounts(ctx context.Context, afterID string, limit int) ([]model.UserCounts, error) {
	m.scans++
	start := sort.Search(len(m.users), func(i int) bool { return m.users[i].UserID > afterID })
	end := start + limit
	if end > len(m.users) {
		end = len(m.users)
	}
	out := make([]model.UserCounts, end-start)
	copy(out, m.users[start:end])
	return out, nil
}

func (m *memCounts) ApplyCorrections(ctx context.Context, rows []model.UserCounts) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, rows)
	return nil
}

func testOptions(dryRun bool) Options {
	return Options{DryRun: dryRun, BatchSize: DefaultBatchSize}
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	store := newMemCounts(10000, 3)
	runner := NewRunner(store, testOptions(true), zap.NewNop())

	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, store.applied)
	assert.Equal(t, 10000, summary.Scanned)
	assert.Equal(t, 3334, summary.Mismatched)
	assert.Equal(t, 0, summary.Written)
	assert.Equal(t, 25, summary.Batches)
	assert.True(t, summary.DryRun)
}

func TestRunner_WritesMismatchesPerBatch(t *testing.T) {
	store := newMemCounts(1000, 10)
	runner := NewRunner(store, testOptions(false), zap.NewNop())

	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1000, summary.Scanned)
	assert.Equal(t, 100, summary.Mismatched)
	assert.Equal(t, 100, summary.Written)
	assert.Equal(t, 3, summary.Batches)

	total := 0
	for _, batch := range store.applied {
		assert.LessOrEqual(t, len(batch), DefaultBatchSize)
		for _, row := range batch {
			assert.True(t, row.Mismatched())
		}
		total += len(batch)
	}
	assert.Equal(t, 100, total)
}

func TestRunner_ExactMultipleOfBatchSize(t *testing.T) {
	store := newMemCounts(800, 0)
	runner := NewRunner(store, testOptions(false), zap.NewNop())

	summary, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 800, summary.Scanned)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 3, store.scans)
	assert.Empty(t, store.applied)
}

func TestRunner_EmptyTable(t *testing.T) {
	summary, err := NewRunner(newMemCounts(0, 0), testOptions(false), zap.NewNop()).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Scanned)
	assert.Equal(t, 0, summary.Batches)
}

func TestRunner_ApplyFailureStops(t *testing.T) {
	store := newMemCounts(1000, 2)
	store.applyErr = errors.New("deadlock")

	summary, err := NewRunner(store, testOptions(false), zap.NewNop()).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, store.applyErr)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 0, summary.Written)
}

func TestRunner_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := testOptions(true)
	opts.BatchDelay = DefaultBatchDelay

	summary, err := NewRunner(newMemCounts(1000, 0), opts, zap.NewNop()).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Batches)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchiver_Archive(t *testing.T) {
	putter := &fakePutter{}
	archiver := NewArchiver(putter, "reports")

	err := archiver.Archive(context.Background(), "backfill/run.json", &Summary{Scanned: 5, Mismatched: 2, Batches: 1, DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, "reports", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "backfill/run.json", aws.ToString(putter.input.Key))
	assert.Equal(t, "application/json", aws.ToString(putter.input.ContentType))

	var got Summary
	require.NoError(t, json.Unmarshal(putter.body, &got))
	assert.Equal(t, 5, got.Scanned)
	assert.Equal(t, 2, got.Mismatched)
	assert.True(t, got.DryRun)
}
