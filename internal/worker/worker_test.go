package worker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"shaka/internal/queue"
	"shaka/internal/service"
	"shaka/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockNotifier records every event it is handed. failures lists how many
// times Fanout fails for an event ID before succeeding.
type mockNotifier struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{calls: make(map[string]int), failures: make(map[string]int)}
}

func (n *mockNotifier) Fanout(ctx context.Context, event queue.ActivityEvent) (service.FanoutResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[event.ID]++
	if n.failures[event.ID] > 0 {
		n.failures[event.ID]--
		return service.FanoutResult{}, errors.New("db unavailable")
	}
	return service.FanoutResult{NotificationID: 1}, nil
}

func (n *mockNotifier) callCount(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[id]
}

// memConsumer is an in-memory queue.Consumer. Pending messages are handed
// out once by ReadPending; new messages arrive through push.
type memConsumer struct {
	mu       sync.Mutex
	pending  []queue.Message
	incoming chan queue.Message
	acked    []string
}

func newMemConsumer() *memConsumer {
	return &memConsumer{incoming: make(chan queue.Message, 16)}
}

func (c *memConsumer) EnsureGroup(ctx context.Context, stream, group string) error { return nil }

func (c *memConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]queue.Message, error) {
	select {
	case msg := <-c.incoming:
		return []queue.Message{msg}, nil
	case <-time.After(block):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]queue.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out, nil
}

func (c *memConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, messageIDs...)
	return nil
}

func (c *memConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	return 0, nil
}

func (c *memConsumer) ackedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.acked...)
}

func message(id string, event queue.ActivityEvent) queue.Message {
	event.ID = id
	return queue.Message{ID: id + "-msg", Event: event}
}

func fastConfig() worker.ManagerConfig {
	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	cfg.BlockTimeout = 20 * time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

// =============================================================================
// Unit Tests
// =============================================================================

func TestManager_ProcessesPendingThenNew(t *testing.T) {
	defer goleak.VerifyNone(t)

	consumer := newMemConsumer()
	consumer.pending = []queue.Message{message("p1", queue.NewFollowEvent("alice", "bob"))}
	notifier := newMockNotifier()

	m := worker.NewManager(consumer, worker.NewHandler(notifier, zap.NewNop()), fastConfig(), zap.NewNop())
	require.NoError(t, m.Start(context.Background()))

	consumer.incoming <- message("n1", queue.NewLikeEvent("carol", "bob", "work", "w1"))

	assert.Eventually(t, func() bool {
		return len(consumer.ackedIDs()) == 2
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.Equal(t, []string{"p1-msg", "n1-msg"}, consumer.ackedIDs())
	assert.Equal(t, 1, notifier.callCount("p1"))
	assert.Equal(t, 1, notifier.callCount("n1"))
}

func TestManager_RetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	consumer := newMemConsumer()
	notifier := newMockNotifier()
	notifier.failures["r1"] = 2

	m := worker.NewManager(consumer, worker.NewHandler(notifier, zap.NewNop()), fastConfig(), zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	consumer.incoming <- message("r1", queue.NewFollowEvent("alice", "bob"))

	assert.Eventually(t, func() bool {
		return len(consumer.ackedIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.Equal(t, 3, notifier.callCount("r1"))
}

func TestManager_DropsAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	consumer := newMemConsumer()
	notifier := newMockNotifier()
	notifier.failures["d1"] = 10

	m := worker.NewManager(consumer, worker.NewHandler(notifier, zap.NewNop()), fastConfig(), zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	consumer.incoming <- message("d1", queue.NewFollowEvent("alice", "bob"))

	assert.Eventually(t, func() bool {
		return len(consumer.ackedIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.Equal(t, worker.DefaultMaxAttempts, notifier.callCount("d1"))
}

func TestHandler_UnknownEventType(t *testing.T) {
	notifier := newMockNotifier()
	h := worker.NewHandler(notifier, zap.NewNop())

	err := h.HandleEvent(context.Background(), queue.ActivityEvent{ID: "x", Type: "post_created"})
	assert.ErrorIs(t, err, worker.ErrUnknownEvent)
	assert.Zero(t, notifier.callCount("x"))
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := worker.NewManager(newMemConsumer(), worker.NewHandler(newMockNotifier(), zap.NewNop()), worker.ManagerConfig{}, zap.NewNop())
	m.Stop()
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	// Use DB 1 for testing to avoid conflicts with dev data
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// =============================================================================
// Integration Tests
// =============================================================================

// TestStreamDelivery publishes through Redis Streams and checks that every
// event reaches the notifier once and nothing is left pending.
func TestStreamDelivery(t *testing.T) {
	client := setupTestRedis(t)
	logger := zap.NewNop()
	ctx := context.Background()

	publisher := queue.NewPublisher(client, logger)
	consumer := queue.NewConsumer(client, logger)
	notifier := newMockNotifier()

	cfg := fastConfig()
	cfg.WorkerCount = 2
	cfg.BlockTimeout = 100 * time.Millisecond
	m := worker.NewManager(consumer, worker.NewHandler(notifier, logger), cfg, logger)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	events := []queue.ActivityEvent{
		queue.NewFollowEvent("alice", "bob"),
		queue.NewLikeEvent("carol", "bob", "work", "w1"),
		queue.NewCommentEvent("dave", "bob", "question", "q1", "hello"),
	}
	for _, e := range events {
		_, err := publisher.Publish(ctx, queue.StreamActivity, e)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		for _, e := range events {
			if notifier.callCount(e.ID) != 1 {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		n, err := consumer.Pending(ctx, queue.StreamActivity, queue.ConsumerGroupNotifications)
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond)
}

// TestMalformedMessageIsAcked checks that junk on the stream never stays
// pending.
func TestMalformedMessageIsAcked(t *testing.T) {
	client := setupTestRedis(t)
	logger := zap.NewNop()
	ctx := context.Background()

	consumer := queue.NewConsumer(client, logger)
	require.NoError(t, consumer.EnsureGroup(ctx, queue.StreamActivity, queue.ConsumerGroupNotifications))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: queue.StreamActivity,
		Values: map[string]interface{}{"type": "follow", "data": "{not json"},
	}).Err())

	msgs, err := consumer.Read(ctx, queue.StreamActivity, queue.ConsumerGroupNotifications, "worker-1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	pending, err := consumer.Pending(ctx, queue.StreamActivity, queue.ConsumerGroupNotifications)
	require.NoError(t, err)
	assert.Zero(t, pending)
}
