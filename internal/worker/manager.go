package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"shaka/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxAttempts bounds how often one message is handled before it
	// is acked and dropped.
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is the pause before the first retry. It doubles
	// on each further attempt.
	DefaultRetryBackoff = 200 * time.Millisecond
)

// Manager orchestrates worker goroutines that consume from Redis Streams.
type Manager struct {
	consumer     queue.Consumer
	handler      *Handler
	stream       string
	group        string
	workerCount  int
	batchSize    int64
	blockTime    time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	logger       *zap.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	Stream       string
	Group        string
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultManagerConfig returns the activity stream settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamActivity,
		Group:        queue.ConsumerGroupNotifications,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig, logger *zap.Logger) *Manager {
	def := DefaultManagerConfig()
	if cfg.Stream == "" {
		cfg.Stream = def.Stream
	}
	if cfg.Group == "" {
		cfg.Group = def.Group
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = def.BlockTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}

	return &Manager{
		consumer:     consumer,
		handler:      handler,
		stream:       cfg.Stream,
		group:        cfg.Group,
		workerCount:  cfg.WorkerCount,
		batchSize:    cfg.BatchSize,
		blockTime:    cfg.BlockTimeout,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger.Named("worker"),
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group); err != nil {
		m.cancel()
		return err
	}

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, consumerNameForWorker(workerID))
	}

	m.logger.Info("Workers started",
		zap.Int("count", m.workerCount),
		zap.String("stream", m.stream),
		zap.String("group", m.group),
	)
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info("All workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	log := m.logger.With(zap.Int("worker", workerID))

	// Messages delivered to this consumer before a crash come first.
	m.processPending(log, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Debug("Shutting down")
			return
		default:
			m.processMessages(log, consumerName)
		}
	}
}

// processPending handles messages that were delivered but not acknowledged.
func (m *Manager) processPending(log *zap.Logger, consumerName string) {
	for m.ctx.Err() == nil {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			log.Error("ReadPending FAILED", zap.Error(err))
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info("Processing pending messages", zap.Int("count", len(messages)))
		m.handleMessages(log, messages)
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(log *zap.Logger, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Error("Read FAILED", zap.Error(err))
		m.sleep(time.Second)
		return
	}

	if len(messages) == 0 {
		return
	}
	m.handleMessages(log, messages)
}

// handleMessages processes a batch of messages and acknowledges them.
// Shutdown stops the batch early; unacked messages are picked up again as
// pending on the next start.
func (m *Manager) handleMessages(log *zap.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if m.ctx.Err() != nil {
			return
		}

		if err := m.handleWithRetry(msg); err != nil {
			if m.ctx.Err() != nil {
				return
			}
			log.Error("Dropping message", zap.String("msgID", msg.ID), zap.String("type", msg.Event.Type), zap.Error(err))
		}

		if err := m.consumer.Ack(m.ctx, m.stream, m.group, msg.ID); err != nil {
			log.Error("Ack FAILED", zap.String("msgID", msg.ID), zap.Error(err))
		}
	}
}

func (m *Manager) handleWithRetry(msg queue.Message) error {
	backoff := m.retryBackoff
	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = m.handler.HandleEvent(m.ctx, msg.Event)
		if err == nil || errors.Is(err, ErrUnknownEvent) {
			return err
		}
		if attempt < m.maxAttempts && !m.sleep(backoff) {
			return err
		}
		backoff *= 2
	}
	return err
}

// sleep waits for d or until shutdown. It reports whether the full wait
// elapsed.
func (m *Manager) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// consumerNameForWorker generates a unique consumer name for each worker.
func consumerNameForWorker(workerID int) string {
	return fmt.Sprintf("worker-%d", workerID)
}
