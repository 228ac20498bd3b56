package service

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"shaka/internal/model"
	"shaka/internal/push"
	"shaka/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================

type mockUserRepository struct {
	getByIDFn func(ctx context.Context, id string) (*model.User, error)
	upsertFn  func(ctx context.Context, user *model.User) error

	upserts []*model.User
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) Upsert(ctx context.Context, user *model.User) error {
	m.upserts = append(m.upserts, user)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID string, delta int) error {
	return nil
}

func (m *mockUserRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID string, delta int) error {
	return nil
}

// mockNotificationRepository keeps notifications in memory with the same
// event ID uniqueness the table enforces.
type mockNotificationRepository struct {
	mu       sync.Mutex
	nextID   int64
	byEvent  map[string]*model.Notification
	rows     []*model.Notification
	createFn func(ctx context.Context, n *model.Notification) (bool, error)

	setReadCalls int
	deleteCalls  int
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{byEvent: make(map[string]*model.Notification)}
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *model.Notification) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEvent[n.EventID]; ok {
		return false, nil
	}
	m.nextID++
	n.ID = m.nextID
	n.CreatedAt = time.Now()
	stored := *n
	m.byEvent[n.EventID] = &stored
	m.rows = append(m.rows, &stored)
	return true, nil
}

func (m *mockNotificationRepository) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, *m.rows[i])
		}
	}
	return out, nil
}

func (m *mockNotificationRepository) SetRead(ctx context.Context, userID string, id int64, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setReadCalls++
	for _, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			n.IsRead = read
			return nil
		}
	}
	return model.ErrNotificationNotFound
}

func (m *mockNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (m *mockNotificationRepository) Delete(ctx context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	for i, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return model.ErrNotificationNotFound
}

func (m *mockNotificationRepository) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type mockDeviceTokenRepository struct {
	tokens  map[string]string // token -> user
	deleted []string
}

func newMockDeviceTokenRepository() *mockDeviceTokenRepository {
	return &mockDeviceTokenRepository{tokens: make(map[string]string)}
}

func (m *mockDeviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	m.tokens[token] = userID
	return nil
}

func (m *mockDeviceTokenRepository) GetByUserID(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	var out []model.DeviceToken
	for token, owner := range m.tokens {
		if owner == userID {
			out = append(out, model.DeviceToken{Token: token, UserID: owner})
		}
	}
	return out, nil
}

func (m *mockDeviceTokenRepository) Delete(ctx context.Context, token string) error {
	m.deleted = append(m.deleted, token)
	delete(m.tokens, token)
	return nil
}

func (m *mockDeviceTokenRepository) DeleteForUser(ctx context.Context, userID, token string) error {
	if m.tokens[token] == userID {
		delete(m.tokens, token)
	}
	return nil
}

type mockEngagementRepository struct {
	authors  map[string]string // "type/id" -> author
	likes    map[string]bool   // "type/id/user"
	comments []model.Comment
}

func newMockEngagementRepository() *mockEngagementRepository {
	return &mockEngagementRepository{
		authors: make(map[string]string),
		likes:   make(map[string]bool),
	}
}

func (m *mockEngagementRepository) GetAuthorID(ctx context.Context, targetType, targetID string) (string, error) {
	author, ok := m.authors[targetType+"/"+targetID]
	if !ok {
		return "", model.ErrTargetNotFound
	}
	return author, nil
}

func (m *mockEngagementRepository) Like(ctx context.Context, targetType, targetID, userID string) error {
	key := targetType + "/" + targetID + "/" + userID
	if m.likes[key] {
		return model.ErrAlreadyLiked
	}
	m.likes[key] = true
	return nil
}

func (m *mockEngagementRepository) Unlike(ctx context.Context, targetType, targetID, userID string) error {
	key := targetType + "/" + targetID + "/" + userID
	if !m.likes[key] {
		return model.ErrNotLiked
	}
	delete(m.likes, key)
	return nil
}

func (m *mockEngagementRepository) LikeCount(ctx context.Context, targetType, targetID string) (int, error) {
	prefix := targetType + "/" + targetID + "/"
	count := 0
	for key := range m.likes {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

func (m *mockEngagementRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = int64(len(m.comments) + 1)
	c.CreatedAt = time.Now()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *mockEngagementRepository) GetComments(ctx context.Context, targetType, targetID string, cursor *time.Time, limit int) ([]model.Comment, *time.Time, error) {
	return m.comments, nil, nil
}

type mockReportRepository struct {
	reports []*model.Report
}

func (m *mockReportRepository) Create(ctx context.Context, report *model.Report) error {
	m.reports = append(m.reports, report)
	return nil
}

// =============================================================================
// MOCK INFRASTRUCTURE
// =============================================================================

type mockPublisher struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.ActivityEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, event)
	return "1-0", nil
}

// mockSender answers each token with the kind listed in kinds, defaulting
// to delivered.
type mockSender struct {
	kinds map[string]push.Kind
	calls []push.Message
}

func (m *mockSender) Send(ctx context.Context, tokens []string, msg push.Message) ([]push.Result, error) {
	m.calls = append(m.calls, msg)
	results := make([]push.Result, len(tokens))
	for i, token := range tokens {
		kind, ok := m.kinds[token]
		if !ok {
			kind = push.KindDelivered
		}
		results[i] = push.Result{Token: token, Kind: kind}
	}
	return results, nil
}

type mockBadgeCache struct {
	counts map[string]int64
	resets int
}

func newMockBadgeCache() *mockBadgeCache {
	return &mockBadgeCache{counts: make(map[string]int64)}
}

func (m *mockBadgeCache) Incr(ctx context.Context, userID string) (int64, error) {
	m.counts[userID]++
	return m.counts[userID], nil
}

func (m *mockBadgeCache) Get(ctx context.Context, userID string) (int64, bool, error) {
	count, ok := m.counts[userID]
	return count, ok, nil
}

func (m *mockBadgeCache) Set(ctx context.Context, userID string, count int64) error {
	m.counts[userID] = count
	return nil
}

func (m *mockBadgeCache) Reset(ctx context.Context, userID string) error {
	m.resets++
	delete(m.counts, userID)
	return nil
}

func strPtr(s string) *string { return &s }
