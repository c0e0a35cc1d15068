package mocks

import (
	"context"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Ensure mocks implement the session ports
var (
	_ driven.SessionStore = (*MockSessionStore)(nil)
	_ driven.SessionCache = (*MockSessionCache)(nil)
)

// MockSessionStore is a mock implementation of SessionStore for testing
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.FeedbackSession
	order    []string
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[string]*domain.FeedbackSession),
	}
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.FeedbackSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; !exists {
		m.order = append(m.order, session.ID)
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*domain.FeedbackSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *MockSessionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.FeedbackSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.FeedbackSession, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		if s := m.sessions[m.order[i]]; s.OwnerID == ownerID {
			result = append(result, s)
		}
	}
	return result, nil
}

// MockSessionCache is an in-memory SessionCache that records its traffic
type MockSessionCache struct {
	mu        sync.Mutex
	snapshots map[string]*domain.SessionWithAnnotations
	versions  map[string]int64

	Hits          int
	Misses        int
	Sets          int
	RejectedSets  int
	Invalidations []string
}

// NewMockSessionCache creates a new MockSessionCache
func NewMockSessionCache() *MockSessionCache {
	return &MockSessionCache{
		snapshots: make(map[string]*domain.SessionWithAnnotations),
		versions:  make(map[string]int64),
	}
}

func (m *MockSessionCache) Get(ctx context.Context, sessionID string) (*domain.SessionWithAnnotations, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[sessionID]
	if !ok {
		m.Misses++
		return nil, domain.ErrNotFound
	}
	m.Hits++
	return snap, nil
}

func (m *MockSessionCache) Version(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[sessionID], nil
}

func (m *MockSessionCache) Set(ctx context.Context, snapshot *domain.SessionWithAnnotations, version int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[snapshot.Session.ID] != version {
		m.RejectedSets++
		return false, nil
	}
	m.Sets++
	m.snapshots[snapshot.Session.ID] = snapshot
	return true, nil
}

func (m *MockSessionCache) Invalidate(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidations = append(m.Invalidations, sessionID)
	m.versions[sessionID]++
	delete(m.snapshots, sessionID)
	return nil
}

// Has reports whether a snapshot is cached (for test assertions)
func (m *MockSessionCache) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.snapshots[sessionID]
	return ok
}
