package mocks

import (
	"context"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Ensure MockAnnotationStore implements AnnotationStore
var _ driven.AnnotationStore = (*MockAnnotationStore)(nil)

// MockAnnotationStore is a mock implementation of AnnotationStore for testing
type MockAnnotationStore struct {
	mu          sync.RWMutex
	annotations map[string]*domain.Annotation
	order       []string

	// Error injection
	CreateErr error
	DeleteErr error
}

// NewMockAnnotationStore creates a new MockAnnotationStore
func NewMockAnnotationStore() *MockAnnotationStore {
	return &MockAnnotationStore{
		annotations: make(map[string]*domain.Annotation),
	}
}

func (m *MockAnnotationStore) Create(ctx context.Context, annotation *domain.Annotation) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.annotations[annotation.ID]; !exists {
		m.order = append(m.order, annotation.ID)
	}
	m.annotations[annotation.ID] = annotation
	return nil
}

func (m *MockAnnotationStore) Get(ctx context.Context, id string) (*domain.Annotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.annotations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (m *MockAnnotationStore) ListBySession(ctx context.Context, sessionID string) ([]*domain.Annotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Annotation, 0)
	for _, id := range m.order {
		if a, ok := m.annotations[id]; ok && a.SessionID == sessionID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAnnotationStore) Delete(ctx context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.annotations[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.annotations, id)
	return nil
}

// Count returns the number of stored annotations (for test assertions)
func (m *MockAnnotationStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.annotations)
}
