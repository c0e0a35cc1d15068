package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Ensure MockAnnotationAPI implements AnnotationAPI
var _ driven.AnnotationAPI = (*MockAnnotationAPI)(nil)

// MockAnnotationAPI emulates the remote annotation API in memory,
// including server-side id assignment and author-only deletion.
type MockAnnotationAPI struct {
	mu          sync.Mutex
	sessions    map[string]*domain.FeedbackSession
	annotations []*domain.Annotation
	nextID      int

	// CurrentUser is the author recorded on creates and checked on deletes
	CurrentUser string

	// Error injection
	GetErr    error
	CreateErr error
	DeleteErr error

	CreateCalls int
	DeleteCalls int
}

// NewMockAnnotationAPI creates a new MockAnnotationAPI acting as currentUser
func NewMockAnnotationAPI(currentUser string) *MockAnnotationAPI {
	return &MockAnnotationAPI{
		sessions:    make(map[string]*domain.FeedbackSession),
		CurrentUser: currentUser,
	}
}

// AddSession registers a session with pre-existing annotations
func (m *MockAnnotationAPI) AddSession(session *domain.FeedbackSession, annotations ...*domain.Annotation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	m.annotations = append(m.annotations, annotations...)
}

func (m *MockAnnotationAPI) GetSession(ctx context.Context, sessionID string) (*domain.SessionWithAnnotations, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result := &domain.SessionWithAnnotations{Session: session, Annotations: []*domain.Annotation{}}
	for _, a := range m.annotations {
		if a.SessionID == sessionID {
			copied := *a
			result.Annotations = append(result.Annotations, &copied)
		}
	}
	return result, nil
}

func (m *MockAnnotationAPI) CreateAnnotation(ctx context.Context, sessionID string, draft domain.AnnotationDraft) (*domain.Annotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersist, domain.ErrNotFound)
	}
	m.nextID++
	a := draft.ToAnnotation(fmt.Sprintf("ann-%d", m.nextID), sessionID, m.CurrentUser, time.Now())
	m.annotations = append(m.annotations, a)
	copied := *a
	return &copied, nil
}

func (m *MockAnnotationAPI) DeleteAnnotation(ctx context.Context, annotationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i, a := range m.annotations {
		if a.ID != annotationID {
			continue
		}
		if !a.IsAuthor(m.CurrentUser) {
			return fmt.Errorf("%w: %w", domain.ErrPersist, domain.ErrForbidden)
		}
		m.annotations = append(m.annotations[:i], m.annotations[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrPersist, domain.ErrNotFound)
}
