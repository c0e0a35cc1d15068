package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Store is the in-memory list of annotations for the open session.
// The remote API is the system of record: records are only ever appended
// as the server returned them, and removed after the server confirmed.
type Store struct {
	api    driven.AnnotationAPI
	logger *slog.Logger

	mu          sync.RWMutex
	session     *domain.FeedbackSession
	annotations []*domain.Annotation
	deleting    map[string]bool
	generation  uint64
	closed      bool
}

// NewStore creates an empty Store backed by api
func NewStore(api driven.AnnotationAPI, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:      api,
		logger:   logger,
		deleting: make(map[string]bool),
	}
}

// Load replaces the list with the session's annotations. On failure the
// list is left empty and the error can be retried by loading again.
func (s *Store) Load(ctx context.Context, sessionID string) ([]*domain.Annotation, error) {
	generation, err := s.begin()
	if err != nil {
		return nil, err
	}

	result, err := s.api.GetSession(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return nil, domain.ErrViewClosed
	}
	if err != nil {
		s.session = nil
		s.annotations = nil
		s.logger.Warn("failed to load annotations", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	s.session = result.Session
	s.annotations = append([]*domain.Annotation(nil), result.Annotations...)
	return s.snapshot(s.annotations), nil
}

// Session returns the loaded session, or nil
func (s *Store) Session() *domain.FeedbackSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Create validates draft locally and persists it. Invalid drafts never
// reach the network; on any failure nothing is inserted.
func (s *Store) Create(ctx context.Context, draft domain.AnnotationDraft) (*domain.Annotation, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	generation, err := s.begin()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("%w: no session loaded", domain.ErrInvalidInput)
	}

	created, err := s.api.CreateAnnotation(ctx, session.ID, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return nil, domain.ErrViewClosed
	}
	if err != nil {
		return nil, err
	}
	// a Load that finished while the request was out may already list the
	// record, or may have switched to another session
	switch {
	case s.session == nil || s.session.ID != session.ID:
		s.logger.Debug("annotation created for a session no longer loaded", "annotation_id", created.ID, "session_id", session.ID)
	case s.indexOf(created.ID) >= 0:
		s.logger.Debug("annotation already loaded", "annotation_id", created.ID)
	default:
		s.annotations = append(s.annotations, created)
		s.logger.Debug("annotation created", "annotation_id", created.ID, "kind", created.Kind)
	}
	copied := *created
	return &copied, nil
}

// Remove deletes an annotation. Until the server confirms the record stays
// in the list; a second Remove for the same id while the first is pending
// fails with domain.ErrSubmissionInFlight.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrViewClosed
	}
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	if s.deleting[id] {
		s.mu.Unlock()
		return domain.ErrSubmissionInFlight
	}
	s.deleting[id] = true
	generation := s.generation
	s.mu.Unlock()

	err := s.api.DeleteAnnotation(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return domain.ErrViewClosed
	}
	delete(s.deleting, id)
	if err != nil {
		return err
	}
	if i := s.indexOf(id); i >= 0 {
		s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)
	}
	return nil
}

// CanRemove reports whether userID may be offered the delete action for id
func (s *Store) CanRemove(id, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	return i >= 0 && s.annotations[i].IsAuthor(userID) && !s.deleting[id]
}

// ByPage returns the annotations anchored to page, in creation order
func (s *Store) ByPage(page int) []*domain.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.Annotation
	for _, a := range s.annotations {
		if a.OnPage(page) {
			result = append(result, a)
		}
	}
	return s.snapshot(result)
}

// GeneralComments returns the annotations not tied to a page
func (s *Store) GeneralComments() []*domain.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*domain.Annotation
	for _, a := range s.annotations {
		if a.Kind == domain.KindGeneralComment {
			result = append(result, a)
		}
	}
	return s.snapshot(result)
}

// All returns every annotation in the session
func (s *Store) All() []*domain.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(s.annotations)
}

// Close drops the list. Results of calls still in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.closed = true
	s.session = nil
	s.annotations = nil
	s.deleting = make(map[string]bool)
}

func (s *Store) begin() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, domain.ErrViewClosed
	}
	return s.generation, nil
}

func (s *Store) indexOf(id string) int {
	for i, a := range s.annotations {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// snapshot copies records so callers cannot mutate the list
func (s *Store) snapshot(list []*domain.Annotation) []*domain.Annotation {
	result := make([]*domain.Annotation, len(list))
	for i, a := range list {
		copied := *a
		result[i] = &copied
	}
	return result
}
