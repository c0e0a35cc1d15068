package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
	"github.com/scriptroom/feedback-core/internal/core/ports/driving"
)

// Ensure annotationService implements AnnotationService
var _ driving.AnnotationService = (*annotationService)(nil)

// sessionWriteLockTTL bounds how long a crashed writer can suppress cache refills
const sessionWriteLockTTL = 10 * time.Second

// annotationService implements the AnnotationService interface
type annotationService struct {
	annotationStore driven.AnnotationStore
	sessionStore    driven.SessionStore
	cache           driven.SessionCache    // optional
	lock            driven.DistributedLock // optional
	logger          *slog.Logger
	now             func() time.Time
}

// AnnotationServiceConfig holds dependencies for the annotation service
type AnnotationServiceConfig struct {
	AnnotationStore driven.AnnotationStore
	SessionStore    driven.SessionStore
	Cache           driven.SessionCache    // Optional: invalidated after every write
	Lock            driven.DistributedLock // Optional: held while writing
	Logger          *slog.Logger
}

// NewAnnotationService creates a new AnnotationService
func NewAnnotationService(cfg AnnotationServiceConfig) driving.AnnotationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &annotationService{
		annotationStore: cfg.AnnotationStore,
		sessionStore:    cfg.SessionStore,
		cache:           cfg.Cache,
		lock:            cfg.Lock,
		logger:          logger,
		now:             time.Now,
	}
}

// ListSession retrieves all annotations for a session
func (s *annotationService) ListSession(ctx context.Context, sessionID string) ([]*domain.Annotation, error) {
	if _, err := s.sessionStore.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.annotationStore.ListBySession(ctx, sessionID)
}

// Create validates and persists a draft authored by the caller.
// Concurrent creates on the same page are all accepted; there is no conflict detection.
func (s *annotationService) Create(ctx context.Context, authCtx *domain.AuthContext, sessionID string, draft domain.AnnotationDraft) (*domain.Annotation, error) {
	if authCtx == nil {
		return nil, domain.ErrUnauthorized
	}
	if !authCtx.CanAnnotate() {
		return nil, domain.ErrForbidden
	}

	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.sessionStore.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	annotation := draft.ToAnnotation(generateID(), sessionID, authCtx.UserID, s.now().UTC())

	release := s.lockSession(ctx, sessionID)
	defer release()

	if err := s.annotationStore.Create(ctx, annotation); err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}
	s.invalidate(ctx, sessionID)

	s.logger.Info("annotation created",
		"annotation_id", annotation.ID,
		"session_id", sessionID,
		"kind", annotation.Kind,
		"author_id", authCtx.UserID,
	)
	return annotation, nil
}

// Delete removes an annotation. Only its author may delete it; admins included.
func (s *annotationService) Delete(ctx context.Context, authCtx *domain.AuthContext, annotationID string) error {
	if authCtx == nil {
		return domain.ErrUnauthorized
	}

	annotation, err := s.annotationStore.Get(ctx, annotationID)
	if err != nil {
		return err
	}
	if !annotation.IsAuthor(authCtx.UserID) {
		s.logger.Warn("annotation delete rejected",
			"annotation_id", annotationID,
			"author_id", annotation.AuthorID,
			"caller_id", authCtx.UserID,
		)
		return domain.ErrForbidden
	}

	release := s.lockSession(ctx, annotation.SessionID)
	defer release()

	if err := s.annotationStore.Delete(ctx, annotationID); err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	s.invalidate(ctx, annotation.SessionID)

	s.logger.Info("annotation deleted", "annotation_id", annotationID, "session_id", annotation.SessionID)
	return nil
}

// lockSession marks the session as being written. Failure to lock does not
// block the write: the lock only keeps readers from caching a mid-write snapshot.
func (s *annotationService) lockSession(ctx context.Context, sessionID string) func() {
	if s.lock == nil {
		return func() {}
	}
	name := sessionLockName(sessionID)
	acquired, err := s.lock.Acquire(ctx, name, sessionWriteLockTTL)
	if err != nil {
		s.logger.Warn("failed to acquire session lock", "session_id", sessionID, "error", err)
		return func() {}
	}
	if !acquired {
		return func() {}
	}
	return func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			s.logger.Warn("failed to release session lock", "session_id", sessionID, "error", err)
		}
	}
}

func (s *annotationService) invalidate(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sessionID); err != nil {
		s.logger.Warn("failed to invalidate session cache", "session_id", sessionID, "error", err)
	}
}

func sessionLockName(sessionID string) string {
	return "session-write:" + sessionID
}
