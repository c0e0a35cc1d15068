package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
	"github.com/scriptroom/feedback-core/internal/core/ports/driving"
)

// Ensure sessionService implements SessionService
var _ driving.SessionService = (*sessionService)(nil)

// sessionService implements the SessionService interface
type sessionService struct {
	sessionStore    driven.SessionStore
	annotationStore driven.AnnotationStore
	cache           driven.SessionCache    // optional
	lock            driven.DistributedLock // optional
	logger          *slog.Logger
	now             func() time.Time
}

// SessionServiceConfig holds dependencies for the session service
type SessionServiceConfig struct {
	SessionStore    driven.SessionStore
	AnnotationStore driven.AnnotationStore
	Cache           driven.SessionCache    // Optional: read-through snapshot cache
	Lock            driven.DistributedLock // Optional: consulted before refilling the cache
	Logger          *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(cfg SessionServiceConfig) driving.SessionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{
		sessionStore:    cfg.SessionStore,
		annotationStore: cfg.AnnotationStore,
		cache:           cfg.Cache,
		lock:            cfg.Lock,
		logger:          logger,
		now:             time.Now,
	}
}

// Create opens a new session on a document
func (s *sessionService) Create(ctx context.Context, authCtx *domain.AuthContext, req domain.CreateSessionRequest) (*domain.FeedbackSession, error) {
	if authCtx == nil {
		return nil, domain.ErrUnauthorized
	}
	if !authCtx.CanAnnotate() {
		return nil, domain.ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session := &domain.FeedbackSession{
		ID:          generateID(),
		DocumentURL: strings.TrimSpace(req.DocumentURL),
		Title:       strings.TrimSpace(req.Title),
		OwnerID:     authCtx.UserID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.sessionStore.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("feedback session created", "session_id", session.ID, "owner_id", session.OwnerID)
	return session, nil
}

// Get retrieves a session with all its annotations, read-through the cache.
// The cache version is read before the stores so that a write landing
// between the read and the fill keeps the snapshot out of the cache.
func (s *sessionService) Get(ctx context.Context, id string) (*domain.SessionWithAnnotations, error) {
	fillVersion := int64(-1)
	if s.cache != nil {
		snapshot, err := s.cache.Get(ctx, id)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("session cache read failed", "session_id", id, "error", err)
		} else if version, err := s.cache.Version(ctx, id); err != nil {
			s.logger.Warn("session cache version read failed", "session_id", id, "error", err)
		} else {
			fillVersion = version
		}
	}

	session, err := s.sessionStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	annotations, err := s.annotationStore.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.SessionWithAnnotations{
		Session:     session,
		Annotations: annotations,
	}
	if fillVersion >= 0 {
		s.fill(ctx, snapshot, fillVersion)
	}
	return snapshot, nil
}

// List retrieves the sessions opened by a user
func (s *sessionService) List(ctx context.Context, ownerID string) ([]*domain.FeedbackSession, error) {
	return s.sessionStore.ListByOwner(ctx, ownerID)
}

// fill caches a snapshot read at version unless a writer holds the session
func (s *sessionService) fill(ctx context.Context, snapshot *domain.SessionWithAnnotations, version int64) {
	if s.lock != nil {
		held, err := s.lock.IsHeld(ctx, sessionLockName(snapshot.Session.ID))
		if err != nil || held {
			return
		}
	}
	stored, err := s.cache.Set(ctx, snapshot, version)
	if err != nil {
		s.logger.Warn("session cache write failed", "session_id", snapshot.Session.ID, "error", err)
		return
	}
	if !stored {
		s.logger.Debug("session changed while reading, not cached", "session_id", snapshot.Session.ID)
	}
}
