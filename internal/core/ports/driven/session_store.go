package driven

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// SessionStore handles feedback session persistence (PostgreSQL)
type SessionStore interface {
	// Save creates or updates a session
	Save(ctx context.Context, session *domain.FeedbackSession) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*domain.FeedbackSession, error)

	// ListByOwner retrieves all sessions opened by a user, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.FeedbackSession, error)
}

// SessionCache holds read-through snapshots of sessions with their annotations (Redis)
type SessionCache interface {
	// Get returns the cached snapshot or domain.ErrNotFound on a miss
	Get(ctx context.Context, sessionID string) (*domain.SessionWithAnnotations, error)

	// Version returns the session's write version. Every Invalidate changes it.
	Version(ctx context.Context, sessionID string) (int64, error)

	// Set stores a snapshot that was read after Version returned version.
	// It stores nothing and returns false if the session was invalidated since.
	Set(ctx context.Context, snapshot *domain.SessionWithAnnotations, version int64) (bool, error)

	// Invalidate drops the snapshot for a session and advances its version
	Invalidate(ctx context.Context, sessionID string) error
}
