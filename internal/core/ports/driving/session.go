package driving

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// SessionService manages feedback sessions
type SessionService interface {
	// Create opens a new session on a document
	Create(ctx context.Context, authCtx *domain.AuthContext, req domain.CreateSessionRequest) (*domain.FeedbackSession, error)

	// Get retrieves a session with all its annotations
	Get(ctx context.Context, id string) (*domain.SessionWithAnnotations, error)

	// List retrieves the sessions opened by a user
	List(ctx context.Context, ownerID string) ([]*domain.FeedbackSession, error)
}
