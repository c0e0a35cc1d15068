package driving

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// AnnotationService manages annotations within feedback sessions
type AnnotationService interface {
	// ListSession retrieves all annotations for a session
	ListSession(ctx context.Context, sessionID string) ([]*domain.Annotation, error)

	// Create validates and persists a draft authored by the caller
	Create(ctx context.Context, authCtx *domain.AuthContext, sessionID string, draft domain.AnnotationDraft) (*domain.Annotation, error)

	// Delete removes an annotation. Only its author may delete it.
	Delete(ctx context.Context, authCtx *domain.AuthContext, annotationID string) error
}
