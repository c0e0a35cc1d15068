package driven

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// AnnotationStore handles annotation persistence (PostgreSQL)
type AnnotationStore interface {
	// Create inserts a new annotation. Annotations are never updated.
	Create(ctx context.Context, annotation *domain.Annotation) error

	// Get retrieves an annotation by ID
	Get(ctx context.Context, id string) (*domain.Annotation, error)

	// ListBySession retrieves all annotations for a session, oldest first
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Annotation, error)

	// Delete deletes an annotation
	Delete(ctx context.Context, id string) error
}
