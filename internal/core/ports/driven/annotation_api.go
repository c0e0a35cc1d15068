package driven

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// AnnotationAPI is the remote system of record as seen by the viewer.
// Errors from Create and Delete wrap domain.ErrPersist; a 403 also wraps
// domain.ErrForbidden.
type AnnotationAPI interface {
	// GetSession fetches session metadata and all annotations
	GetSession(ctx context.Context, sessionID string) (*domain.SessionWithAnnotations, error)

	// CreateAnnotation persists a draft and returns the server's record
	CreateAnnotation(ctx context.Context, sessionID string, draft domain.AnnotationDraft) (*domain.Annotation, error)

	// DeleteAnnotation removes an annotation; the server enforces authorship
	DeleteAnnotation(ctx context.Context, annotationID string) error
}
