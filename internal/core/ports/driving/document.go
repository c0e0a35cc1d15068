package driving

import (
	"context"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// DocumentService renders pages of a session's document
type DocumentService interface {
	// RenderPage rasterizes a page and builds its text layer
	RenderPage(ctx context.Context, sessionID string, page int, scale float64) (*domain.RasterSurface, error)
}
