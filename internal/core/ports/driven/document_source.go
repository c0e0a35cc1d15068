package driven

import (
	"context"
	"image"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// DocumentLoader fetches and parses paginated documents
type DocumentLoader interface {
	// Load fetches the document at url. Failures wrap domain.ErrLoad.
	Load(ctx context.Context, url string) (*domain.Document, error)

	// PageContent extracts the size and glyph runs of a page (1-indexed)
	PageContent(ctx context.Context, doc *domain.Document, page int) (*domain.PageContent, error)

	// Release frees resources held for a loaded document
	Release(doc *domain.Document) error
}

// Rasterizer paints a page of a loaded document into an image at a scale.
// content is the page as the loader extracted it and fixes the raster size.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc *domain.Document, page int, content *domain.PageContent, scale float64) (*image.RGBA, error)
}
