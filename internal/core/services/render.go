package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// PageRenderer turns one page of a loaded document into a raster surface
// with its text layer. It holds no per-view state and is safe for concurrent use.
type PageRenderer struct {
	loader     driven.DocumentLoader
	rasterizer driven.Rasterizer
}

// NewPageRenderer creates a new PageRenderer
func NewPageRenderer(loader driven.DocumentLoader, rasterizer driven.Rasterizer) *PageRenderer {
	return &PageRenderer{
		loader:     loader,
		rasterizer: rasterizer,
	}
}

// Load fetches a document. Errors wrap domain.ErrLoad.
func (r *PageRenderer) Load(ctx context.Context, url string) (*domain.Document, error) {
	doc, err := r.loader.Load(ctx, url)
	if err != nil {
		return nil, wrapLoad(err)
	}
	return doc, nil
}

// Release frees a loaded document
func (r *PageRenderer) Release(doc *domain.Document) error {
	return r.loader.Release(doc)
}

// CheckPage validates a page/scale pair against a document without any I/O
func (r *PageRenderer) CheckPage(doc *domain.Document, page int, scale float64) error {
	if !doc.ContainsPage(page) {
		return fmt.Errorf("%w: %w: page %d of %d", domain.ErrRender, domain.ErrPageOutOfRange, page, doc.PageCount)
	}
	if !domain.ValidScale(scale) {
		return fmt.Errorf("%w: invalid scale %v", domain.ErrRender, scale)
	}
	return nil
}

// Render rasterizes page at scale. Errors wrap domain.ErrRender.
func (r *PageRenderer) Render(ctx context.Context, doc *domain.Document, page int, scale float64) (*domain.RasterSurface, error) {
	if err := r.CheckPage(doc, page, scale); err != nil {
		return nil, err
	}

	content, err := r.loader.PageContent(ctx, doc, page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", domain.ErrRender, page, err)
	}

	img, err := r.rasterizer.Rasterize(ctx, doc, page, content, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: rasterize page %d: %w", domain.ErrRender, page, err)
	}

	return &domain.RasterSurface{
		State:     domain.NewPageRenderState(page, scale, content.Size),
		TextLayer: BuildTextLayer(content, scale),
		Image:     img,
	}, nil
}

// BuildTextLayer positions one transparent run per glyph run over the surface.
// Page space has its origin at the bottom-left and Y on the baseline; the
// surface has its origin at the top-left, so:
//
//	surfaceY = (pageHeight - baselineY - glyphHeight) * scale
func BuildTextLayer(content *domain.PageContent, scale float64) []domain.TextRun {
	runs := make([]domain.TextRun, 0, len(content.Glyphs))
	for _, g := range content.Glyphs {
		if strings.TrimSpace(g.Text) == "" {
			continue
		}
		runs = append(runs, domain.TextRun{
			Text:     g.Text,
			X:        g.X * scale,
			Y:        (content.Size.Height - g.Y - g.Height) * scale,
			Width:    g.Width * scale,
			Height:   g.Height * scale,
			FontSize: g.Height * scale,
		})
	}
	return runs
}

func wrapLoad(err error) error {
	if errors.Is(err, domain.ErrLoad) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLoad, err)
}
