package viewer

import (
	"context"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/services"
)

// Renderer draws pages onto a single surface. Every request takes a token
// from a monotonically increasing counter; a result is applied only if its
// token is still the latest when it resolves, so the last request wins no
// matter in which order the underlying renders complete.
type Renderer struct {
	pages *services.PageRenderer

	mu      sync.Mutex
	latest  uint64
	current *domain.RasterSurface
}

// NewRenderer creates a Renderer drawing through pages
func NewRenderer(pages *services.PageRenderer) *Renderer {
	return &Renderer{pages: pages}
}

// LoadDocument fetches and parses the document at url. Errors wrap domain.ErrLoad.
func (r *Renderer) LoadDocument(ctx context.Context, url string) (*domain.Document, error) {
	return r.pages.Load(ctx, url)
}

// RenderPage renders page at scale and makes it the current surface.
// Out-of-range pages are rejected before a token is taken, leaving the
// surface and any pending render untouched. A result overtaken by a newer
// request is dropped with domain.ErrStaleRender.
func (r *Renderer) RenderPage(ctx context.Context, doc *domain.Document, page int, scale float64) (*domain.RasterSurface, error) {
	token, err := r.request(doc, page, scale)
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, doc, token, page, scale)
}

// request validates page and scale and takes the next token
func (r *Renderer) request(doc *domain.Document, page int, scale float64) (uint64, error) {
	if err := r.pages.CheckPage(doc, page, scale); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest++
	return r.latest, nil
}

// finish renders for token and applies the result if token is still the latest
func (r *Renderer) finish(ctx context.Context, doc *domain.Document, token uint64, page int, scale float64) (*domain.RasterSurface, error) {
	surface, err := r.pages.Render(ctx, doc, page, scale)

	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.latest {
		return nil, domain.ErrStaleRender
	}
	if err != nil {
		// last good surface stays visible
		return nil, err
	}
	r.current = surface
	return surface, nil
}

// Current returns the surface currently shown, or nil before the first render
func (r *Renderer) Current() *domain.RasterSurface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Invalidate makes every pending render stale
func (r *Renderer) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest++
}

// Release frees a loaded document
func (r *Renderer) Release(doc *domain.Document) error {
	return r.pages.Release(doc)
}
