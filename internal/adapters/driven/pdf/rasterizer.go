package pdf

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"seehuhn.de/go/pdf/converter"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Rasterizer = (*Rasterizer)(nil)

// pointsPerInch is the resolution of PDF user space
const pointsPerInch = 72.0

// Rasterizer paints pages by running their content streams through the
// seehuhn converter: paths, images and embedded fonts are drawn straight at
// the output resolution.
type Rasterizer struct{}

// NewRasterizer creates a Rasterizer
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// Rasterize renders page of doc at scale. The raster is sized from content,
// which must describe the same page.
func (r *Rasterizer) Rasterize(ctx context.Context, doc *domain.Document, page int, content *domain.PageContent, scale float64) (*image.RGBA, error) {
	if !domain.ValidScale(scale) {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	state := domain.NewPageRenderState(page, scale, content.Size)
	if state.Width < 1 || state.Height < 1 {
		return nil, fmt.Errorf("page %vx%v renders empty at scale %v", content.Size.Width, content.Size.Height, scale)
	}
	// the converter allocates exactly one buffer of about this size
	if limit := maxPixels(); state.Width > limit/state.Height {
		return nil, fmt.Errorf("raster %dx%d exceeds %d pixels", state.Width, state.Height, limit)
	}

	h, ok := doc.Handle.(*handle)
	if !ok || h == nil {
		return nil, fmt.Errorf("document %s was not loaded by this loader", doc.URL)
	}
	if !doc.ContainsPage(page) {
		return nil, domain.ErrPageOutOfRange
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.pages == nil {
		return nil, fmt.Errorf("document %s is released", doc.URL)
	}

	img, err := converter.NewConverter(h.pages).RenderPageToImage(page, pointsPerInch*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fitSurface(img, state.Width, state.Height), nil
}

// fitSurface returns img as an RGBA of exactly width x height. The converter
// truncates page sizes while the surface rounds up, so the last row or
// column may need padding with white.
func fitSurface(img image.Image, width, height int) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && b.Dx() == width && b.Dy() == height {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func maxPixels() int {
	if rt, err := current(); err == nil {
		return rt.cfg.MaxPixels
	}
	return DefaultConfig().MaxPixels
}
