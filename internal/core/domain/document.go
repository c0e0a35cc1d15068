package domain

import (
	"image"
	"math"
)

// DefaultScale is the zoom applied when a view first renders a page
const DefaultScale = 1.5

// ClickRegionSize is the edge length of the square Region produced by a click
const ClickRegionSize = 20.0

// Point is a position in rendered-page coordinates (top-left origin)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is a rectangle in the coordinate space of the rendered page,
// already multiplied by the render scale.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Origin returns the top-left corner of the region
func (r Region) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// IsEmpty reports whether the region covers no area
func (r Region) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// IsValid reports whether all coordinates are finite and the size is positive
func (r Region) IsValid() bool {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !r.IsEmpty()
}

// Translate shifts the region by (-dx, -dy)
func (r Region) Translate(dx, dy float64) Region {
	return Region{X: r.X - dx, Y: r.Y - dy, Width: r.Width, Height: r.Height}
}

// Document is a paginated resource opened for viewing.
// PageCount is only known after the document has been loaded.
type Document struct {
	URL       string `json:"url"`
	PageCount int    `json:"page_count"`

	// Handle is the loader's opaque reference to the parsed document
	Handle any `json:"-"`
}

// ContainsPage reports whether page (1-indexed) exists in the document
func (d *Document) ContainsPage(page int) bool {
	return page >= 1 && page <= d.PageCount
}

// PageSize is the intrinsic size of a page in PDF user-space units
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageRenderState is the derived, ephemeral state of the current page
type PageRenderState struct {
	Page   int     `json:"page"`
	Scale  float64 `json:"scale"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// NewPageRenderState computes raster dimensions for page at scale
func NewPageRenderState(page int, scale float64, size PageSize) PageRenderState {
	return PageRenderState{
		Page:   page,
		Scale:  scale,
		Width:  int(math.Ceil(size.Width * scale)),
		Height: int(math.Ceil(size.Height * scale)),
	}
}

// ValidScale reports whether scale can be used for rendering
func ValidScale(scale float64) bool {
	return scale > 0 && !math.IsInf(scale, 0) && !math.IsNaN(scale)
}

// GlyphRun is a run of text as extracted from the page content, in the
// page's native coordinate space (bottom-left origin, baseline Y).
type GlyphRun struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// TextRun is a transparent, selectable text descriptor positioned over the
// rendered surface (top-left origin, scaled). The UI layer materializes it.
type TextRun struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
}

// PageContent is what a loader extracts from one page
type PageContent struct {
	Size   PageSize
	Glyphs []GlyphRun
}

// RasterSurface is the result of rendering one page at one scale
type RasterSurface struct {
	State     PageRenderState `json:"state"`
	TextLayer []TextRun       `json:"text_layer"`
	Image     *image.RGBA     `json:"-"`
}
