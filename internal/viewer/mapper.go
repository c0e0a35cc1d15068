package viewer

import (
	"strings"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// Selection is a native text selection as reported by the UI layer: the
// selected text and one client rectangle per visual line, in viewport
// coordinates.
type Selection struct {
	Text  string
	Rects []domain.Region
}

// IsEmpty reports whether no non-whitespace text is selected
func (s Selection) IsEmpty() bool {
	return strings.TrimSpace(s.Text) == ""
}

// CaptureSelection converts a selection into surface-relative Regions, one
// per client rectangle, by subtracting the origin of the surface bounding
// box. Zero-area rectangles (collapsed line ends) are dropped.
func CaptureSelection(sel Selection, surface domain.Region) []domain.Region {
	if sel.IsEmpty() {
		return nil
	}
	regions := make([]domain.Region, 0, len(sel.Rects))
	for _, rect := range sel.Rects {
		if rect.IsEmpty() {
			continue
		}
		regions = append(regions, rect.Translate(surface.X, surface.Y))
	}
	if len(regions) == 0 {
		return nil
	}
	return regions
}

// CaptureClick returns the fixed-size Region centered on a viewport click
func CaptureClick(p domain.Point, surface domain.Region) domain.Region {
	half := domain.ClickRegionSize / 2
	return domain.Region{
		X:      p.X - surface.X - half,
		Y:      p.Y - surface.Y - half,
		Width:  domain.ClickRegionSize,
		Height: domain.ClickRegionSize,
	}
}

// Interaction collects the captures of one pointer interaction with the
// surface. A non-empty selection takes priority: once one has been
// captured, clicks in the same interaction produce nothing.
type Interaction struct {
	surface domain.Region

	text    string
	regions []domain.Region
	click   *domain.Region
}

// NewInteraction starts an interaction over a surface with the given viewport bounds
func NewInteraction(surface domain.Region) *Interaction {
	return &Interaction{surface: surface}
}

// Select records a text selection and returns its Regions.
// An empty selection records nothing.
func (i *Interaction) Select(sel Selection) []domain.Region {
	regions := CaptureSelection(sel, i.surface)
	if len(regions) == 0 {
		return nil
	}
	i.text = strings.TrimSpace(sel.Text)
	i.regions = regions
	i.click = nil
	return regions
}

// Click records a click. ok is false when a selection was already captured.
func (i *Interaction) Click(p domain.Point) (region domain.Region, ok bool) {
	if i.HasSelection() {
		return domain.Region{}, false
	}
	region = CaptureClick(p, i.surface)
	i.click = &region
	return region, true
}

// HasSelection reports whether a non-empty selection was captured
func (i *Interaction) HasSelection() bool {
	return len(i.regions) > 0
}

// Capture returns what the interaction produced for page, or false if nothing
func (i *Interaction) Capture(page int) (Capture, bool) {
	switch {
	case i.HasSelection():
		return Capture{
			Kind:            domain.KindHighlight,
			PageNumber:      domain.PageNumber(page),
			HighlightedText: i.text,
			Regions:         append([]domain.Region(nil), i.regions...),
		}, true
	case i.click != nil:
		return Capture{
			Kind:       domain.KindPointComment,
			PageNumber: domain.PageNumber(page),
			Regions:    []domain.Region{*i.click},
		}, true
	}
	return Capture{}, false
}
