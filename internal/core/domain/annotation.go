package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// AnnotationKind distinguishes how an annotation is anchored
type AnnotationKind string

const (
	KindHighlight      AnnotationKind = "highlight"       // Text selection with regions
	KindPointComment   AnnotationKind = "point-comment"   // Click anchored on a page
	KindGeneralComment AnnotationKind = "general-comment" // Not tied to a page
)

// IsValid checks if the kind is one of the known kinds
func (k AnnotationKind) IsValid() bool {
	switch k {
	case KindHighlight, KindPointComment, KindGeneralComment:
		return true
	}
	return false
}

// Annotation is a persisted unit of feedback on a document.
// Annotations are created and deleted, never edited.
type Annotation struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	PageNumber      *int           `json:"page_number,omitempty"`
	Kind            AnnotationKind `json:"kind"`
	Content         string         `json:"content"`
	HighlightedText string         `json:"highlighted_text,omitempty"`
	Position        *Point         `json:"position,omitempty"`
	Regions         []Region       `json:"regions,omitempty"`
	AuthorID        string         `json:"author_id"`
	CreatedAt       time.Time      `json:"created_at"`
}

// OnPage reports whether the annotation is anchored to page
func (a *Annotation) OnPage(page int) bool {
	return a.PageNumber != nil && *a.PageNumber == page
}

// IsAuthor reports whether userID wrote the annotation
func (a *Annotation) IsAuthor(userID string) bool {
	return userID != "" && a.AuthorID == userID
}

// AnnotationDraft is the body of a create request.
// Point comments carry their single Region; the server derives Position from it.
type AnnotationDraft struct {
	Kind            AnnotationKind `json:"kind"`
	PageNumber      *int           `json:"page_number,omitempty"`
	Content         string         `json:"content"`
	HighlightedText string         `json:"highlighted_text,omitempty"`
	Regions         []Region       `json:"regions,omitempty"`
	Position        *Point         `json:"position,omitempty"`
}

// Normalize trims the comment body and NFC-normalizes the highlighted text
// so that what was selected compares equal regardless of the PDF encoding.
func (d AnnotationDraft) Normalize() AnnotationDraft {
	d.Content = strings.TrimSpace(d.Content)
	d.HighlightedText = norm.NFC.String(strings.TrimSpace(d.HighlightedText))
	if d.Kind == KindPointComment && d.Position == nil && len(d.Regions) == 1 {
		origin := d.Regions[0].Origin()
		d.Position = &origin
	}
	return d
}

// Validate checks the kind-specific invariants of a draft.
// Errors wrap ErrValidation.
func (d AnnotationDraft) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, d.Kind)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}

	switch d.Kind {
	case KindHighlight:
		if d.PageNumber == nil || *d.PageNumber < 1 {
			return fmt.Errorf("%w: highlight requires a page number", ErrValidation)
		}
		if strings.TrimSpace(d.HighlightedText) == "" {
			return fmt.Errorf("%w: highlight requires highlighted text", ErrValidation)
		}
		if len(d.Regions) == 0 {
			return fmt.Errorf("%w: highlight requires at least one region", ErrValidation)
		}
		if d.Position != nil {
			return fmt.Errorf("%w: highlight cannot carry a position", ErrValidation)
		}
	case KindPointComment:
		if d.PageNumber == nil || *d.PageNumber < 1 {
			return fmt.Errorf("%w: point comment requires a page number", ErrValidation)
		}
		if len(d.Regions) != 1 {
			return fmt.Errorf("%w: point comment requires exactly one region, got %d", ErrValidation, len(d.Regions))
		}
		if d.HighlightedText != "" {
			return fmt.Errorf("%w: point comment cannot carry highlighted text", ErrValidation)
		}
		if d.Position != nil && *d.Position != d.Regions[0].Origin() {
			return fmt.Errorf("%w: position must equal the region origin", ErrValidation)
		}
	case KindGeneralComment:
		if d.PageNumber != nil || d.Position != nil || len(d.Regions) > 0 || d.HighlightedText != "" {
			return fmt.Errorf("%w: general comment cannot be anchored", ErrValidation)
		}
	}

	for i, r := range d.Regions {
		if !r.IsValid() {
			return fmt.Errorf("%w: region %d is empty or not finite", ErrValidation, i)
		}
	}
	return nil
}

// ToAnnotation builds the record to persist. The store assigns nothing else:
// id, author and timestamp come from the caller.
func (d AnnotationDraft) ToAnnotation(id, sessionID, authorID string, now time.Time) *Annotation {
	a := &Annotation{
		ID:              id,
		SessionID:       sessionID,
		PageNumber:      d.PageNumber,
		Kind:            d.Kind,
		Content:         d.Content,
		HighlightedText: d.HighlightedText,
		AuthorID:        authorID,
		CreatedAt:       now,
	}
	switch d.Kind {
	case KindHighlight:
		a.Regions = append([]Region(nil), d.Regions...)
	case KindPointComment:
		origin := d.Regions[0].Origin()
		a.Position = &origin
	}
	return a
}

// PageNumber returns a pointer to page, for building drafts
func PageNumber(page int) *int {
	return &page
}
