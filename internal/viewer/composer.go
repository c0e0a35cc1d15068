package viewer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// ComposerState is the step a pending submission is in
type ComposerState string

const (
	StateIdle       ComposerState = "idle"
	StateCapturing  ComposerState = "capturing-selection"
	StateComposing  ComposerState = "composing-comment"
	StateSubmitting ComposerState = "submitting"
	StateError      ComposerState = "error-shown"
)

// Capture is what the user anchored a comment to
type Capture struct {
	Kind            domain.AnnotationKind
	PageNumber      *int
	HighlightedText string
	Regions         []domain.Region
}

// IsEmpty reports whether the capture cannot anchor a comment
func (c Capture) IsEmpty() bool {
	switch c.Kind {
	case domain.KindHighlight:
		return strings.TrimSpace(c.HighlightedText) == "" || len(c.Regions) == 0
	case domain.KindPointComment:
		return len(c.Regions) != 1
	case domain.KindGeneralComment:
		return false
	}
	return true
}

// SubmitFunc persists a draft and returns the stored record
type SubmitFunc func(ctx context.Context, draft domain.AnnotationDraft) (*domain.Annotation, error)

// Composer drives a single annotation from capture to submission:
//
//	idle -> capturing-selection -> composing-comment -> submitting -> idle | error-shown
//
// Cancel returns to idle from any state. Submission failures keep the
// capture and the comment text so the user can retry.
type Composer struct {
	mu         sync.Mutex
	state      ComposerState
	capture    Capture
	content    string
	err        error
	generation uint64
}

// NewComposer creates an idle Composer
func NewComposer() *Composer {
	return &Composer{state: StateIdle}
}

// State returns the current state
func (c *Composer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error shown in error-shown, if any
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Content returns the comment text typed so far
func (c *Composer) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// BeginCapture starts listening for a selection or click
func (c *Composer) BeginCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("%w: begin capture from %s", domain.ErrInvalidState, c.state)
	}
	c.state = StateCapturing
	return nil
}

// Compose enters composing-comment with a non-empty capture. Captures come
// from capturing-selection; general comments need no capture and may start
// from idle.
func (c *Composer) Compose(capture Capture) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateCapturing:
	case c.state == StateIdle && capture.Kind == domain.KindGeneralComment:
	default:
		return fmt.Errorf("%w: compose from %s", domain.ErrInvalidState, c.state)
	}
	if capture.IsEmpty() {
		return fmt.Errorf("%w: nothing captured", domain.ErrValidation)
	}

	c.capture = capture
	c.content = ""
	c.err = nil
	c.state = StateComposing
	return nil
}

// SetContent updates the comment text. Editing after a failure returns to composing-comment.
func (c *Composer) SetContent(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateComposing, StateError:
		c.content = content
		c.state = StateComposing
		return nil
	case StateSubmitting:
		return domain.ErrSubmissionInFlight
	}
	return fmt.Errorf("%w: set content in %s", domain.ErrInvalidState, c.state)
}

// Draft builds the draft for the current capture and text
func (c *Composer) Draft() domain.AnnotationDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft()
}

func (c *Composer) draft() domain.AnnotationDraft {
	return domain.AnnotationDraft{
		Kind:            c.capture.Kind,
		PageNumber:      c.capture.PageNumber,
		Content:         c.content,
		HighlightedText: c.capture.HighlightedText,
		Regions:         append([]domain.Region(nil), c.capture.Regions...),
	}
}

// Submit sends the draft through submit. A second Submit while one is
// pending fails with domain.ErrSubmissionInFlight. Empty text never leaves
// composing-comment. If the composer was cancelled while the call was
// pending, the outcome is returned but no longer changes the state.
func (c *Composer) Submit(ctx context.Context, submit SubmitFunc) (*domain.Annotation, error) {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil, domain.ErrSubmissionInFlight
	case StateComposing, StateError:
	default:
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: submit from %s", domain.ErrInvalidState, state)
	}
	if strings.TrimSpace(c.content) == "" {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}

	draft := c.draft()
	c.state = StateSubmitting
	c.err = nil
	generation := c.generation
	c.mu.Unlock()

	annotation, err := submit(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return annotation, err
	}
	if err != nil {
		c.err = err
		c.state = StateError
		return nil, err
	}
	c.reset()
	return annotation, nil
}

// Cancel abandons the current capture or draft
func (c *Composer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Composer) reset() {
	c.generation++
	c.state = StateIdle
	c.capture = Capture{}
	c.content = ""
	c.err = nil
}
