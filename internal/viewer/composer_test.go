package viewer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

var highlightCapture = Capture{
	Kind:            domain.KindHighlight,
	PageNumber:      domain.PageNumber(1),
	HighlightedText: "FADE IN:",
	Regions:         []domain.Region{{X: 10, Y: 20, Width: 50, Height: 14}},
}

func echoSubmit(ctx context.Context, draft domain.AnnotationDraft) (*domain.Annotation, error) {
	return draft.ToAnnotation("ann-1", "sess-1", "writer", time.Now()), nil
}

func TestComposer_HappyPath(t *testing.T) {
	c := NewComposer()
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.BeginCapture())
	assert.Equal(t, StateCapturing, c.State())

	require.NoError(t, c.Compose(highlightCapture))
	assert.Equal(t, StateComposing, c.State())

	require.NoError(t, c.SetContent("tighten"))
	created, err := c.Submit(context.Background(), echoSubmit)
	require.NoError(t, err)
	assert.Equal(t, "tighten", created.Content)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Content())
}

func TestComposer_Guards(t *testing.T) {
	c := NewComposer()

	// composing needs a capture first
	assert.True(t, errors.Is(c.Compose(highlightCapture), domain.ErrInvalidState))

	require.NoError(t, c.BeginCapture())
	assert.True(t, errors.Is(c.BeginCapture(), domain.ErrInvalidState))

	empty := Capture{Kind: domain.KindHighlight, PageNumber: domain.PageNumber(1)}
	assert.True(t, errors.Is(c.Compose(empty), domain.ErrValidation))
	assert.Equal(t, StateCapturing, c.State())

	require.NoError(t, c.Compose(highlightCapture))

	// empty text never submits
	calls := 0
	_, err := c.Submit(context.Background(), func(ctx context.Context, d domain.AnnotationDraft) (*domain.Annotation, error) {
		calls++
		return nil, nil
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, 0, calls)
	assert.Equal(t, StateComposing, c.State())
}

func TestComposer_GeneralFromIdle(t *testing.T) {
	c := NewComposer()
	require.NoError(t, c.Compose(Capture{Kind: domain.KindGeneralComment}))
	assert.Equal(t, StateComposing, c.State())
	assert.Nil(t, c.Draft().PageNumber)
}

func TestComposer_FailureKeepsInput(t *testing.T) {
	c := NewComposer()
	require.NoError(t, c.BeginCapture())
	require.NoError(t, c.Compose(highlightCapture))
	require.NoError(t, c.SetContent("tighten"))

	failure := errors.Join(domain.ErrPersist, errors.New("503"))
	_, err := c.Submit(context.Background(), func(ctx context.Context, d domain.AnnotationDraft) (*domain.Annotation, error) {
		return nil, failure
	})
	assert.Equal(t, failure, err)
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, failure, c.Err())
	assert.Equal(t, "tighten", c.Content())
	assert.Equal(t, highlightCapture.Regions, c.Draft().Regions)

	// retry straight from error-shown
	_, err = c.Submit(context.Background(), echoSubmit)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.State())
}

func TestComposer_SecondSubmitRejected(t *testing.T) {
	c := NewComposer()
	require.NoError(t, c.Compose(Capture{Kind: domain.KindGeneralComment}))
	require.NoError(t, c.SetContent("bravo"))

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), func(ctx context.Context, d domain.AnnotationDraft) (*domain.Annotation, error) {
			close(started)
			<-release
			return echoSubmit(ctx, d)
		})
		done <- err
	}()
	<-started

	assert.Equal(t, StateSubmitting, c.State())
	_, err := c.Submit(context.Background(), echoSubmit)
	assert.Equal(t, domain.ErrSubmissionInFlight, err)
	assert.Equal(t, domain.ErrSubmissionInFlight, c.SetContent("edited"))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, c.State())
}

func TestComposer_CancelFromAnyState(t *testing.T) {
	c := NewComposer()
	require.NoError(t, c.BeginCapture())
	c.Cancel()
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.BeginCapture())
	require.NoError(t, c.Compose(highlightCapture))
	require.NoError(t, c.SetContent("draft"))
	c.Cancel()
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Content())

	// cancelled while submitting: the outcome no longer moves the state
	require.NoError(t, c.Compose(Capture{Kind: domain.KindGeneralComment}))
	require.NoError(t, c.SetContent("late"))
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), func(ctx context.Context, d domain.AnnotationDraft) (*domain.Annotation, error) {
			close(started)
			<-release
			return nil, domain.ErrPersist
		})
		done <- err
	}()
	<-started
	c.Cancel()
	close(release)
	assert.Equal(t, domain.ErrPersist, <-done)
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.Err())
}
