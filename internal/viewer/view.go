package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
	"github.com/scriptroom/feedback-core/internal/core/services"
)

// Config holds the collaborators of a FeedbackView
type Config struct {
	Pages  *services.PageRenderer
	API    driven.AnnotationAPI
	Logger *slog.Logger
}

// FeedbackView is one open document with its annotations. The renderer,
// store and composer each guard their own state; network and render calls
// run outside those locks and are bound to the view's lifetime, so nothing
// they return is applied after Close.
type FeedbackView struct {
	renderer *Renderer
	store    *Store
	composer *Composer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sessionID string
	doc       *domain.Document

	mu        sync.Mutex
	requested domain.PageRenderState // page and scale of the newest render request
	loadErr   error
	closed    bool
}

// Open loads the document at documentURL, fetches the session's
// annotations and renders the first page at domain.DefaultScale.
// A load failure is fatal and returned wrapped in domain.ErrLoad. Failing to
// fetch annotations is not: the view opens empty and LoadErr reports why.
func Open(ctx context.Context, cfg Config, sessionID, documentURL string) (*FeedbackView, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", sessionID)

	viewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &FeedbackView{
		renderer:  NewRenderer(cfg.Pages),
		store:     NewStore(cfg.API, logger),
		composer:  NewComposer(),
		logger:    logger,
		ctx:       viewCtx,
		cancel:    cancel,
		sessionID: sessionID,
		requested: domain.PageRenderState{Page: 1, Scale: domain.DefaultScale},
	}

	opCtx, done := v.bind(ctx)
	defer done()

	doc, err := v.renderer.LoadDocument(opCtx, documentURL)
	if err != nil {
		cancel()
		logger.Error("document load failed", "url", documentURL, "error", err)
		return nil, err
	}
	v.doc = doc

	if _, err := v.store.Load(opCtx, sessionID); err != nil {
		v.loadErr = err
	}

	if _, err := v.renderer.RenderPage(opCtx, doc, 1, domain.DefaultScale); err != nil {
		// the view stays usable; the next page or scale change retries
		logger.Warn("initial render failed", "error", err)
	}

	logger.Info("feedback view opened", "pages", doc.PageCount, "annotations", len(v.store.All()))
	return v, nil
}

// bind derives a context that is cancelled with either ctx or the view
func (v *FeedbackView) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Document returns the loaded document
func (v *FeedbackView) Document() *domain.Document {
	return v.doc
}

// LoadErr returns why annotations could not be fetched, if they could not
func (v *FeedbackView) LoadErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadErr
}

// Reload fetches the session's annotations again
func (v *FeedbackView) Reload(ctx context.Context) ([]*domain.Annotation, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	opCtx, done := v.bind(ctx)
	defer done()

	annotations, err := v.store.Load(opCtx, v.sessionID)
	if errors.Is(err, domain.ErrViewClosed) {
		return nil, err
	}
	v.mu.Lock()
	v.loadErr = err
	v.mu.Unlock()
	return annotations, err
}

// State returns the page and scale currently displayed. Before the first
// successful render it reports page 1 at domain.DefaultScale with no raster.
func (v *FeedbackView) State() domain.PageRenderState {
	if surface := v.renderer.Current(); surface != nil {
		return surface.State
	}
	return domain.PageRenderState{Page: 1, Scale: domain.DefaultScale}
}

// Surface returns the surface currently displayed
func (v *FeedbackView) Surface() *domain.RasterSurface {
	return v.renderer.Current()
}

// Requested returns the page and scale of the newest render request. It
// runs ahead of State while that render is pending.
func (v *FeedbackView) Requested() domain.PageRenderState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requested
}

// SetPage renders page at the most recently requested scale
func (v *FeedbackView) SetPage(ctx context.Context, page int) (*domain.RasterSurface, error) {
	return v.show(ctx, func(req domain.PageRenderState) (int, float64) {
		return page, req.Scale
	})
}

// SetScale renders the most recently requested page at scale
func (v *FeedbackView) SetScale(ctx context.Context, scale float64) (*domain.RasterSurface, error) {
	return v.show(ctx, func(req domain.PageRenderState) (int, float64) {
		return req.Page, scale
	})
}

// NextPage advances one page past the most recent request; it is a no-op
// on the last page
func (v *FeedbackView) NextPage(ctx context.Context) (*domain.RasterSurface, error) {
	return v.show(ctx, func(req domain.PageRenderState) (int, float64) {
		return min(req.Page+1, v.doc.PageCount), req.Scale
	})
}

// PrevPage goes back one page from the most recent request; it is a no-op
// on the first page
func (v *FeedbackView) PrevPage(ctx context.Context) (*domain.RasterSurface, error) {
	return v.show(ctx, func(req domain.PageRenderState) (int, float64) {
		return max(req.Page-1, 1), req.Scale
	})
}

// show derives the next request from the newest one and renders it. The
// request is recorded and its render token taken under v.mu, so the order
// of requests and the order of tokens always agree.
func (v *FeedbackView) show(ctx context.Context, next func(req domain.PageRenderState) (int, float64)) (*domain.RasterSurface, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, domain.ErrViewClosed
	}
	page, scale := next(v.requested)
	if page == v.requested.Page && scale == v.requested.Scale {
		if current := v.renderer.Current(); current != nil && current.State.Page == page && current.State.Scale == scale {
			v.mu.Unlock()
			return current, nil
		}
	}
	token, err := v.renderer.request(v.doc, page, scale)
	if err == nil {
		v.requested = domain.PageRenderState{Page: page, Scale: scale}
	}
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	opCtx, done := v.bind(ctx)
	defer done()

	surface, err := v.renderer.finish(opCtx, v.doc, token, page, scale)
	if err != nil {
		if !errors.Is(err, domain.ErrStaleRender) {
			v.logger.Warn("page render failed", "page", page, "scale", scale, "error", err)
		}
		return nil, err
	}
	return surface, nil
}

// Overlay returns the annotations to draw over the displayed page
func (v *FeedbackView) Overlay() []*domain.Annotation {
	return v.store.ByPage(v.State().Page)
}

// GeneralComments returns the annotations not tied to a page
func (v *FeedbackView) GeneralComments() []*domain.Annotation {
	return v.store.GeneralComments()
}

// Composer returns the view's submission state machine
func (v *FeedbackView) Composer() *Composer {
	return v.composer
}

// BeginInteraction starts capturing over a surface with the given viewport bounds
func (v *FeedbackView) BeginInteraction(bounds domain.Region) (*Interaction, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	if err := v.composer.BeginCapture(); err != nil {
		return nil, err
	}
	return NewInteraction(bounds), nil
}

// EndInteraction moves what in captured to the composer. With nothing
// captured the composer returns to idle.
func (v *FeedbackView) EndInteraction(in *Interaction) error {
	capture, ok := in.Capture(v.State().Page)
	if !ok {
		v.composer.Cancel()
		return fmt.Errorf("%w: nothing captured", domain.ErrValidation)
	}
	return v.composer.Compose(capture)
}

// ComposeGeneral starts a comment on the document as a whole
func (v *FeedbackView) ComposeGeneral() error {
	if err := v.checkOpen(); err != nil {
		return err
	}
	return v.composer.Compose(Capture{Kind: domain.KindGeneralComment})
}

// Submit sets the comment text and persists the composed annotation
func (v *FeedbackView) Submit(ctx context.Context, content string) (*domain.Annotation, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	if err := v.composer.SetContent(content); err != nil {
		return nil, err
	}
	opCtx, done := v.bind(ctx)
	defer done()
	return v.composer.Submit(opCtx, v.store.Create)
}

// Cancel abandons the annotation being composed
func (v *FeedbackView) Cancel() {
	v.composer.Cancel()
}

// Remove deletes an annotation authored by the current user
func (v *FeedbackView) Remove(ctx context.Context, id string) error {
	if err := v.checkOpen(); err != nil {
		return err
	}
	opCtx, done := v.bind(ctx)
	defer done()
	if err := v.store.Remove(opCtx, id); err != nil {
		v.logger.Warn("annotation delete failed", "annotation_id", id, "error", err)
		return err
	}
	return nil
}

// CanRemove reports whether userID may be offered the delete action
func (v *FeedbackView) CanRemove(id, userID string) bool {
	return v.store.CanRemove(id, userID)
}

// Close abandons every pending render and request and releases the document
func (v *FeedbackView) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	// invalidate before cancelling so a render woken by the cancellation
	// already finds its token stale
	v.renderer.Invalidate()
	v.store.Close()
	v.composer.Cancel()
	v.cancel()

	if err := v.renderer.Release(v.doc); err != nil {
		return fmt.Errorf("release document: %w", err)
	}
	v.logger.Info("feedback view closed")
	return nil
}

func (v *FeedbackView) checkOpen() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.ErrViewClosed
	}
	return nil
}
