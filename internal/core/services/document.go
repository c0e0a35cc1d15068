package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
	"github.com/scriptroom/feedback-core/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService renders pages of session documents server-side.
// Parsed documents are kept in an LRU keyed by URL. An evicted document is
// released once the last render using it has finished.
type documentService struct {
	sessionStore driven.SessionStore
	renderer     *PageRenderer
	logger       *slog.Logger

	mu   sync.Mutex // guards docs and every openDocument; serializes loads so one URL is fetched once
	docs *lru.Cache
}

// openDocument is a cached document and the renders currently using it
type openDocument struct {
	doc     *domain.Document
	refs    int
	evicted bool
}

// DocumentServiceConfig holds dependencies for the document service
type DocumentServiceConfig struct {
	SessionStore driven.SessionStore
	Renderer     *PageRenderer
	Logger       *slog.Logger
	CacheSize    int // Parsed documents kept open (default: 16)
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) (driving.DocumentService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 16
	}

	s := &documentService{
		sessionStore: cfg.SessionStore,
		renderer:     cfg.Renderer,
		logger:       logger,
	}

	// runs inside docs.Add/Get with s.mu held
	docs, err := lru.NewWithEvict(size, func(key, value interface{}) {
		open := value.(*openDocument)
		open.evicted = true
		if open.refs == 0 {
			s.release(open)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}
	s.docs = docs
	return s, nil
}

// RenderPage rasterizes a page of the session's document and builds its text layer
func (s *documentService) RenderPage(ctx context.Context, sessionID string, page int, scale float64) (*domain.RasterSurface, error) {
	session, err := s.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	open, err := s.acquire(ctx, session.DocumentURL)
	if err != nil {
		return nil, err
	}
	defer s.done(open)

	return s.renderer.Render(ctx, open.doc, page, scale)
}

// acquire returns the cached document for url, loading it on a miss.
// Every successful acquire must be paired with done.
func (s *documentService) acquire(ctx context.Context, url string) (*openDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.docs.Get(url); ok {
		open := cached.(*openDocument)
		open.refs++
		return open, nil
	}

	doc, err := s.renderer.Load(ctx, url)
	if err != nil {
		s.logger.Error("document load failed", "url", url, "error", err)
		return nil, err
	}
	open := &openDocument{doc: doc, refs: 1}
	s.docs.Add(url, open)
	s.logger.Info("document loaded", "url", url, "pages", doc.PageCount)
	return open, nil
}

func (s *documentService) done(open *openDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open.refs--
	if open.refs == 0 && open.evicted {
		s.release(open)
	}
}

func (s *documentService) release(open *openDocument) {
	if err := s.renderer.Release(open.doc); err != nil {
		s.logger.Warn("failed to release document", "url", open.doc.URL, "error", err)
	}
}
