package mocks

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Ensure mocks implement the document ports
var (
	_ driven.DocumentLoader = (*MockDocumentLoader)(nil)
	_ driven.Rasterizer     = (*MockRasterizer)(nil)
)

// MockDocumentLoader serves in-memory pages keyed by URL
type MockDocumentLoader struct {
	mu    sync.Mutex
	docs  map[string][]domain.PageContent
	loads int

	// Optional hooks
	LoadFn        func(ctx context.Context, url string) (*domain.Document, error)
	PageContentFn func(ctx context.Context, doc *domain.Document, page int) (*domain.PageContent, error)

	Released []string
}

// NewMockDocumentLoader creates a new MockDocumentLoader
func NewMockDocumentLoader() *MockDocumentLoader {
	return &MockDocumentLoader{
		docs: make(map[string][]domain.PageContent),
	}
}

// AddDocument registers the pages served for url
func (m *MockDocumentLoader) AddDocument(url string, pages ...domain.PageContent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[url] = pages
}

func (m *MockDocumentLoader) Load(ctx context.Context, url string) (*domain.Document, error) {
	if m.LoadFn != nil {
		return m.LoadFn(ctx, url)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	pages, ok := m.docs[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no such document", domain.ErrLoad, url)
	}
	return &domain.Document{URL: url, PageCount: len(pages)}, nil
}

func (m *MockDocumentLoader) PageContent(ctx context.Context, doc *domain.Document, page int) (*domain.PageContent, error) {
	if m.PageContentFn != nil {
		return m.PageContentFn(ctx, doc, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pages := m.docs[doc.URL]
	if page < 1 || page > len(pages) {
		return nil, domain.ErrPageOutOfRange
	}
	content := pages[page-1]
	return &content, nil
}

func (m *MockDocumentLoader) Release(doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, doc.URL)
	return nil
}

// ReleasedURLs returns a copy of Released
func (m *MockDocumentLoader) ReleasedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Released...)
}

// Loads returns how many times Load hit the in-memory table
func (m *MockDocumentLoader) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// MockRasterizer returns blank images of the scaled page size
type MockRasterizer struct {
	Err error
}

func (m *MockRasterizer) Rasterize(ctx context.Context, doc *domain.Document, page int, content *domain.PageContent, scale float64) (*image.RGBA, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	state := domain.NewPageRenderState(page, scale, content.Size)
	return image.NewRGBA(image.Rect(0, 0, state.Width, state.Height)), nil
}
