package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"
	seehuhn "seehuhn.de/go/pdf"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader fetches PDFs over HTTP, spools them to the work dir and parses
// them with tabula.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new Loader. Init must have been called.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// handle is what a loaded domain.Document carries: a tabula reader for
// text extraction and a seehuhn reader for painting. Both keep a single
// file cursor, so page access is serialized. Released handles have nil readers.
type handle struct {
	mu     sync.Mutex
	path   string
	reader *reader.Reader
	pages  *seehuhn.Reader
}

// Load fetches and parses the document at url. Errors wrap domain.ErrLoad.
func (l *Loader) Load(ctx context.Context, url string) (*domain.Document, error) {
	rt, err := current()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}

	path, err := l.fetch(ctx, rt, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrLoad, url, err)
	}

	r, err := reader.Open(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s: parse: %w", domain.ErrLoad, url, err)
	}

	count, err := r.PageCount()
	if err == nil && count < 1 {
		err = errors.New("document has no pages")
	}
	if err != nil {
		_ = r.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s: page tree: %w", domain.ErrLoad, url, err)
	}

	painter, err := openPages(path)
	if err != nil {
		_ = r.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s: parse for rendering: %w", domain.ErrLoad, url, err)
	}

	l.logger.Debug("pdf loaded", "url", url, "pages", count, "version", r.Version().String())
	return &domain.Document{
		URL:       url,
		PageCount: count,
		Handle:    &handle{path: path, reader: r, pages: painter},
	}, nil
}

func openPages(path string) (*seehuhn.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	pr, err := seehuhn.NewReader(f, nil)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return pr, nil
}

func (l *Loader) fetch(ctx context.Context, rt *renderState, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rt.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := rt.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	if resp.ContentLength > rt.cfg.MaxBytes {
		return "", fmt.Errorf("document is %d bytes, limit is %d", resp.ContentLength, rt.cfg.MaxBytes)
	}

	f, err := os.CreateTemp(rt.workDir, "doc-*.pdf")
	if err != nil {
		return "", fmt.Errorf("spool: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, rt.cfg.MaxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > rt.cfg.MaxBytes {
		err = fmt.Errorf("document exceeds %d bytes", rt.cfg.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// PageContent reads the MediaBox and text fragments of page (1-indexed)
func (l *Loader) PageContent(ctx context.Context, doc *domain.Document, page int) (*domain.PageContent, error) {
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
	if h.reader == nil {
		return nil, fmt.Errorf("document %s is released", doc.URL)
	}

	p, err := h.reader.GetPage(page - 1)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", page, err)
	}
	box, err := mediaBox(p)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	fragments, err := h.reader.ExtractTextFragments(p)
	if err != nil {
		return nil, fmt.Errorf("extract text on page %d: %w", page, err)
	}

	return &domain.PageContent{
		Size:   domain.PageSize{Width: box[2] - box[0], Height: box[3] - box[1]},
		Glyphs: glyphRuns(fragments, box),
	}, nil
}

// Release closes both readers and deletes the spooled file. Releasing
// twice is a no-op.
func (l *Loader) Release(doc *domain.Document) error {
	h, ok := doc.Handle.(*handle)
	if !ok || h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reader == nil {
		return nil
	}
	err := h.reader.Close()
	if pErr := h.pages.Close(); pErr != nil && err == nil {
		err = pErr
	}
	h.reader, h.pages = nil, nil
	if rmErr := os.Remove(h.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// mediaBox returns the normalized [llx lly urx ury] box of a page
func mediaBox(p *pages.Page) ([4]float64, error) {
	raw, err := p.MediaBox()
	if err != nil {
		return [4]float64{}, fmt.Errorf("media box: %w", err)
	}
	if len(raw) != 4 {
		return [4]float64{}, fmt.Errorf("media box has %d values", len(raw))
	}
	box := [4]float64{raw[0], raw[1], raw[2], raw[3]}
	if box[0] > box[2] {
		box[0], box[2] = box[2], box[0]
	}
	if box[1] > box[3] {
		box[1], box[3] = box[3], box[1]
	}
	if box[2]-box[0] <= 0 || box[3]-box[1] <= 0 {
		return [4]float64{}, fmt.Errorf("empty media box %v", raw)
	}
	return box, nil
}

// glyphRuns moves fragments into the box's frame so that (0,0) is its
// lower-left corner. Height falls back to the font size for fragments
// extracted without glyph metrics.
func glyphRuns(fragments []text.TextFragment, box [4]float64) []domain.GlyphRun {
	runs := make([]domain.GlyphRun, 0, len(fragments))
	for _, f := range fragments {
		height := f.Height
		if height <= 0 {
			height = f.FontSize
		}
		runs = append(runs, domain.GlyphRun{
			Text:   f.Text,
			X:      f.X - box[0],
			Y:      f.Y - box[1],
			Width:  f.Width,
			Height: height,
		})
	}
	return runs
}
