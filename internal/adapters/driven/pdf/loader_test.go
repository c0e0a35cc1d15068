package pdf

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/tabula/text"
	seehuhn "seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// letterPDF builds an n-page US Letter document with a filled box on each page
func letterPDF(t *testing.T, n int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	doc, err := document.WriteMultiPage(buf, &seehuhn.Rectangle{URx: 612, URy: 792}, seehuhn.V1_4, nil)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		page := doc.AddPage()
		page.Rectangle(72, 700-float64(i)*20, 200, 12)
		page.Fill()
		require.NoError(t, page.Close())
	}
	require.NoError(t, doc.Close())
	return buf.Bytes()
}

func initForTest(t *testing.T, cfg Config) {
	t.Helper()
	cfg.TempDir = t.TempDir()
	require.NoError(t, Init(cfg))
	t.Cleanup(func() { _ = Shutdown() })
}

func serve(t *testing.T, body []byte, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitShutdown(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), "http://localhost/none.pdf")
	assert.True(t, errors.Is(err, domain.ErrLoad))
	assert.True(t, errors.Is(err, ErrNotInitialized))

	initForTest(t, DefaultConfig())
	assert.Equal(t, ErrAlreadyInitialized, Init(DefaultConfig()))

	rt, err := current()
	require.NoError(t, err)
	workDir := rt.workDir

	require.NoError(t, Shutdown())
	_, err = os.Stat(workDir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Shutdown())
}

func TestLoader_LoadAndRelease(t *testing.T) {
	initForTest(t, DefaultConfig())
	srv := serve(t, letterPDF(t, 3), http.StatusOK)
	loader := NewLoader(nil)
	ctx := context.Background()

	doc, err := loader.Load(ctx, srv.URL+"/act1.pdf")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.PageCount)

	content, err := loader.PageContent(ctx, doc, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.PageSize{Width: 612, Height: 792}, content.Size)

	_, err = loader.PageContent(ctx, doc, 4)
	assert.Equal(t, domain.ErrPageOutOfRange, err)

	path := doc.Handle.(*handle).path
	require.NoError(t, loader.Release(doc))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoader_LoadFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBytes = 1024
	initForTest(t, cfg)
	loader := NewLoader(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		srv  *httptest.Server
	}{
		{"not found", serve(t, []byte("missing"), http.StatusNotFound)},
		{"not a pdf", serve(t, []byte("<html>hello</html>"), http.StatusOK)},
		{"too large", serve(t, bytes.Repeat([]byte("%"), 4096), http.StatusOK)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(ctx, tt.srv.URL+"/doc.pdf")
			assert.True(t, errors.Is(err, domain.ErrLoad), "got %v", err)
		})
	}

	rt, err := current()
	require.NoError(t, err)
	entries, err := os.ReadDir(rt.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed loads must not leave spooled files")
}

func TestGlyphRuns(t *testing.T) {
	fragments := []text.TextFragment{
		{Text: "INT. KITCHEN", X: 82, Y: 710, Width: 80, Height: 12, FontSize: 12},
		{Text: "NIGHT", X: 170, Y: 710, Width: 40, FontSize: 11},
	}
	box := [4]float64{10, 10, 622, 802}

	got := glyphRuns(fragments, box)
	want := []domain.GlyphRun{
		{Text: "INT. KITCHEN", X: 72, Y: 700, Width: 80, Height: 12},
		{Text: "NIGHT", X: 160, Y: 700, Width: 40, Height: 11},
	}
	assert.Equal(t, want, got)
}
