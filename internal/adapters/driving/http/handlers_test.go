package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/scriptroom/feedback-core/docs"
	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven/mocks"
	"github.com/scriptroom/feedback-core/internal/core/services"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type testEnv struct {
	server      *Server
	handler     http.Handler
	auth        *mocks.MockAuthAdapter
	sessions    *mocks.MockSessionStore
	annotations *mocks.MockAnnotationStore
	loader      *mocks.MockDocumentLoader
}

func newTestEnv(t *testing.T, db, redis Pinger) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:        mocks.NewMockAuthAdapter(),
		sessions:    mocks.NewMockSessionStore(),
		annotations: mocks.NewMockAnnotationStore(),
		loader:      mocks.NewMockDocumentLoader(),
	}

	env.loader.AddDocument("https://scripts.example.com/act1.pdf",
		domain.PageContent{
			Size:   domain.PageSize{Width: 612, Height: 792},
			Glyphs: []domain.GlyphRun{{Text: "INT. KITCHEN - NIGHT", X: 72, Y: 700, Width: 140, Height: 12}},
		},
		domain.PageContent{Size: domain.PageSize{Width: 612, Height: 792}},
	)

	docs, err := services.NewDocumentService(services.DocumentServiceConfig{
		SessionStore: env.sessions,
		Renderer:     services.NewPageRenderer(env.loader, &mocks.MockRasterizer{}),
	})
	require.NoError(t, err)

	env.server = NewServer(
		Config{Version: "test", AllowedOrigins: []string{"https://app.example.com"}},
		services.NewAuthService(env.auth),
		services.NewSessionService(services.SessionServiceConfig{
			SessionStore:    env.sessions,
			AnnotationStore: env.annotations,
		}),
		services.NewAnnotationService(services.AnnotationServiceConfig{
			AnnotationStore: env.annotations,
			SessionStore:    env.sessions,
		}),
		docs,
		db,
		redis,
	)
	env.handler = env.server.Handler()

	require.NoError(t, env.sessions.Save(context.Background(), &domain.FeedbackSession{
		ID:          "sess-1",
		DocumentURL: "https://scripts.example.com/act1.pdf",
		Title:       "Act One",
		OwnerID:     "writer-1",
		CreatedAt:   time.Now().UTC(),
	}))
	return env
}

func (e *testEnv) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := e.auth.GenerateToken(&domain.TokenClaims{
		UserID:    userID,
		Role:      role,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, stubPinger{}, nil)

	rec := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[StatusResponse](t, rec).Status)

	rec = env.do(t, "GET", "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/version", "", nil)
	assert.Equal(t, "test", decode[VersionResponse](t, rec).Version)
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, "GET", "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Swagger  string                    `json:"swagger"`
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths["/feedback-sessions/{id}/annotations"], "post")
	assert.Contains(t, doc.Paths["/annotations/{id}"], "delete")
}

func TestReady_BackendDown(t *testing.T) {
	down := stubPinger{err: errors.New("connection refused")}

	env := newTestEnv(t, down, nil)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, "GET", "/ready", "", nil).Code)

	env = newTestEnv(t, stubPinger{}, down)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, "GET", "/ready", "", nil).Code)
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	writer := env.token(t, "writer-1", domain.RoleMember)

	rec := env.do(t, "POST", "/api/v1/feedback-sessions", writer, domain.CreateSessionRequest{
		DocumentURL: "https://scripts.example.com/act2.pdf",
		Title:       "Act Two",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.FeedbackSession](t, rec)
	assert.Equal(t, "writer-1", created.OwnerID)
	assert.NotEmpty(t, created.ID)

	rec = env.do(t, "POST", "/api/v1/feedback-sessions", writer, domain.CreateSessionRequest{DocumentURL: "ftp://nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions", writer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.FeedbackSession](t, rec), 2)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions/sess-1", writer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[domain.SessionWithAnnotations](t, rec)
	assert.Equal(t, "Act One", snapshot.Session.Title)
	assert.Empty(t, snapshot.Annotations)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions/missing", writer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_Authorization(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	viewer := env.token(t, "viewer-1", domain.RoleViewer)
	admin := env.token(t, "admin-1", domain.RoleAdmin)

	rec := env.do(t, "GET", "/api/v1/feedback-sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/v1/feedback-sessions", viewer, domain.CreateSessionRequest{
		DocumentURL: "https://scripts.example.com/act2.pdf",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions?owner=writer-1", viewer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions?owner=writer-1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.FeedbackSession](t, rec), 1)
}

func TestAnnotations(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	writer := env.token(t, "writer-1", domain.RoleMember)
	director := env.token(t, "director-1", domain.RoleMember)

	highlight := domain.AnnotationDraft{
		Kind:            domain.KindHighlight,
		PageNumber:      domain.PageNumber(2),
		Content:         "fix pacing here",
		HighlightedText: "She waits by the door.",
		Regions: []domain.Region{
			{X: 10, Y: 20, Width: 50, Height: 14},
			{X: 10, Y: 34, Width: 30, Height: 14},
		},
	}
	rec := env.do(t, "POST", "/api/v1/feedback-sessions/sess-1/annotations", writer, highlight)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Annotation](t, rec)
	assert.Equal(t, domain.KindHighlight, created.Kind)
	assert.Equal(t, highlight.Regions, created.Regions)
	assert.Equal(t, "writer-1", created.AuthorID)

	point := domain.AnnotationDraft{
		Kind:       domain.KindPointComment,
		PageNumber: domain.PageNumber(1),
		Content:    "cut this beat",
		Regions:    []domain.Region{{X: 90, Y: 140, Width: 20, Height: 20}},
	}
	rec = env.do(t, "POST", "/api/v1/feedback-sessions/sess-1/annotations", director, point)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, &domain.Point{X: 90, Y: 140}, decode[domain.Annotation](t, rec).Position)

	rec = env.do(t, "POST", "/api/v1/feedback-sessions/sess-1/annotations", writer, domain.AnnotationDraft{
		Kind:    domain.KindHighlight,
		Content: "no regions",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/v1/feedback-sessions/missing/annotations", writer, point)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions/sess-1/annotations", writer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Annotation](t, rec), 2)

	// Only the author may delete, and a rejected delete changes nothing
	rec = env.do(t, "DELETE", "/api/v1/annotations/"+created.ID, director, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 2, env.annotations.Count())

	rec = env.do(t, "DELETE", "/api/v1/annotations/"+created.ID, writer, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, env.annotations.Count())

	rec = env.do(t, "DELETE", "/api/v1/annotations/"+created.ID, writer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnnotations_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	writer := env.token(t, "writer-1", domain.RoleMember)

	req := httptest.NewRequest("POST", "/api/v1/feedback-sessions/sess-1/annotations", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+writer)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[ErrorResponse](t, rec).Error)
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	writer := env.token(t, "writer-1", domain.RoleMember)

	rec := env.do(t, "GET", "/api/v1/feedback-sessions/sess-1/pages/1", writer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[PageResponse](t, rec)
	assert.Equal(t, domain.PageRenderState{Page: 1, Scale: 1.5, Width: 918, Height: 1188}, page.State)
	require.Len(t, page.TextLayer, 1)
	assert.Equal(t, "INT. KITCHEN - NIGHT", page.TextLayer[0].Text)

	rec = env.do(t, "GET", "/api/v1/feedback-sessions/sess-1/pages/2/raster?scale=1", writer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 612, img.Bounds().Dx())
	assert.Equal(t, 792, img.Bounds().Dy())

	// The document is parsed once and reused across requests
	assert.Equal(t, 1, env.loader.Loads())
}

func TestPages_Errors(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	writer := env.token(t, "writer-1", domain.RoleMember)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"page zero", "/api/v1/feedback-sessions/sess-1/pages/0", http.StatusBadRequest},
		{"page not a number", "/api/v1/feedback-sessions/sess-1/pages/two", http.StatusBadRequest},
		{"negative scale", "/api/v1/feedback-sessions/sess-1/pages/1?scale=-1", http.StatusBadRequest},
		{"huge scale", "/api/v1/feedback-sessions/sess-1/pages/1?scale=100", http.StatusBadRequest},
		{"past last page", "/api/v1/feedback-sessions/sess-1/pages/3", http.StatusNotFound},
		{"unknown session", "/api/v1/feedback-sessions/missing/pages/1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "GET", tt.path, writer, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestPages_DocumentUnavailable(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	writer := env.token(t, "writer-1", domain.RoleMember)
	require.NoError(t, env.sessions.Save(context.Background(), &domain.FeedbackSession{
		ID:          "sess-broken",
		DocumentURL: "https://scripts.example.com/missing.pdf",
		OwnerID:     "writer-1",
	}))

	rec := env.do(t, "GET", "/api/v1/feedback-sessions/sess-broken/pages/1", writer, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrValidation, http.StatusBadRequest},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrLoad, http.StatusBadGateway},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{domain.ErrRender, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
