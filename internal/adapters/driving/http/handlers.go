package http

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/swaggo/swag"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

// maxBodyBytes bounds request bodies; drafts are small
const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// PageResponse is the text layer of a rendered page
// @Description Rendered page geometry and selectable text runs
type PageResponse struct {
	SessionID string                 `json:"session_id" example:"sess-1"`
	State     domain.PageRenderState `json:"state"`
	TextLayer []domain.TextRun       `json:"text_layer"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and Redis)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backing service is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness: database unreachable", "error", err)
			writeServiceError(w, domain.ErrServiceUnavailable)
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness: redis unreachable", "error", err)
			writeServiceError(w, domain.ErrServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwagger serves the registered OpenAPI document
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Session endpoints

// handleCreateSession godoc
// @Summary      Open a feedback session
// @Description  Opens a feedback session on a PDF document reachable over HTTP(S)
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.CreateSessionRequest  true  "Session details"
// @Success      201      {object}  domain.FeedbackSession
// @Failure      400      {object}  ErrorResponse  "Invalid request body or document URL"
// @Failure      403      {object}  ErrorResponse  "Caller may not annotate"
// @Router       /feedback-sessions [post]
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := s.sessionService.Create(r.Context(), GetAuthContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// handleListSessions godoc
// @Summary      List feedback sessions
// @Description  Lists sessions opened by the caller, newest first. Admins may pass owner.
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Param        owner  query     string  false  "Owner user ID (admin only)"
// @Success      200    {array}   domain.FeedbackSession
// @Failure      403    {object}  ErrorResponse  "Listing another user's sessions"
// @Router       /feedback-sessions [get]
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	ownerID := authCtx.UserID
	if owner := r.URL.Query().Get("owner"); owner != "" && owner != ownerID {
		if !authCtx.IsAdmin() {
			writeServiceError(w, domain.ErrForbidden)
			return
		}
		ownerID = owner
	}

	sessions, err := s.sessionService.List(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// handleGetSession godoc
// @Summary      Get a feedback session
// @Description  Returns session metadata and all of its annotations
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  domain.SessionWithAnnotations
// @Failure      404  {object}  ErrorResponse  "Session not found"
// @Router       /feedback-sessions/{id} [get]
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.sessionService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// Annotation endpoints

// handleListAnnotations godoc
// @Summary      List annotations
// @Description  Returns all annotations of a session in creation order
// @Tags         Annotations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {array}   domain.Annotation
// @Failure      404  {object}  ErrorResponse  "Session not found"
// @Router       /feedback-sessions/{id}/annotations [get]
func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	annotations, err := s.annotationService.ListSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, annotations)
}

// handleCreateAnnotation godoc
// @Summary      Create an annotation
// @Description  Persists a highlight, point comment or general comment authored by the caller
// @Tags         Annotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Session ID"
// @Param        request  body      domain.AnnotationDraft  true  "Annotation draft"
// @Success      201      {object}  domain.Annotation
// @Failure      400      {object}  ErrorResponse  "Draft violates its kind's invariants"
// @Failure      403      {object}  ErrorResponse  "Caller may not annotate"
// @Failure      404      {object}  ErrorResponse  "Session not found"
// @Router       /feedback-sessions/{id}/annotations [post]
func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var draft domain.AnnotationDraft
	if !decodeBody(w, r, &draft) {
		return
	}

	annotation, err := s.annotationService.Create(r.Context(), GetAuthContext(r.Context()), r.PathValue("id"), draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, annotation)
}

// handleDeleteAnnotation godoc
// @Summary      Delete an annotation
// @Description  Deletes an annotation. Only its author may delete it.
// @Tags         Annotations
// @Security     BearerAuth
// @Param        id   path  string  true  "Annotation ID"
// @Success      204  "Deleted"
// @Failure      403  {object}  ErrorResponse  "Caller is not the author"
// @Failure      404  {object}  ErrorResponse  "Annotation not found"
// @Router       /annotations/{id} [delete]
func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := s.annotationService.Delete(r.Context(), GetAuthContext(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Page endpoints

// handleGetPage godoc
// @Summary      Get a page's text layer
// @Description  Renders a page and returns its dimensions and positioned text runs
// @Tags         Pages
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Session ID"
// @Param        page   path      int     true   "Page number (1-indexed)"
// @Param        scale  query     number  false  "Render scale (default 1.5)"
// @Success      200    {object}  PageResponse
// @Failure      400    {object}  ErrorResponse  "Invalid page or scale"
// @Failure      404    {object}  ErrorResponse  "Session or page not found"
// @Failure      502    {object}  ErrorResponse  "Document could not be loaded"
// @Router       /feedback-sessions/{id}/pages/{page} [get]
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, scale, ok := pageParams(w, r)
	if !ok {
		return
	}

	surface, err := s.documentService.RenderPage(r.Context(), r.PathValue("id"), page, scale)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PageResponse{
		SessionID: r.PathValue("id"),
		State:     surface.State,
		TextLayer: surface.TextLayer,
	})
}

// handleGetPageRaster godoc
// @Summary      Get a rendered page image
// @Description  Renders a page and returns it as a PNG
// @Tags         Pages
// @Produce      png
// @Security     BearerAuth
// @Param        id     path      string  true   "Session ID"
// @Param        page   path      int     true   "Page number (1-indexed)"
// @Param        scale  query     number  false  "Render scale (default 1.5)"
// @Success      200    {file}    binary
// @Failure      400    {object}  ErrorResponse  "Invalid page or scale"
// @Failure      404    {object}  ErrorResponse  "Session or page not found"
// @Router       /feedback-sessions/{id}/pages/{page}/raster [get]
func (s *Server) handleGetPageRaster(w http.ResponseWriter, r *http.Request) {
	page, scale, ok := pageParams(w, r)
	if !ok {
		return
	}

	surface, err := s.documentService.RenderPage(r.Context(), r.PathValue("id"), page, scale)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Page-Width", strconv.Itoa(surface.State.Width))
	w.Header().Set("X-Page-Height", strconv.Itoa(surface.State.Height))
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, surface.Image); err != nil {
		s.logger.Warn("failed to encode page raster", "session_id", r.PathValue("id"), "page", page, "error", err)
	}
}

// Helper functions

func pageParams(w http.ResponseWriter, r *http.Request) (int, float64, bool) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "invalid page number")
		return 0, 0, false
	}

	scale := domain.DefaultScale
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err = strconv.ParseFloat(raw, 64)
		if err != nil || !domain.ValidScale(scale) || scale > 8 {
			writeError(w, http.StatusBadRequest, "invalid scale")
			return 0, 0, false
		}
	}
	return page, scale, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrPageOutOfRange):
		writeError(w, http.StatusNotFound, "page out of range")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrLoad):
		writeError(w, http.StatusBadGateway, "document could not be loaded")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrRender):
		writeError(w, http.StatusInternalServerError, "page could not be rendered")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
