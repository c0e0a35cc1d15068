package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scriptroom/feedback-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService       driving.AuthService
	sessionService    driving.SessionService
	annotationService driving.AnnotationService
	documentService   driving.DocumentService

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	sessionService driving.SessionService,
	annotationService driving.AnnotationService,
	documentService driving.DocumentService,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       authService,
		sessionService:    sessionService,
		annotationService: annotationService,
		documentService:   documentService,
		db:                db,
		redisClient:       redisClient,
	}

	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // page rasterization can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.authService)
	annotators := authMiddleware.RequireAnnotator

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)

	// Session endpoints
	s.router.Handle("POST /api/v1/feedback-sessions",
		authMiddleware.Authenticate(
			annotators(http.HandlerFunc(s.handleCreateSession))))
	s.router.Handle("GET /api/v1/feedback-sessions",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListSessions)))
	s.router.Handle("GET /api/v1/feedback-sessions/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetSession)))

	// Annotation endpoints
	s.router.Handle("GET /api/v1/feedback-sessions/{id}/annotations",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListAnnotations)))
	s.router.Handle("POST /api/v1/feedback-sessions/{id}/annotations",
		authMiddleware.Authenticate(
			annotators(http.HandlerFunc(s.handleCreateAnnotation))))
	s.router.Handle("DELETE /api/v1/annotations/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDeleteAnnotation)))

	// Page rendering endpoints
	s.router.Handle("GET /api/v1/feedback-sessions/{id}/pages/{page}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetPage)))
	s.router.Handle("GET /api/v1/feedback-sessions/{id}/pages/{page}/raster",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetPageRaster)))
}

// Start starts the HTTP server and blocks until ctx is cancelled or an
// interrupt arrives, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
