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

	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
	"github.com/custodia-labs/athena-core/internal/core/ports/driving"
	"github.com/custodia-labs/athena-core/internal/runtime"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// AIStatusProvider reports which AI services are configured.
type AIStatusProvider interface {
	Status() runtime.Status
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	origins    []string
	logger     *slog.Logger

	highlights driving.HighlightService
	aiStatus   AIStatusProvider

	// Infrastructure
	taskQueue   driven.TaskQueue
	db          Pinger // PostgreSQL health check (optional)
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string

	// WriteTimeout must cover a synchronous highlight run.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
		WriteTimeout:   10 * time.Minute,
	}
}

// NewServer creates a new HTTP server. taskQueue, db and redisClient may be nil.
func NewServer(
	cfg Config,
	highlights driving.HighlightService,
	aiStatus AIStatusProvider,
	taskQueue driven.TaskQueue,
	db Pinger,
	redisClient Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Minute
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		origins:     cfg.AllowedOrigins,
		logger:      logger,
		highlights:  highlights,
		aiStatus:    aiStatus,
		taskQueue:   taskQueue,
		db:          db,
		redisClient: redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.origins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	s.router.HandleFunc("POST /api/v1/highlights", s.handleCreateHighlight)
	s.router.HandleFunc("GET /api/v1/highlights/{id}", s.handleGetHighlight)

	// stats is registered before {id}; the mux prefers the literal segment
	s.router.HandleFunc("GET /api/v1/tasks/stats", s.handleQueueStats)
	s.router.HandleFunc("GET /api/v1/tasks/{id}", s.handleGetTask)

	s.router.HandleFunc("GET /api/v1/videos/{id}", s.handleGetVideo)
	s.router.HandleFunc("GET /api/v1/videos/{id}/segments", s.handleListSegments)
	s.router.HandleFunc("POST /api/v1/segment", s.handleSegmentVideo)

	s.router.HandleFunc("GET /api/v1/ai/status", s.handleAIStatus)
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

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
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
