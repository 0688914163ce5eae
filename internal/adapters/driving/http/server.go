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

	"github.com/custodia-labs/sercha-assist/internal/core/ports/driving"
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
	maxUpload  int64
	logger     *slog.Logger
	auth       AuthConfig
	cors       []string
	metrics    *Metrics
	validator  *requestValidator

	// Services
	conversation driving.ConversationService
	chats        driving.ChatService
	documents    driving.DocumentService
	insights     driving.InsightService

	// Infrastructure
	sessions  Pinger // Redis health check
	knowledge Pinger // PostgreSQL health check
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	CORSOrigins    []string
	MaxUploadBytes int64
	Auth           AuthConfig
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: 10 << 20,
		Auth:           AuthConfig{DefaultUserID: DefaultUserID},
		Logger:         slog.Default(),
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	conversation driving.ConversationService,
	chats driving.ChatService,
	documents driving.DocumentService,
	insights driving.InsightService,
	sessions Pinger,
	knowledge Pinger, // can be nil
) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		maxUpload:    cfg.MaxUploadBytes,
		logger:       cfg.Logger,
		auth:         cfg.Auth,
		cors:         cfg.CORSOrigins,
		metrics:      NewMetrics("sercha_assist"),
		validator:    newRequestValidator(),
		conversation: conversation,
		chats:        chats,
		documents:    documents,
		insights:     insights,
		sessions:     sessions,
		knowledge:    knowledge,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	recovery := NewRecoveryMiddleware(s.logger)
	logging := NewLoggingMiddleware(s.logger)
	cors := NewCORSMiddleware(s.cors)
	return recovery.Handler(logging.Handler(cors.Handler(s.metrics.Middleware(s.router))))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}
	// The trailing-slash forms are subtree patterns; only the bare path is served
	exact := func(path string, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				writeError(w, http.StatusNotFound, "Not Found")
				return
			}
			h(w, r)
		}
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.Handle("GET /metrics", s.metrics.Handler())

	// Conversation
	s.router.Handle("POST /search", authed(s.handleSearch))

	// Chat sessions
	s.router.Handle("GET /chats", authed(s.handleListChats))
	s.router.Handle("GET /chats/", authed(exact("/chats/", s.handleListChats)))
	s.router.Handle("GET /chats/{chat_id}", authed(s.handleGetChat))
	s.router.Handle("DELETE /chats", authed(s.handleDeleteAllChats))
	s.router.Handle("DELETE /chats/", authed(exact("/chats/", s.handleDeleteAllChats)))
	s.router.Handle("DELETE /chats/{chat_id}", authed(s.handleDeleteChat))

	// Uploaded documents
	s.router.Handle("POST /upload", authed(s.handleUpload))
	s.router.Handle("POST /upload/", authed(exact("/upload/", s.handleUpload)))
	s.router.Handle("POST /upload/ask", authed(s.handleUploadAsk))
	s.router.Handle("DELETE /upload/{document_id}", authed(s.handleDeleteDocument))

	// Insight bank
	s.router.Handle("GET /insights", authed(s.handleListInsights))
	s.router.Handle("GET /insights/", authed(exact("/insights/", s.handleListInsights)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
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
