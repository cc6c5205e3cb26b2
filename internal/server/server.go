package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/config"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/ocr"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/redact"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/security"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/storage"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/websocket"
	"go.uber.org/zap"
)

// Server is the HTTP boundary of the redaction service.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	engine  *redact.Engine
	ocrEng  ocr.Engine
	store   *storage.Store
	limiter *security.RateLimiter
	router  *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
}

// New creates a server instance. eng may be nil when OCR is disabled;
// scanned documents then degrade to text-layer redaction.
func New(cfg *config.Config, log *logger.Logger, eng ocr.Engine) (*Server, error) {
	store, err := storage.New(cfg.Storage.UploadDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}
	if cfg.Storage.CleanupOnStart {
		store.Cleanup()
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastRedactions:  true,
		BroadcastSystem:      true,
		BroadcastConnections: true,
		AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
	}, log.WithComponent("websocket").Logger)

	router := mux.NewRouter()

	server := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		engine:  redact.NewEngine(log, eng),
		ocrEng:  eng,
		store:   store,
		limiter: security.NewRateLimiter(&cfg.Security),
		router:  router,
		wsHub:   wsHub,
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for live redaction events
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// API endpoints. OPTIONS is registered on every route so CORS
	// preflight reaches the middleware instead of a bare 405.
	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.corsMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/redact", s.handleRedact).Methods("POST", "OPTIONS")
	api.HandleFunc("/redact-info", s.handleRedactInfo).Methods("GET", "OPTIONS")
	api.HandleFunc("/upload", s.handleUpload).Methods("POST", "OPTIONS")
	api.HandleFunc("/decrypt", s.handleDecrypt).Methods("POST", "OPTIONS")
	api.HandleFunc("/extract-text/{fileID}/{filename}", s.handleExtractText).Methods("GET", "OPTIONS")
	api.HandleFunc("/file/{fileID}/{filename}", s.handleFileGet).Methods("GET", "OPTIONS")
	api.HandleFunc("/file/{fileID}/{filename}", s.handleFileDelete).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting SafeDocs server",
		zap.Int("port", s.config.Server.Port),
		zap.String("upload_dir", s.store.Dir()),
		zap.Bool("ocr_available", s.ocrAvailable()),
	)

	// Start WebSocket hub and rate limiter housekeeping
	go s.wsHub.Run()
	s.limiter.StartCleanupRoutine()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SafeDocs server")
	s.limiter.Stop()
	return s.server.Shutdown(ctx)
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleWebSocket handles WebSocket connections for event subscribers
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

func (s *Server) ocrAvailable() bool {
	return s.ocrEng != nil && s.ocrEng.Available()
}

func (s *Server) maxUploadBytes() int64 {
	return s.config.Server.MaxUploadSizeMB * 1024 * 1024
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"safedocs",
		"version":"1.0.0",
		"ocr_available":%t,
		"default_level":"%s",
		"websocket_clients":%d
	}`, s.ocrAvailable(), s.config.Redaction.DefaultLevel, s.wsHub.GetStats().ActiveConnections)
}
