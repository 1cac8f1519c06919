package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/config"
	"github.com/callveil/callveil/internal/events"
	"github.com/callveil/callveil/internal/logger"
	"github.com/callveil/callveil/internal/redact"
	"github.com/callveil/callveil/internal/vaultstore"
)

// Version is set at build time
var Version = "dev"

// Server exposes masking and rehydration over HTTP. Mask responses include
// the vault mapping so the caller can rehydrate later; callers inside the
// operator's network are the only intended clients.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	engine     *redact.Engine
	vaultStore *vaultstore.Store
	router     *mux.Router
	server     *http.Server
	wsHub      *events.Hub
}

// New creates a new server instance. vaultStore may be nil when Redis
// persistence is disabled.
func New(cfg *config.Config, log *logger.Logger, engine *redact.Engine, vaultStore *vaultstore.Store) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("redaction engine is required")
	}

	wsHub := events.NewHub(&events.HubConfig{
		BroadcastDetections:  cfg.WebSocket.Events.BroadcastDetections,
		BroadcastProgress:    cfg.WebSocket.Events.BroadcastProgress,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
	}, log.WithComponent("events").Logger)

	router := mux.NewRouter()

	server := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		engine:     engine,
		vaultStore: vaultStore,
		router:     router,
		wsHub:      wsHub,
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
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.config.Server.RateLimit.Enabled {
		api.Use(s.rateLimitMiddleware)
	}
	api.HandleFunc("/mask", s.handleMask).Methods("POST")
	api.HandleFunc("/rehydrate", s.handleRehydrate).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting CallVeil server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("vault_store", s.vaultStore != nil),
		zap.Bool("websocket", s.config.WebSocket.Enabled),
	)

	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping CallVeil server")
	return s.server.Shutdown(ctx)
}

// handleWebSocket handles WebSocket connections for event streaming
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *events.Hub {
	return s.wsHub
}
