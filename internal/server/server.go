// Package server implements the netops HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/yami-59/network-ops-demo/internal/ctxutil"
	"github.com/yami-59/network-ops-demo/internal/ratelimit"
	"github.com/yami-59/network-ops-demo/internal/service/assistant"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
)

// Server is the netops HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds the dependencies and settings for New.
// Limiter, MCPServer and OpenAPISpec may be nil.
type ServerConfig struct {
	Operations *operations.Service
	Assistant  *assistant.Gateway
	Store      StoreStatus
	Logger     *slog.Logger

	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// New creates a server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Operations:          cfg.Operations,
		Assistant:           cfg.Assistant,
		Store:               cfg.Store,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	askRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, func(r *http.Request) string {
		return ctxutil.RequestIDFromContext(r.Context())
	}, cfg.Logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/catalog", h.HandleCatalog)

	mux.HandleFunc("POST /v1/operations", h.HandleCreateOperation)
	mux.HandleFunc("GET /v1/operations", h.HandleListOperations)
	mux.HandleFunc("GET /v1/operations/{op_id}", h.HandleGetOperation)
	mux.HandleFunc("GET /v1/operations/{op_id}/history", h.HandleOperationHistory)
	mux.HandleFunc("POST /v1/operations/{op_id}/transitions", h.HandleTransition)
	mux.HandleFunc("GET /v1/operations/{op_id}/verify", h.HandleVerifyOperation)
	mux.HandleFunc("GET /v1/planning", h.HandlePlanning)

	mux.Handle("POST /v1/assistant", askRL(http.HandlerFunc(h.HandleAsk)))

	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Outermost first: request ID → security headers → tracing → logging → recovery.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
