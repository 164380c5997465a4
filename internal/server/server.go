// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// Server wraps the HTTP server with its router.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New creates a server listening on port.
func New(port string, h *Handlers, origins []string, debug bool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      NewRouter(h, origins, debug, logger),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger: logger,
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handlers, origins []string, debug bool, logger *zap.Logger) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	r.Use(RequestLogger(logger), gin.Recovery(), CORSMiddleware(origins))

	r.GET("/health", h.GetHealth)

	api := r.Group("/api")
	{
		api.GET("/overview", h.GetOverview)
		api.GET("/complaints", h.GetComplaints)
		api.GET("/complaints/:id", h.GetComplaint)
		api.POST("/complaints/:id/response", h.PostGenerateResponse)
		api.GET("/complaints/:id/response", h.GetResponse)
		api.PUT("/complaints/:id/response", h.PutResponse)
		api.GET("/matrix", h.GetMatrix)
		api.GET("/matrix.png", h.GetMatrixPNG)
		api.GET("/benchmark", h.GetBenchmark)
		api.GET("/responses", h.GetResponses)
		api.POST("/cache/invalidate", h.PostInvalidate)
	}
	return r
}

// Start begins listening for HTTP requests. It returns nil after Stop.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
