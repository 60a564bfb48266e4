// Package server exposes conversation sessions over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/logging"
)

// Server is the HTTP API
type Server struct {
	registry *Registry
	model    interfaces.ChatModel
	logger   logging.Logger
	engine   *gin.Engine
}

// New creates the server and its routes. model is only used for health
// reporting; sessions get theirs from the registry factory.
func New(registry *Registry, model interfaces.ChatModel, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		registry: registry,
		model:    model,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/sessions", s.createSession)
		v1.DELETE("/sessions/:id", s.deleteSession)
		v1.POST("/sessions/:id/messages", s.sendMessage)
		v1.POST("/sessions/:id/stream", s.streamMessage)
		v1.GET("/sessions/:id/history", s.getHistory)
		v1.DELETE("/sessions/:id/history", s.clearHistory)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting server", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info(ctx, "Shutting down server", nil)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "HTTP request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
