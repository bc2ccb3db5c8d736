package api

import (
	"context"
	"net/http"
	"time"

	"github.com/factwise/schema-mapper/internal/config"
	"github.com/factwise/schema-mapper/internal/service/mapping"
)

// Server represents the API server.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates an API server around the mapping service.
func NewServer(cfg config.ServerConfig, svc *mapping.Service) *Server {
	handlers := NewHandlers(svc)
	router := SetupRoutes(handlers, cfg.AllowedOrigins)

	return &Server{
		config:  cfg,
		handler: router,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Upload and export endpoints move whole spreadsheets, so the
		// body timeouts stay generous.
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
