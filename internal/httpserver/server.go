// Package httpserver runs the engine's HTTP listener with a graceful
// shutdown path.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/neopad/engine/internal/config"
	"github.com/neopad/engine/pkg/logger"
)

// Server wraps http.Server with the engine's lifecycle conventions.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// New builds a server for the given handler.
func New(cfg config.ServerConfig, log *logger.Logger, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving requests until Shutdown is called or the listener
// fails. A closed server returns nil.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server shutting down")
	return s.srv.Shutdown(ctx)
}
