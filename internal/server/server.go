// Package server exposes the stock query API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/screener/internal/app"
)

// Server wires the app's handlers to an http.Server
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server
}

// New builds the router and the http.Server; call Start to listen
func New(application *app.App) *Server {
	s := &Server{app: application}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.withMiddleware(s.router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second, // live price history can be slow
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.app.Config.Server.Host, strconv.Itoa(s.app.Config.Server.Port))
}

// Handler returns the routed handler with middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.app.Logger.Info().Str("address", s.Addr()).Msg("HTTP server listening")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server on %s: %w", s.Addr(), err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
