// Package server runs the loopback HTTP server that receives the OAuth redirect.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// defaultShutdownTimeout is the maximum time to wait for server shutdown
	defaultShutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Server serves the auth routes on the configured loopback address.
type Server struct {
	config *config.ServerConfig
	auth   *auth.Service
}

// NewServer creates a new loopback server for the auth service.
func NewServer(cfg *config.ServerConfig, authService *auth.Service) *Server {
	return &Server{
		config: cfg,
		auth:   authService,
	}
}

// BaseURL returns the URL the browser is sent to.
func (s *Server) BaseURL() string {
	return "http://" + s.config.Addr()
}

// Listen binds the configured address so a port conflict is reported before
// the browser is opened.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return ln, nil
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.auth.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Channel for server errors
	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting server", zap.String("address", ln.Addr().String()))

		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		logger.Info("Shutting down server", zap.Duration("timeout", timeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// Module provides the loopback server
var Module = fx.Module("server",
	fx.Provide(
		NewServer,
	),
)
