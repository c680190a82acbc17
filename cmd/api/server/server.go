package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// Server owns the HTTP listener of the API
type Server struct {
	HTTP   *http.Server
	Logger *zap.Logger
}

// New creates a new server instance serving handler on addr
func New(addr string, handler http.Handler, l *zap.Logger) *Server {
	return &Server{
		HTTP:   NewGinServer(addr, handler),
		Logger: l,
	}
}

// Listen binds the server address
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", s.HTTP.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.HTTP.Addr, err)
	}
	return lis, nil
}

// Serve accepts connections on lis until Shutdown is called.
// A graceful shutdown is not reported as an error.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Info("HTTP server running", zap.String("address", lis.Addr().String()))
	if err := s.HTTP.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves
func (s *Server) Start(ctx context.Context) error {
	lis, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("shutting down HTTP server...")
	if err := s.HTTP.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
