package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server serves the HTTP API on its own listener.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewServer binds addr and prepares handler for serving.
func NewServer(addr string, handler http.Handler) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		httpServer: &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		listener:   lis,
	}, nil
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains open connections until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}
