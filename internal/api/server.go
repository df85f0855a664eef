package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/aegisops/aegis/internal/config"
)

const maxRecvMsgSize = 8 << 20

// Server owns the gRPC listener, the ControlLoop registration and the
// standard health service.
type Server struct {
	logger   *slog.Logger
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
}

// NewServer binds cfg.GRPCAddress and registers service, health and reflection.
// Every unary and stream call is instrumented with Prometheus interceptors.
func NewServer(logger *slog.Logger, cfg config.ServerConfig, service ControlLoopServer, opts ...grpc.ServerOption) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("control loop service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	base := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	srv := grpc.NewServer(append(base, opts...)...)
	RegisterControlLoopServer(srv, service)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	grpc_prometheus.Register(srv)

	s := &Server{logger: logger, grpc: srv, health: hs, listener: lis}
	s.SetServing(true)
	return s, nil
}

// SetServing flips the health status reported for the whole server and for
// the ControlLoop service.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ControlLoopServiceName, status)
}

// Start serves until Shutdown. A server stopped through Shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("gRPC server listening", slog.String("address", s.Address()))
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown reports NOT_SERVING, then drains in-flight calls until ctx
// expires and forces the remaining connections closed.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("gRPC drain timed out, closing connections")
		s.grpc.Stop()
	}
}

// Address returns the bound listener address.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}
