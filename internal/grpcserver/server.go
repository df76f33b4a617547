// Package grpcserver exposes the gRPC health service for orchestrators.
package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messaging-service/internal/observability"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server wraps a grpc.Server with the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{grpc: srv, health: hs, logger: logger.Named("grpc")}
}

// SetServing flips the overall health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// CheckDependency updates the health status from a dependency ping.
func (s *Server) CheckDependency(ctx context.Context, p Pinger) {
	if p == nil {
		s.SetServing(true)
		return
	}
	if err := p.PingContext(ctx); err != nil {
		s.logger.Warn("dependency unhealthy", zap.Error(err))
		s.SetServing(false)
		return
	}
	s.SetServing(true)
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
