// Package grpcapi serves gRPC health checks and reflection for the service.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"consult-scribe-service/internal/observability"
	"consult-scribe-service/internal/observability/logging"
	"consult-scribe-service/internal/observability/metrics"
)

// ServiceExtraction is the health service name reporting whether
// transcripts can be turned into records.
const ServiceExtraction = "consult.scribe.Extraction"

// ReadyFunc reports whether extraction can be served.
type ReadyFunc func() error

// Server wraps a grpc.Server with the health service registered.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	ready  ReadyFunc
	log    zerolog.Logger
}

// New builds the gRPC server with metrics interceptors, health and reflection.
func New(m *metrics.Metrics, ready ReadyFunc) *Server {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	// Register gRPC health check service
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	s := &Server{
		grpc:   g,
		health: hs,
		ready:  ready,
		log:    logging.WithComponent("grpc"),
	}
	s.RefreshHealth()
	return s
}

// RefreshHealth publishes the current readiness to health watchers.
func (s *Server) RefreshHealth() {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.ready != nil {
		if err := s.ready(); err != nil {
			s.log.Warn().Err(err).Msg("Extraction not ready")
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceExtraction, status)
}

// Serve blocks until the listener fails or the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC server")
	return s.grpc.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.log.Info().Msg("Shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
