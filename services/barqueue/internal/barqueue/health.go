package barqueue

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1 for the bar queue service. It reports
// serving only between Start and Stop.
type HealthServer struct {
	server  *health.Server
	service string
}

func NewHealthServer(service string) *HealthServer {
	s := &HealthServer{server: health.NewServer(), service: service}
	s.server.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *HealthServer) RegisterGRPCService(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.server)
}

func (s *HealthServer) Start(context.Context) error {
	s.server.SetServingStatus(s.service, healthpb.HealthCheckResponse_SERVING)
	s.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return nil
}

func (s *HealthServer) Stop(context.Context) error {
	s.server.Shutdown()
	return nil
}

func (s *HealthServer) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.server.Check(ctx, &healthpb.HealthCheckRequest{Service: s.service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
