package barqueue

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewHealthServer("barqueue")

	status, err := s.Check(ctx)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status before start = %v, want NOT_SERVING", status)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	status, _ = s.Check(ctx)
	if status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status after start = %v, want SERVING", status)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	status, _ = s.Check(ctx)
	if status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after stop = %v, want NOT_SERVING", status)
	}
}
