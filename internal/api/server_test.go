package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aegisops/aegis/internal/config"
)

type statsOnlyServer struct {
	UnimplementedControlLoopServer
}

func (statsOnlyServer) GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"decisions_made": 3})
}

func TestServerServesControlLoopAndHealth(t *testing.T) {
	srv, err := NewServer(nil, config.ServerConfig{GRPCAddress: "127.0.0.1:0"}, statsOnlyServer{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewControlLoopClient(conn)
	stats, err := client.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if got := stats.Fields["decisions_made"].GetNumberValue(); got != 3 {
		t.Fatalf("expected 3 decisions, got %v", got)
	}

	_, err = client.Heal(ctx, &structpb.Struct{})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected unimplemented, got %v", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ControlLoopServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %v", resp.GetStatus())
	}

	srv.SetServing(false)
	resp, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected not serving, got %v", resp.GetStatus())
	}
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(nil, config.ServerConfig{GRPCAddress: "127.0.0.1:0"}, nil); err == nil {
		t.Fatalf("expected error without service")
	}
}
