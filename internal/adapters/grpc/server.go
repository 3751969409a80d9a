package grpc

import (
	"context"

	"github.com/viralforge/revenue-ledger/internal/application"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type RevenueInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewRevenueInternalServer(service *application.Service) *RevenueInternalServer {
	return &RevenueInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *RevenueInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *RevenueInternalServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	_ = ctx
	_ = req
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (s *RevenueInternalServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	_ = req
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
}
