package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the registration API reports under; the empty name
// covers the whole server.
const ServiceName = "conclave.registration.v1.RegistrationService"

// NewHealthServer starts out NOT_SERVING until the first probe succeeds.
func NewHealthServer() *health.Server {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv
}

func Register(server *grpc.Server, healthServer *health.Server) {
	healthpb.RegisterHealthServer(server, healthServer)
}
