package server

import (
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"zipstream/pkg/config"
	"zipstream/pkg/logger"
)

// ServiceName is the health service name reported next to the server-wide
// empty name.
const ServiceName = "zipstream.Archive"

const stopGracePeriod = 5 * time.Second

// AdminServer exposes the standard gRPC health service.
type AdminServer struct {
	cfg        *config.Config
	grpcServer *grpc.Server
	health     *health.Server
	logger     *logger.Logger
}

func NewAdminServer(cfg *config.Config) *AdminServer {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	a := &AdminServer{
		cfg:        cfg,
		grpcServer: gs,
		health:     hs,
		logger:     logger.WithField("component", "admin-server"),
	}
	a.SetServing(false)
	return a
}

// SetServing flips both health entries at once.
func (a *AdminServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", status)
	a.health.SetServingStatus(ServiceName, status)
	a.logger.Debug("health status changed", "status", status.String())
}

func (a *AdminServer) Listen() (net.Listener, error) {
	addr := a.cfg.GetAdminAddress()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		a.logger.Error("failed to create listener", "address", addr, "error", err)
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return lis, nil
}

// Serve blocks until Stop.
func (a *AdminServer) Serve(lis net.Listener) error {
	a.logger.Info("starting admin gRPC server", "address", lis.Addr().String())
	if err := a.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		a.logger.Error("admin gRPC server stopped with error", "error", err)
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops the gRPC server. Open
// Watch streams get stopGracePeriod to hang up before they are cut.
func (a *AdminServer) Stop() {
	a.health.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.grpcServer.GracefulStop()
	}()

	select {
	case <-done:
		a.logger.Info("admin gRPC server stopped gracefully")
	case <-time.After(stopGracePeriod):
		a.logger.Warn("admin shutdown timeout exceeded, forcing stop")
		a.grpcServer.Stop()
		<-done
	}
}
