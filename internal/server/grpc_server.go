package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/oggyb/pupmatch/internal/config"
	"github.com/oggyb/pupmatch/internal/logger"
	"github.com/oggyb/pupmatch/internal/rpc"
)

// NewGRPCServer builds a gRPC server with the identity and logging
// interceptors, health and reflection, and registers all provided services.
func NewGRPCServer(log *slog.Logger, registrars ...Registrar) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			rpc.IdentityInterceptor(),
			loggingInterceptor(log),
		),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer, hs
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("rpc failed", "method", info.FullMethod, "code", status.Code(err).String(), "err", err, logger.Since(start))
		} else {
			log.Debug("rpc", "method", info.FullMethod, logger.Since(start))
		}
		return resp, err
	}
}

// GRPCService runs a gRPC server as a supervised service.
type GRPCService struct {
	addr   string
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewGRPCService(cfg *config.Config, log *slog.Logger, registrars ...Registrar) *GRPCService {
	srv, hs := NewGRPCServer(log, registrars...)
	return &GRPCService{
		addr:   fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port),
		server: srv,
		health: hs,
		log:    log.With("component", "grpc"),
	}
}

// Serve listens until ctx is done, then stops gracefully.
func (s *GRPCService) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, lis)
}

func (s *GRPCService) serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(lis)
	}()
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		<-errCh
		return ctx.Err()
	}
}

func (s *GRPCService) String() string { return "grpc-server" }
