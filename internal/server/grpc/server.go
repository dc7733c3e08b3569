// Package grpc runs the gRPC side listener. It exposes only grpc.health.v1 so
// orchestrators can health-check the process; every call passes through an
// interceptor that logs the caller when a bearer token is attached.
package grpc

import (
	"context"
	"net"

	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SessionsService is the health service name that mirrors the session store.
const SessionsService = "gqlauth.sessions"

// TokenVerifier decodes bearer tokens; nil means invalid.
type TokenVerifier interface {
	Verify(token string) *models.Identity
}

type GRPCServer struct {
	address string
	logger  logging.Logger
	tokens  TokenVerifier
	health  *health.Server
}

func NewGRPCServer(address string, l logging.Logger, tokens TokenVerifier) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		tokens:  tokens,
		health:  health.NewServer(),
	}
}

// SetSessionsServing reports the session store health to health checkers.
func (s *GRPCServer) SetSessionsServing(ok bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !ok {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(SessionsService, st)
}

// Run serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.identityInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
