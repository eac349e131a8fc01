// Package server assembles the authenticated gRPC server.
package server

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"siteauth/backend/internal/audit"
	healthhandler "siteauth/backend/internal/health/handler"
	"siteauth/backend/internal/server/interceptors"
)

// Deps holds the collaborators of the gRPC server.
type Deps struct {
	Verifier interceptors.TokenVerifier
	// Keys enables x-api-key authentication. If nil, only bearer tokens are accepted.
	Keys    interceptors.KeyAuthenticator
	Limiter interceptors.Limiter
	Events  audit.Recorder
	Log     zerolog.Logger
	// HealthDB and HealthCache back grpc.health.v1 Check. Either may be nil.
	HealthDB    healthhandler.Pinger
	HealthCache healthhandler.Pinger
	Production  bool
	// TrustForwarded lets x-forwarded-for metadata set the client IP.
	TrustForwarded bool
}

// PublicMethods are served without credentials and are not rate limited.
var PublicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a server whose unary RPCs pass, in order, through
// client IP capture, request logging, authentication, rate limiting and error
// mapping. Services are registered with RegisterServices.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	chain := grpc.ChainUnaryInterceptor(
		interceptors.ClientIPUnary(deps.TrustForwarded),
		interceptors.LoggingUnary(deps.Log, PublicMethods),
		interceptors.AuthUnary(deps.Verifier, deps.Keys, PublicMethods, deps.Production),
		interceptors.RateLimitUnary(deps.Limiter, deps.Events, deps.Log, PublicMethods, deps.Production),
		interceptors.ErrorUnary(deps.Production),
	)
	opts = append([]grpc.ServerOption{chain, grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the services owned by this module.
//
// Service → handler mapping:
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthDB, deps.HealthCache, deps.Log))
}

// Serve listens on addr and serves until the server is stopped.
func Serve(ctx context.Context, s *grpc.Server, addr string, log zerolog.Logger) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("grpc server starting")
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
