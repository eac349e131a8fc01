// Package handler serves the standard grpc.health.v1 service backed by live
// dependency checks.
package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the service reported alongside the empty (server-wide) name.
const ServiceName = "siteauth.v1.Auth"

// Pinger checks a backing store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server implements grpc.health.v1.Health. Check pings the database on every call;
// a configured cache is logged when unreachable but does not fail readiness.
type Server struct {
	healthpb.UnimplementedHealthServer

	db    Pinger
	cache Pinger
	log   zerolog.Logger
}

// NewServer returns a health server. db and cache may be nil.
func NewServer(db, cache Pinger, log zerolog.Logger) *Server {
	return &Server{db: db, cache: cache, log: log}
}

// Check reports SERVING when the database answers within 2s.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health: redis ping failed")
		}
	}
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.log.Error().Err(err).Msg("health: database ping failed")
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
