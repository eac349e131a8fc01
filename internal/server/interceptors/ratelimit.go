package interceptors

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/authn"
	"siteauth/backend/internal/ratelimit"
)

// Limiter counts one request per identity key.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimitUnary throttles per principal, or per client IP for anonymous RPCs.
// It must run after AuthUnary and ClientIPUnary. Methods in skipMethods are not
// counted. A failing counter store lets the RPC through.
func RateLimitUnary(l Limiter, events audit.Recorder, log zerolog.Logger, skipMethods map[string]bool, production bool) grpc.UnaryServerInterceptor {
	if events == nil {
		events = audit.Nop{}
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if skipMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		key := ratelimit.IPKey(audit.ClientIPFromContext(ctx))
		accountID := ""
		if p, ok := authn.PrincipalFromContext(ctx); ok {
			key = p.RateLimitKey()
			accountID = p.AccountID
		}

		_, err := l.Allow(ctx, key)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrRateLimited):
			events.Record(ctx, auditdomain.EventRateLimited, accountID, map[string]string{"key": key, "method": info.FullMethod})
			return nil, ToStatus(err, production)
		default:
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		}
		return handler(ctx, req)
	}
}
