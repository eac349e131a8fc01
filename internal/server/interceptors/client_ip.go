package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"siteauth/backend/internal/audit"
)

// ClientIP returns the caller address. Forwarding metadata (x-forwarded-for,
// x-real-ip) is read only when trustForwarded is set; otherwise the peer
// address is used. Returns "unknown" when neither is available.
func ClientIP(ctx context.Context, trustForwarded bool) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok && trustForwarded {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// ClientIPUnary stores the caller address on the context for security events.
func ClientIPUnary(trustForwarded bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(audit.WithClientIP(ctx, ClientIP(ctx, trustForwarded)), req)
	}
}
