package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	accountdomain "siteauth/backend/internal/account/domain"
	apikeydomain "siteauth/backend/internal/apikey/domain"
	"siteauth/backend/internal/authn"
)

const (
	authorizationKey = "authorization"
	apiKeyKey        = "x-api-key"
)

// TokenVerifier resolves an authorization value to a principal.
type TokenVerifier interface {
	VerifyHeader(ctx context.Context, header string) (*authn.Principal, error)
}

// KeyAuthenticator resolves a raw API key to its owner.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*accountdomain.Account, *apikeydomain.APIKey, error)
}

// AuthUnary authenticates every RPC not listed in publicMethods. Callers send
// either "authorization: Bearer <access token>" or "x-api-key: <key>"; when both
// are present the bearer token wins. keys may be nil to disable API keys.
// The resolved principal is available through authn.PrincipalFromContext.
func AuthUnary(verifier TokenVerifier, keys KeyAuthenticator, publicMethods map[string]bool, production bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		authz, rawKey := firstValue(ctx, authorizationKey), firstValue(ctx, apiKeyKey)

		var (
			p   *authn.Principal
			err error
		)
		if authz == "" && rawKey != "" && keys != nil {
			var acc *accountdomain.Account
			var k *apikeydomain.APIKey
			acc, k, err = keys.Authenticate(ctx, rawKey)
			if err == nil {
				p = authn.FromAPIKey(acc, k.ID)
			}
		} else {
			p, err = verifier.VerifyHeader(ctx, authz)
		}
		if err != nil {
			return nil, ToStatus(err, production)
		}
		return handler(authn.WithPrincipal(ctx, p), req)
	}
}

// firstValue returns the first trimmed value of key in incoming metadata, or "".
func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
