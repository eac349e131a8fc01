package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	accountdomain "siteauth/backend/internal/account/domain"
	apikeydomain "siteauth/backend/internal/apikey/domain"
	"siteauth/backend/internal/authn"
)

const apiKeyHeader = "X-API-Key"

// TokenVerifier resolves an Authorization header to a principal.
type TokenVerifier interface {
	VerifyHeader(ctx context.Context, header string) (*authn.Principal, error)
	VerifyHeaderOptional(ctx context.Context, header string) (*authn.Principal, error)
}

// KeyAuthenticator resolves a raw API key to its owner.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*accountdomain.Account, *apikeydomain.APIKey, error)
}

// RequireAuth rejects requests without a valid bearer access token.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := v.VerifyHeader(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			WriteError(c, err)
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
func OptionalAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := v.VerifyHeaderOptional(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			WriteError(c, err)
			return
		}
		if p != nil {
			setPrincipal(c, p)
		}
		c.Next()
	}
}

// RequireAPIKey authenticates machine clients by the X-API-Key header.
func RequireAPIKey(keys KeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, k, err := keys.Authenticate(c.Request.Context(), c.GetHeader(apiKeyHeader))
		if err != nil {
			WriteError(c, err)
			return
		}
		setPrincipal(c, authn.FromAPIKey(acc, k.ID))
		c.Next()
	}
}

// Principal returns the caller set by one of the auth middlewares, or nil.
func Principal(c *gin.Context) *authn.Principal {
	p, _ := authn.PrincipalFromContext(c.Request.Context())
	return p
}

func setPrincipal(c *gin.Context, p *authn.Principal) {
	c.Request = c.Request.WithContext(authn.WithPrincipal(c.Request.Context(), p))
}
