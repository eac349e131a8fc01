// Package httpapi is the JSON HTTP surface of the auth subsystem.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	accountdomain "siteauth/backend/internal/account/domain"
	apikeyservice "siteauth/backend/internal/apikey/service"
	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/httpapi/middleware"
	identityservice "siteauth/backend/internal/identity/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Deps are the collaborators the handlers need.
type Deps struct {
	Auth     *identityservice.AuthService
	APIKeys  *apikeyservice.Authenticator
	Verifier middleware.TokenVerifier
	Limiter  middleware.Limiter
	Events   audit.Recorder
	Log      zerolog.Logger
	Env      string
	DB       Pinger
	Cache    Pinger // optional
}

// HandlerSet holds the route handlers.
type HandlerSet struct {
	auth     *identityservice.AuthService
	apiKeys  *apikeyservice.Authenticator
	verifier middleware.TokenVerifier
	limiter  middleware.Limiter
	events   audit.Recorder
	log      zerolog.Logger
	env      string
	db       Pinger
	cache    Pinger
}

// NewHandlerSet returns handlers over d. A nil Events recorder discards events.
func NewHandlerSet(d Deps) HandlerSet {
	if d.Events == nil {
		d.Events = audit.Nop{}
	}
	return HandlerSet{
		auth:     d.Auth,
		apiKeys:  d.APIKeys,
		verifier: d.Verifier,
		limiter:  d.Limiter,
		events:   d.Events,
		log:      d.Log,
		env:      d.Env,
		db:       d.DB,
		cache:    d.Cache,
	}
}

// RegisterRoutes mounts every route on router.
func (h HandlerSet) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	limit := middleware.RateLimit(h.limiter, h.events, h.log)
	bearer := middleware.RequireAuth(h.verifier)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth", limit)
		public.POST("/register", h.Register)
		public.POST("/login", h.Login)
		public.POST("/refresh", h.Refresh)

		auth := v1.Group("/auth", bearer, limit)
		auth.POST("/logout", h.Logout)
		auth.POST("/logout-all", h.LogoutAll)
		auth.POST("/password", h.ChangePassword)
		auth.GET("/me", h.Me)
		auth.GET("/sessions", h.ListSessions)
		auth.DELETE("/sessions/:id", h.RevokeSession)

		keys := v1.Group("/api-keys", bearer, limit)
		keys.POST("", middleware.RequirePermission(h.events, accountdomain.PermManageAPIKeys), h.CreateAPIKey)
		keys.GET("", h.ListAPIKeys)
		keys.DELETE("/:id", h.RevokeAPIKey)

		machine := v1.Group("/machine", middleware.RequireAPIKey(h.apiKeys), limit)
		machine.GET("/whoami", h.WhoAmI)

		catalog := v1.Group("/catalog", middleware.OptionalAuth(h.verifier), limit)
		catalog.GET("/personalized", h.Personalized)
	}
}
