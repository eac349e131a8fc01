package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/httpapi/middleware"
)

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr           string
	Production     bool
	TrustedProxies []string
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	log    zerolog.Logger
}

// NewEngine builds the gin engine with the standard middleware chain and routes.
func NewEngine(cfg ServerConfig, log zerolog.Logger, handlerSet HandlerSet) (*gin.Engine, error) {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.Environment(cfg.Production),
		middleware.ClientIP(),
	)
	engine.NoRoute(func(c *gin.Context) {
		middleware.WriteError(c, apperr.ErrNotFound)
	})

	handlerSet.RegisterRoutes(&engine.RouterGroup)
	return engine, nil
}

// NewHTTPServer wraps the engine in an http.Server with conservative timeouts.
func NewHTTPServer(cfg ServerConfig, log zerolog.Logger, handlerSet HandlerSet) (*HTTPServer, error) {
	engine, err := NewEngine(cfg, log, handlerSet)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &HTTPServer{engine: engine, server: srv, log: log}, nil
}

// Start blocks serving until Shutdown.
func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("addr", s.server.Addr).
		Msg("http server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
