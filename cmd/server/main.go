// server runs the HTTP API and the authenticated gRPC listener in one process.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	accountrepo "siteauth/backend/internal/account/repository"
	apikeyrepo "siteauth/backend/internal/apikey/repository"
	apikeyservice "siteauth/backend/internal/apikey/service"
	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/authn"
	"siteauth/backend/internal/cache"
	"siteauth/backend/internal/config"
	"siteauth/backend/internal/db"
	"siteauth/backend/internal/db/migrate"
	"siteauth/backend/internal/httpapi"
	identityservice "siteauth/backend/internal/identity/service"
	"siteauth/backend/internal/logger"
	"siteauth/backend/internal/ratelimit"
	"siteauth/backend/internal/security"
	"siteauth/backend/internal/server"
	sessionrepo "siteauth/backend/internal/session/repository"
	telemetryotel "siteauth/backend/internal/telemetry/otel"
)

const (
	defaultDatabaseURL = "sqlite://siteauth.db"
	shutdownTimeout    = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.Setup(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = defaultDatabaseURL
		log.Warn().Str("dsn", dsn).Msg("DATABASE_URL not set, using local sqlite")
	}
	if cfg.MigrateOnStart && !cfg.IsProduction() {
		if err := migrate.Run(dsn, "up"); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	var (
		store      ratelimit.CounterStore = ratelimit.NewMemoryStore()
		redisPing  httpapi.Pinger
		redisClose func() error
	)
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		store = ratelimit.NewRedisStore(client)
		redisPing = pingRedis(client)
		redisClose = client.Close
		log.Info().Str("addr", cfg.RedisAddr).Msg("rate limit counters in redis")
	}

	sinks := []audit.Sink{audit.NewZerologSink(log), telemetryotel.NewSecurityEventLogSink(providers.LoggerProvider)}
	counter, err := telemetryotel.NewSecurityEventCounter(providers.MeterProvider)
	if err != nil {
		return err
	}
	sinks = append(sinks, counter)
	events := audit.NewLogger(cfg.SecurityEventBuffer, log, sinks...)

	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Issuer:        cfg.JWTIssuer,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
	})
	if err != nil {
		return err
	}

	accounts := accountrepo.NewSQLRepository(conn)
	sessions := sessionrepo.NewSQLRepository(conn)
	keys := apikeyrepo.NewSQLRepository(conn)

	var verifierOpts []authn.VerifierOption
	if cfg.SessionCheck {
		verifierOpts = append(verifierOpts, authn.WithSessionCheck(sessions))
	}
	verifier := authn.NewVerifier(tokens, accounts, events, log, verifierOpts...)

	limiter, err := ratelimit.New(store, ratelimit.Config{Max: cfg.RateLimitMax, Window: cfg.RateLimitWindow})
	if err != nil {
		return err
	}
	var authOpts []identityservice.Option
	if cfg.LoginRateLimitMax > 0 {
		loginLimiter, err := ratelimit.New(store, ratelimit.Config{Max: cfg.LoginRateLimitMax, Window: cfg.RateLimitWindow})
		if err != nil {
			return err
		}
		authOpts = append(authOpts, identityservice.WithLoginLimiter(loginLimiter))
	}

	authService := identityservice.NewAuthService(accounts, sessions, security.NewHasher(cfg.BcryptCost), tokens, events, log, authOpts...)
	apiKeys := apikeyservice.NewAuthenticator(keys, accounts, events, log)

	httpServer, err := httpapi.NewHTTPServer(
		httpapi.ServerConfig{Addr: cfg.HTTPAddr, Production: cfg.IsProduction(), TrustedProxies: cfg.TrustedProxies},
		log,
		httpapi.NewHandlerSet(httpapi.Deps{
			Auth:     authService,
			APIKeys:  apiKeys,
			Verifier: verifier,
			Limiter:  limiter,
			Events:   events,
			Log:      log,
			Env:      cfg.Env,
			DB:       conn,
			Cache:    redisPing,
		}),
	)
	if err != nil {
		return err
	}

	grpcServer := server.NewGRPCServer(server.Deps{
		Verifier:       verifier,
		Keys:           apiKeys,
		Limiter:        limiter,
		Events:         events,
		Log:            log,
		HealthDB:       conn,
		HealthCache:    redisPing,
		Production:     cfg.IsProduction(),
		TrustForwarded: len(cfg.TrustedProxies) > 0,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error { return server.Serve(gctx, grpcServer, cfg.GRPCAddr, log) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		err := httpServer.Shutdown(shutdownCtx)
		verifier.Wait()
		if cerr := events.Close(shutdownCtx); cerr != nil {
			log.Warn().Err(cerr).Msg("security event queue not fully drained")
		}
		if dropped := events.Dropped(); dropped > 0 {
			log.Warn().Uint64("dropped", dropped).Msg("security events dropped")
		}
		if redisClose != nil {
			_ = redisClose()
		}
		return errors.Join(err, providers.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func pingRedis(client *redis.Client) httpapi.PingFunc {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}
