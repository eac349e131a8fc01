// migrate applies or rolls back the embedded schema migrations.
//
//	go run ./cmd/migrate -direction up
//	go run ./cmd/migrate -dsn sqlite://./siteauth.db -direction down
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"siteauth/backend/internal/config"
	"siteauth/backend/internal/db/migrate"
	"siteauth/backend/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	dsn := flag.String("dsn", "", "database URL; defaults to DATABASE_URL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	target := *dsn
	if target == "" {
		target = cfg.DatabaseURL
	}
	if *direction == "down" && cfg.IsProduction() {
		log.Fatal().Msg("refusing to roll back migrations in production")
	}

	if err := migrate.Run(target, *direction); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migrate")
	}
	log.Info().Str("direction", *direction).Msg("migrations complete")
}
