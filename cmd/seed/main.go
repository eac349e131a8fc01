// seed creates a development admin account and one API key for it.
// Idempotent: exits without changes when the admin e-mail already exists.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	accountdomain "siteauth/backend/internal/account/domain"
	accountrepo "siteauth/backend/internal/account/repository"
	apikeyrepo "siteauth/backend/internal/apikey/repository"
	apikeyservice "siteauth/backend/internal/apikey/service"
	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/config"
	"siteauth/backend/internal/db"
	"siteauth/backend/internal/logger"
	"siteauth/backend/internal/security"
)

func main() {
	email := flag.String("email", "admin@example.com", "admin e-mail")
	password := flag.String("password", "Admin-passw0rd!", "admin password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	if cfg.IsProduction() {
		log.Fatal().Msg("seed refuses to run in production")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; set it to postgres://... or sqlite://path")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	ctx := context.Background()
	accounts := accountrepo.NewSQLRepository(conn)

	normalized := accountdomain.NormalizeEmail(*email)
	existing, err := accounts.GetByEmail(ctx, normalized)
	if err != nil {
		log.Fatal().Err(err).Msg("seed check")
	}
	if existing != nil {
		log.Info().Str("email", normalized).Msg("seed already applied, skipping")
		return
	}
	if err := accountdomain.ValidatePassword(*password); err != nil {
		log.Fatal().Err(err).Msg("password")
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(*password))
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}
	now := time.Now().UTC()
	admin := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        normalized,
		PasswordHash: hash,
		Role:         accountdomain.RoleSuperAdmin,
		Plan:         accountdomain.PlanEnterprise,
		Status:       accountdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := accounts.Create(ctx, admin); err != nil {
		log.Fatal().Err(err).Msg("create admin")
	}

	keys := apikeyservice.NewAuthenticator(apikeyrepo.NewSQLRepository(conn), accounts, audit.Nop{}, log)
	raw, key, err := keys.Create(ctx, admin.ID, "seed", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("create api key")
	}

	log.Info().Str("account_id", admin.ID).Str("email", admin.Email).Str("api_key_id", key.ID).Msg("seeded admin account")
	// The raw key is not stored; print it once for the developer.
	fmt.Println(raw)
}
