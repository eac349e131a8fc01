// Package service authenticates machine clients by static API key and manages
// the keys on behalf of their owners.
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apikey/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/security"
)

const maxKeyNameLen = 100

// KeyRepo is the API key persistence needed by the authenticator.
type KeyRepo interface {
	Create(ctx context.Context, k *domain.APIKey) error
	GetByFingerprint(ctx context.Context, fp string) (*domain.APIKey, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, accountID, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// AccountRepo is the account lookup needed by the authenticator.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
}

// Authenticator resolves API keys to their owning account.
type Authenticator struct {
	keys     KeyRepo
	accounts AccountRepo
	events   audit.Recorder
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator returns an Authenticator. A nil events recorder discards events.
func NewAuthenticator(keys KeyRepo, accounts AccountRepo, events audit.Recorder, log zerolog.Logger, opts ...Option) *Authenticator {
	if events == nil {
		events = audit.Nop{}
	}
	a := &Authenticator{keys: keys, accounts: accounts, events: events, log: log, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate returns the owner of rawKey and the key itself. It fails with
// MissingKey, InvalidKey (unknown or revoked), KeyExpired or AccountInactive.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*accountdomain.Account, *domain.APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		a.events.Record(ctx, auditdomain.EventAPIKeyInvalid, "", map[string]string{"reason": "missing"})
		return nil, nil, apperr.ErrMissingKey
	}

	k, err := a.keys.GetByFingerprint(ctx, security.Fingerprint(rawKey))
	if err != nil {
		return nil, nil, a.internal(err, "get api key")
	}
	if k == nil || !k.IsActive {
		md := map[string]string{"reason": "unknown"}
		accountID := ""
		if k != nil {
			md = map[string]string{"reason": "revoked", "key_id": k.ID}
			accountID = k.AccountID
		}
		a.events.Record(ctx, auditdomain.EventAPIKeyInvalid, accountID, md)
		return nil, nil, apperr.ErrInvalidKey
	}

	now := a.now().UTC()
	if k.ExpiredAt(now) {
		a.events.Record(ctx, auditdomain.EventAPIKeyExpired, k.AccountID, map[string]string{"key_id": k.ID})
		return nil, nil, apperr.ErrKeyExpired
	}

	acc, err := a.accounts.GetByID(ctx, k.AccountID)
	if err != nil {
		return nil, nil, a.internal(err, "get account")
	}
	if acc == nil {
		a.events.Record(ctx, auditdomain.EventAccountNotFound, k.AccountID, map[string]string{"key_id": k.ID})
		return nil, nil, apperr.ErrInvalidKey
	}
	if !acc.IsActive() {
		a.events.Record(ctx, auditdomain.EventAccountInactive, acc.ID, map[string]string{"key_id": k.ID, "status": string(acc.Status)})
		return nil, nil, apperr.ErrAccountInactive
	}

	if err := a.keys.TouchLastUsed(ctx, k.ID, now); err != nil {
		a.log.Warn().Err(err).Str("key_id", k.ID).Msg("api key last_used update failed")
	} else {
		k.LastUsed = &now
	}
	a.events.Record(ctx, auditdomain.EventAPIKeySuccess, acc.ID, map[string]string{"key_id": k.ID})
	return acc, k, nil
}

// Create mints a key for accountID. The raw key is returned once and never stored.
// A nil expiresAt creates a key that never expires.
func (a *Authenticator) Create(ctx context.Context, accountID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxKeyNameLen {
		return "", nil, apperr.Validation("name must be 1 to %d characters", maxKeyNameLen)
	}
	now := a.now().UTC()
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return "", nil, apperr.Validation("expires_at must be in the future")
		}
		exp := expiresAt.UTC()
		expiresAt = &exp
	}

	raw, prefix, err := security.GenerateAPIKey()
	if err != nil {
		return "", nil, a.internal(err, "generate api key")
	}
	k := &domain.APIKey{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		Name:           name,
		Prefix:         prefix,
		KeyFingerprint: security.Fingerprint(raw),
		ExpiresAt:      expiresAt,
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := a.keys.Create(ctx, k); err != nil {
		return "", nil, a.internal(err, "create api key")
	}
	a.events.Record(ctx, auditdomain.EventAPIKeyCreated, accountID, map[string]string{"key_id": k.ID, "name": name})
	return raw, k, nil
}

// Revoke deactivates keyID if accountID owns it. Revoking an already revoked key succeeds.
func (a *Authenticator) Revoke(ctx context.Context, accountID, keyID string) error {
	if err := a.keys.Revoke(ctx, accountID, keyID); err != nil {
		return a.internal(err, "revoke api key")
	}
	a.events.Record(ctx, auditdomain.EventAPIKeyRevoked, accountID, map[string]string{"key_id": keyID})
	return nil
}

// List returns accountID's keys, newest first.
func (a *Authenticator) List(ctx context.Context, accountID string) ([]*domain.APIKey, error) {
	keys, err := a.keys.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, a.internal(err, "list api keys")
	}
	return keys, nil
}

func (a *Authenticator) internal(err error, op string) error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		a.log.Error().Err(err).Str("op", op).Msg("api key failure")
	}
	return e
}
