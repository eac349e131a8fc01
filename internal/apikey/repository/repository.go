package repository

import (
	"context"
	"time"

	"siteauth/backend/internal/apikey/domain"
)

// Repository defines persistence for API keys.
type Repository interface {
	Create(ctx context.Context, k *domain.APIKey) error
	// GetByFingerprint returns the key whose fingerprint matches, active or not, or nil.
	GetByFingerprint(ctx context.Context, fp string) (*domain.APIKey, error)
	// ListByAccount returns the account's keys, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.APIKey, error)
	// Revoke deactivates the key if it belongs to accountID. Returns apperr.ErrNotFound
	// when no such key exists for that account; revoking twice is not an error.
	Revoke(ctx context.Context, accountID, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}
