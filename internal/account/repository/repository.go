package repository

import (
	"context"
	"time"

	"siteauth/backend/internal/account/domain"
)

// Repository defines persistence for accounts. Lookups return (nil, nil) when
// no row matches; errors are reserved for storage failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByEmail expects a normalized (lower-cased) email.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Create returns apperr.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, a *domain.Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) error
	UpdatePlan(ctx context.Context, id string, plan domain.Plan, at time.Time) error
}
