package repository

import (
	"context"
	"time"

	"siteauth/backend/internal/session/domain"
)

// RotateParams is a compare-and-swap of a session's credentials. It applies
// only while the stored refresh fingerprint still equals OldRefreshFingerprint
// and the session is active and unexpired at Now.
type RotateParams struct {
	SessionID             string
	OldRefreshFingerprint string
	NewAccessFingerprint  string
	NewRefreshFingerprint string
	NewExpiresAt          time.Time
	Now                   time.Time
}

// Repository defines persistence for sessions. Lookups return (nil, nil) when
// no row matches.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// FindActiveByRefreshFingerprint returns the active, unexpired session holding fp.
	FindActiveByRefreshFingerprint(ctx context.Context, fp string, now time.Time) (*domain.Session, error)
	// Rotate returns apperr.ErrSessionNotFound when the swap matched no row
	// (revoked, expired, unknown, or the fingerprint was already rotated by someone else).
	Rotate(ctx context.Context, p RotateParams) error
	// Revoke is idempotent; revoking an unknown or revoked session is not an error.
	Revoke(ctx context.Context, id string) error
	// RevokeAll revokes every active session of accountID except exceptID (may be
	// empty) and reports how many were revoked.
	RevokeAll(ctx context.Context, accountID, exceptID string) (int64, error)
	// ListActiveByAccount returns active, unexpired sessions, newest first.
	ListActiveByAccount(ctx context.Context, accountID string, now time.Time) ([]*domain.Session, error)
}
