package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/db"
	"siteauth/backend/internal/session/domain"
)

const sessionColumns = `id, account_id, access_fingerprint, refresh_fingerprint, expires_at, created_at, ip, user_agent, is_active`

// SQLRepository stores sessions in Postgres or SQLite.
type SQLRepository struct {
	db *db.DB
}

// NewSQLRepository returns a session repository that uses the given db for persistence.
func NewSQLRepository(d *db.DB) *SQLRepository {
	return &SQLRepository{db: d}
}

// Create inserts s. The session must have ID set.
func (r *SQLRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO sessions (`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.AccountID, s.AccessFingerprint, s.RefreshFingerprint,
		s.ExpiresAt.UTC(), s.CreatedAt.UTC(), s.IP, s.UserAgent, s.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID returns the session for id, or nil if not found. Revoked and expired
// sessions are returned too; callers check State.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	return scanSession(row)
}

// FindActiveByRefreshFingerprint returns the active session holding fp, or nil.
// Expiry is evaluated against now, not the database clock.
func (r *SQLRepository) FindActiveByRefreshFingerprint(ctx context.Context, fp string, now time.Time) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
SELECT `+sessionColumns+` FROM sessions
WHERE refresh_fingerprint = ? AND is_active = ?`), fp, true)
	s, err := scanSession(row)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Usable(now) {
		return nil, nil
	}
	return s, nil
}

// Rotate swaps fingerprints and expiry only if the old refresh fingerprint is
// still current and the session has not expired at p.Now. Of two concurrent
// rotations with the same old fingerprint at most one affects a row.
func (r *SQLRepository) Rotate(ctx context.Context, p RotateParams) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
UPDATE sessions
SET access_fingerprint = ?, refresh_fingerprint = ?, expires_at = ?
WHERE id = ? AND refresh_fingerprint = ? AND is_active = ? AND expires_at > ?`),
		p.NewAccessFingerprint, p.NewRefreshFingerprint, p.NewExpiresAt.UTC(),
		p.SessionID, p.OldRefreshFingerprint, true, p.Now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if n == 0 {
		return apperr.ErrSessionNotFound
	}
	return nil
}

// Revoke marks the session inactive.
func (r *SQLRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE sessions SET is_active = ? WHERE id = ? AND is_active = ?`), false, id, true)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAll marks all active sessions of accountID inactive except exceptID.
func (r *SQLRepository) RevokeAll(ctx context.Context, accountID, exceptID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
UPDATE sessions SET is_active = ?
WHERE account_id = ? AND is_active = ? AND id <> ?`), false, accountID, true, exceptID)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	return n, nil
}

// ListActiveByAccount returns the account's usable sessions, newest first.
func (r *SQLRepository) ListActiveByAccount(ctx context.Context, accountID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
SELECT `+sessionColumns+` FROM sessions
WHERE account_id = ? AND is_active = ?
ORDER BY created_at DESC`), accountID, true)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		if s.Usable(now) {
			out = append(out, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.AccountID, &s.AccessFingerprint, &s.RefreshFingerprint,
		&s.ExpiresAt, &s.CreatedAt, &s.IP, &s.UserAgent, &s.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}
