package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"siteauth/backend/internal/apikey/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/db"
)

const apiKeyColumns = `id, account_id, name, prefix, key_fingerprint, last_used, expires_at, is_active, created_at`

// SQLRepository stores API keys in Postgres or SQLite.
type SQLRepository struct {
	db *db.DB
}

// NewSQLRepository returns an API key repository that uses the given db for persistence.
func NewSQLRepository(d *db.DB) *SQLRepository {
	return &SQLRepository{db: d}
}

// Create inserts k. The key must have ID set.
func (r *SQLRepository) Create(ctx context.Context, k *domain.APIKey) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO api_keys (`+apiKeyColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		k.ID, k.AccountID, k.Name, k.Prefix, k.KeyFingerprint,
		nullTime(k.LastUsed), nullTime(k.ExpiresAt), k.IsActive, k.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByFingerprint returns the key for fp, or nil if not found.
func (r *SQLRepository) GetByFingerprint(ctx context.Context, fp string) (*domain.APIKey, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_fingerprint = ?`), fp)
	return scanAPIKey(row)
}

// ListByAccount returns all keys of accountID, newest first.
func (r *SQLRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
SELECT `+apiKeyColumns+` FROM api_keys
WHERE account_id = ?
ORDER BY created_at DESC`), accountID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []*domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return out, nil
}

// Revoke marks the key inactive. The account_id condition keeps owners from
// revoking each other's keys.
func (r *SQLRepository) Revoke(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE api_keys SET is_active = ? WHERE id = ? AND account_id = ?`), false, id, accountID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// TouchLastUsed sets last_used.
func (r *SQLRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE api_keys SET last_used = ? WHERE id = ?`), at.UTC(), id); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row scanner) (*domain.APIKey, error) {
	var (
		k                   domain.APIKey
		lastUsed, expiresAt sql.NullTime
	)
	err := row.Scan(&k.ID, &k.AccountID, &k.Name, &k.Prefix, &k.KeyFingerprint,
		&lastUsed, &expiresAt, &k.IsActive, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	k.LastUsed = timePtr(lastUsed)
	k.ExpiresAt = timePtr(expiresAt)
	k.CreatedAt = k.CreatedAt.UTC()
	return &k, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
