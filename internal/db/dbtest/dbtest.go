// Package dbtest gives repository tests a migrated SQLite database in a temp dir.
package dbtest

import (
	"path/filepath"
	"testing"

	"siteauth/backend/internal/db"
	"siteauth/backend/internal/db/migrate"
)

// Open migrates a fresh SQLite file and returns it open. The file is removed with t's temp dir.
func Open(t testing.TB) *db.DB {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "test.db")
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
