package db

import "embed"

// MigrationFS embeds the SQL migrations for both dialects, one directory each
// under migrations/. Used by the migrate runner (cmd/migrate, server start and tests).
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS

// MigrationDir returns the embedded directory holding migrations for d.
func MigrationDir(d Dialect) string {
	return "migrations/" + d.String()
}
