package database

import (
	"context"
	"fmt"
	"log/slog"
)

// The schema is versioned through a single-row table so future releases can
// append migration steps without re-running earlier ones.
const currentSchemaVersion = 1

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY NOT NULL,
		password TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		email TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY(owner) REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_project_name ON projects (owner, name)`,
	`CREATE TABLE IF NOT EXISTS project_users (
		project_id INTEGER NOT NULL,
		username TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, username),
		FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE ON UPDATE CASCADE,
		FOREIGN KEY(username) REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS buckets (
		id INTEGER PRIMARY KEY,
		project_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		ord INTEGER,
		FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE ON UPDATE CASCADE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bucket_name ON buckets (project_id, name)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		bucket_id INTEGER NOT NULL,
		ord INTEGER,
		name TEXT NOT NULL,
		description TEXT,
		FOREIGN KEY(bucket_id) REFERENCES buckets(id) ON DELETE CASCADE ON UPDATE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		expiration INTEGER NOT NULL,
		data TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expiration ON sessions (expiration)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY NOT NULL,
		password TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		email TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		owner TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE,
		name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_project_name ON projects (owner, name)`,
	`CREATE TABLE IF NOT EXISTS project_users (
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE ON UPDATE CASCADE,
		username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE ON UPDATE CASCADE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (project_id, username)
	)`,
	`CREATE TABLE IF NOT EXISTS buckets (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE ON UPDATE CASCADE,
		name TEXT NOT NULL,
		ord BIGINT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bucket_name ON buckets (project_id, name)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		bucket_id BIGINT NOT NULL REFERENCES buckets(id) ON DELETE CASCADE ON UPDATE CASCADE,
		ord BIGINT,
		name TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		expiration BIGINT NOT NULL,
		data TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expiration ON sessions (expiration)`,
}

// Migrate brings the schema up to the current version. It is safe to call
// on every startup.
func Migrate(ctx context.Context, db *DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	schema := sqliteSchema
	if db.Driver() == DriverPostgres {
		schema = postgresSchema
	}

	slog.Info("running migrations", "from", version, "to", currentSchemaVersion)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("failed to reset schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// SeedAdmin inserts the bootstrap admin account if no users exist yet.
// It reports whether the account was created so the caller can log the
// generated password exactly once.
func SeedAdmin(ctx context.Context, db *DB, username, passwordHash string) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password, is_admin) VALUES (?, ?, ?)`,
		username, passwordHash, true)
	if err != nil {
		return false, fmt.Errorf("failed to seed admin user: %w", err)
	}
	return true, nil
}
