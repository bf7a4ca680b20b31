package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/alandsidel/kanban/internal/database"
)

// PostgresStore persists sessions into the shared PostgreSQL database.
// Unlike SQLite no write mutex is needed; the server handles concurrent
// writers.
type PostgresStore struct {
	db   *database.DB
	opts Options

	getStmt     *sql.Stmt
	setStmt     *sql.Stmt
	touchStmt   *sql.Stmt
	destroyStmt *sql.Stmt
	sweepStmt   *sql.Stmt
}

// NewPostgresStore prepares the session statements against the shared pool.
func NewPostgresStore(db *database.DB, opts Options) (*PostgresStore, error) {
	if db.Driver() != database.DriverPostgres {
		return nil, fmt.Errorf("postgres session store opened against %q driver", db.Driver())
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			expiration BIGINT NOT NULL,
			data TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expiration ON sessions (expiration);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	s := &PostgresStore{db: db, opts: opts.normalize()}

	s.getStmt, err = db.Prepare(`SELECT data FROM sessions WHERE id = $1 AND expiration > $2`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.setStmt, err = db.Prepare(`
		INSERT INTO sessions (id, expiration, data)
		VALUES ($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET
			data = EXCLUDED.data,
			expiration = EXCLUDED.expiration
	`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.touchStmt, err = db.Prepare(`UPDATE sessions SET expiration = $1 WHERE id = $2`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	s.destroyStmt, err = db.Prepare(`DELETE FROM sessions WHERE id = $1`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare destroy statement: %w", err)
	}

	s.sweepStmt, err = db.Prepare(`DELETE FROM sessions WHERE expiration < $1`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare sweep statement: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) maybeSweep(ctx context.Context) error {
	if s.opts.GCProbability <= 0 || rand.Float64() > s.opts.GCProbability {
		return nil
	}
	if _, err := s.sweepStmt.ExecContext(ctx, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (map[string]any, error) {
	if err := s.maybeSweep(ctx); err != nil {
		return nil, err
	}

	var data sql.NullString
	err := s.getStmt.QueryRowContext(ctx, id, time.Now().Unix()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil // Not found or expired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return decodeSessionData(data)
}

func (s *PostgresStore) Set(ctx context.Context, id string, data map[string]any) error {
	if err := s.maybeSweep(ctx); err != nil {
		return err
	}

	blob, err := encodeSessionData(data)
	if err != nil {
		return err
	}

	expiration := time.Now().Add(s.opts.Lifetime).Unix()
	if _, err := s.setStmt.ExecContext(ctx, id, expiration, blob); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, id string) error {
	expiration := time.Now().Add(s.opts.Lifetime).Unix()
	if _, err := s.touchStmt.ExecContext(ctx, expiration, id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Destroy(ctx context.Context, id string) error {
	if _, err := s.destroyStmt.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.setStmt, s.touchStmt, s.destroyStmt, s.sweepStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
