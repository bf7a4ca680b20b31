package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alandsidel/kanban/internal/database"
)

// SQLiteStore persists sessions into the shared SQLite database.
type SQLiteStore struct {
	db   *database.DB
	opts Options
	mu   sync.Mutex // serializes writes to avoid SQLITE_BUSY

	getStmt     *sql.Stmt
	setStmt     *sql.Stmt
	touchStmt   *sql.Stmt
	destroyStmt *sql.Stmt
	sweepStmt   *sql.Stmt
}

// NewSQLiteStore prepares the session statements against the shared pool.
// The sessions table is created if the schema migrations have not run yet,
// which keeps the store usable standalone.
func NewSQLiteStore(db *database.DB, opts Options) (*SQLiteStore, error) {
	if db.Driver() != database.DriverSQLite {
		return nil, fmt.Errorf("sqlite session store opened against %q driver", db.Driver())
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			expiration INTEGER NOT NULL,
			data TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expiration ON sessions (expiration);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	s := &SQLiteStore{db: db, opts: opts.normalize()}

	s.getStmt, err = db.Prepare(`SELECT data FROM sessions WHERE id = ? AND expiration > ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	// Atomic upsert; the update-then-insert race the pre-upsert pattern
	// carried does not exist here.
	s.setStmt, err = db.Prepare(`
		INSERT INTO sessions (id, expiration, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			expiration = excluded.expiration
	`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare set statement: %w", err)
	}

	s.touchStmt, err = db.Prepare(`UPDATE sessions SET expiration = ? WHERE id = ?`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	s.destroyStmt, err = db.Prepare(`DELETE FROM sessions WHERE id = ?`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare destroy statement: %w", err)
	}

	s.sweepStmt, err = db.Prepare(`DELETE FROM sessions WHERE expiration < ?`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare sweep statement: %w", err)
	}

	return s, nil
}

// maybeSweep runs the probabilistic garbage collection. Amortizing the
// sweep over Get/Set calls avoids a background scheduler; worst-case
// staleness is unbounded under low traffic, which is acceptable at the
// session volumes this serves.
func (s *SQLiteStore) maybeSweep(ctx context.Context) error {
	if s.opts.GCProbability <= 0 || rand.Float64() > s.opts.GCProbability {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.sweepStmt.ExecContext(ctx, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (map[string]any, error) {
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

func (s *SQLiteStore) Set(ctx context.Context, id string, data map[string]any) error {
	if err := s.maybeSweep(ctx); err != nil {
		return err
	}

	blob, err := encodeSessionData(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expiration := time.Now().Add(s.opts.Lifetime).Unix()
	if _, err := s.setStmt.ExecContext(ctx, id, expiration, blob); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiration := time.Now().Add(s.opts.Lifetime).Unix()
	if _, err := s.touchStmt.ExecContext(ctx, expiration, id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.destroyStmt.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
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

// Close releases the prepared statements. The shared database pool stays
// open for the rest of the application.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.setStmt, s.touchStmt, s.destroyStmt, s.sweepStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}

// encodeSessionData serializes the data bag as JSON. Empty bags are stored
// as NULL, which keeps brand-new anonymous sessions cheap.
func encodeSessionData(data map[string]any) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session data: %w", err)
	}
	return string(blob), nil
}

func decodeSessionData(data sql.NullString) (map[string]any, error) {
	values := make(map[string]any)
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &values); err != nil {
			return nil, fmt.Errorf("failed to decode session data: %w", err)
		}
	}
	return values, nil
}
