// Package database handles opening the relational store and keeping its
// schema current. SQLite (via modernc.org/sqlite, CGO-free) is the default
// backend; PostgreSQL is supported for multi-process deployments.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps *sql.DB with knowledge of the underlying driver so queries can
// be written once with ? placeholders and rebound for PostgreSQL.
type DB struct {
	*sql.DB
	driver string
}

// Open opens and configures a database connection. For SQLite the DSN is a
// file path (or ":memory:"); PRAGMAs for WAL mode, foreign keys and a busy
// timeout are applied so cascading deletes work and concurrent readers
// don't trip over the single writer.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// foreign_keys is per-connection, so keep the pool at one
		// connection rather than chasing the PRAGMA across a pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

// Driver returns the driver name the pool was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Rebind converts ? placeholders to $1..$n for PostgreSQL. SQLite queries
// pass through untouched.
func (d *DB) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// ExecContext rebinds the query for the active driver before executing.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

// QueryContext rebinds the query for the active driver before executing.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRowContext rebinds the query for the active driver before executing.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// InsertReturningID executes an INSERT and reports the generated row ID.
// lib/pq does not implement LastInsertId, so on PostgreSQL the query is
// extended with a RETURNING clause instead.
func (d *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertReturningID(ctx, d, d, query, args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertReturningID(ctx context.Context, d *DB, e execer, query string, args ...any) (int64, error) {
	if d.driver == DriverPostgres {
		var id int64
		err := e.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Tx wraps *sql.Tx with the same placeholder rebinding as DB.
type Tx struct {
	*sql.Tx
	db *DB
}

// BeginTx starts a transaction whose statement helpers rebind placeholders.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, db: d}, nil
}

// ExecContext rebinds the query for the active driver before executing.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, t.db.Rebind(query), args...)
}

// QueryContext rebinds the query for the active driver before executing.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, t.db.Rebind(query), args...)
}

// QueryRowContext rebinds the query for the active driver before executing.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.Tx.QueryRowContext(ctx, t.db.Rebind(query), args...)
}

// InsertReturningID executes an INSERT within the transaction and reports
// the generated row ID.
func (t *Tx) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertReturningID(ctx, t.db, t, query, args...)
}
