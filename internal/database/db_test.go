package database

import (
	"context"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "whatever"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}

	query := `INSERT INTO tasks (bucket_id, ord, name) VALUES (?, ?, ?)`
	if got := sqlite.Rebind(query); got != query {
		t.Errorf("sqlite rebind changed the query: %s", got)
	}

	want := `INSERT INTO tasks (bucket_id, ord, name) VALUES ($1, $2, $3)`
	if got := pg.Rebind(query); got != want {
		t.Errorf("postgres rebind: expected %s, got %s", want, got)
	}

	if got := pg.Rebind("SELECT 1"); got != "SELECT 1" {
		t.Errorf("query without placeholders changed: %s", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}

	// All of the application tables must exist afterwards.
	for _, table := range []string{"users", "projects", "project_users", "buckets", "tasks", "sessions"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}
}

func TestSeedAdminOnlyWhenEmpty(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	created, err := SeedAdmin(ctx, db, "root", "hash")
	if err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	if !created {
		t.Fatal("expected admin to be created on an empty database")
	}

	var isAdmin bool
	if err := db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE username = 'root'`).Scan(&isAdmin); err != nil {
		t.Fatalf("failed to read seeded admin: %v", err)
	}
	if !isAdmin {
		t.Error("seeded account is not an admin")
	}

	created, err = SeedAdmin(ctx, db, "root", "other-hash")
	if err != nil {
		t.Fatalf("failed on second seed: %v", err)
	}
	if created {
		t.Error("seeding must be skipped once any user exists")
	}
}

func TestInsertReturningID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password, is_admin) VALUES ('alice', 'x', 0)`); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	id1, err := db.InsertReturningID(ctx,
		`INSERT INTO projects (owner, name) VALUES (?, ?)`, "alice", "one")
	if err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
	id2, err := db.InsertReturningID(ctx,
		`INSERT INTO projects (owner, name) VALUES (?, ?)`, "alice", "two")
	if err != nil {
		t.Fatalf("failed to insert project: %v", err)
	}
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Errorf("expected distinct generated ids, got %d and %d", id1, id2)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO buckets (project_id, name, ord) VALUES (999, 'orphan', 1)`)
	if err == nil {
		t.Fatal("expected foreign key violation for orphan bucket")
	}
}
