package kanban

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alandsidel/kanban/internal/models"
)

// GetUser fetches a user record by username. Returns models.ErrNotFound
// when no such user exists.
func (r *Repository) GetUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT username, password, is_admin, email FROM users WHERE username = ?`,
		username).Scan(&u.Username, &u.Password, &u.IsAdmin, &u.Email)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all accounts ordered by username, for the admin UI.
func (r *Repository) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, email, is_admin FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.Username, &u.Email, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser inserts a new account. The password must already be hashed.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool, email *string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password, is_admin, email) VALUES (?, ?, ?, ?)`,
		username, passwordHash, isAdmin, email)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username already exists", models.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// DeleteUser removes an account. Owned projects and association rows go
// with it via cascading deletes.
func (r *Repository) DeleteUser(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// SetAdmin toggles an account's admin flag. Sessions cache the flag at
// login, so the change takes effect on the user's next login unless admin
// revalidation is enabled.
func (r *Repository) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ? WHERE username = ?`, isAdmin, username); err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	return nil
}

// SetEmail updates an account's email address. A nil email clears it.
func (r *Repository) SetEmail(ctx context.Context, username string, email *string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ? WHERE username = ?`, email, username); err != nil {
		return fmt.Errorf("failed to set email: %w", err)
	}
	return nil
}
