// Package auth gates requests by principal identity and resource
// ownership. The blanket path policy runs once per request; the ownership
// checks are called by individual mutating handlers before they touch data.
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/alandsidel/kanban/internal/database"
	"github.com/alandsidel/kanban/internal/models"
	"github.com/alandsidel/kanban/internal/session"
)

const adminPathPrefix = "/api/admin/"

// anonymousPaths are reachable without a logged-in session: static assets
// and the login/signup flow. Everything else is forbidden to anonymous
// visitors.
var anonymousExact = map[string]bool{
	"/":           true,
	"/index.html": true,
}

var anonymousPrefixes = []string{
	"/assets/",
	"/api/login",
	"/api/logout",
	"/api/authcheck",
	"/api/signup",
}

// Guard evaluates the request-time authorization policy.
type Guard struct {
	db *database.DB

	// revalidateAdmin re-reads the user's admin flag from the users table
	// on every request instead of trusting the flag cached in the session
	// at login time. Off by default; the cached flag is stale until the
	// user logs in again, which is the accepted tradeoff.
	revalidateAdmin bool
}

func NewGuard(db *database.DB, revalidateAdmin bool) *Guard {
	return &Guard{db: db, revalidateAdmin: revalidateAdmin}
}

// Authorize decides whether the session may touch the given method/path.
// Returns nil to allow, models.ErrForbidden to reject. The decision leaks
// nothing about whether the target resource exists.
func (g *Guard) Authorize(ctx context.Context, sess *session.Session, method, path string) error {
	// CORS preflight requests carry no credentials, so protecting them
	// would break cross-origin clients even for logged-in users.
	if method == http.MethodOptions {
		return nil
	}

	username := sess.Username()
	if username == "" {
		if anonymousExact[path] {
			return nil
		}
		for _, prefix := range anonymousPrefixes {
			if strings.HasPrefix(path, prefix) {
				return nil
			}
		}
		return models.ErrForbidden
	}

	isAdmin := sess.IsAdmin()
	if g.revalidateAdmin {
		var err error
		isAdmin, err = g.userIsAdmin(ctx, username)
		if err != nil {
			return err
		}
	}

	if isAdmin {
		return nil
	}
	if strings.HasPrefix(path, adminPathPrefix) {
		return models.ErrForbidden
	}
	return nil
}

func (g *Guard) userIsAdmin(ctx context.Context, username string) (bool, error) {
	var isAdmin bool
	err := g.db.QueryRowContext(ctx,
		`SELECT is_admin FROM users WHERE username = ?`, username).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, nil // User deleted mid-session; treat as non-admin.
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up admin flag: %w", err)
	}
	return isAdmin, nil
}

// CanModifyProject reports whether the user has an association row linking
// them to the project.
func (g *Guard) CanModifyProject(ctx context.Context, username string, projectID int64) (bool, error) {
	var count int
	err := g.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_users WHERE username = ? AND project_id = ?`,
		username, projectID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check project access: %w", err)
	}
	return count == 1, nil
}

// CanModifyTask reports whether the task's bucket's project is associated
// with the user.
func (g *Guard) CanModifyTask(ctx context.Context, username string, taskID int64) (bool, error) {
	var count int
	err := g.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM project_users
		INNER JOIN buckets ON buckets.project_id = project_users.project_id
		INNER JOIN tasks ON tasks.bucket_id = buckets.id
		WHERE project_users.username = ? AND tasks.id = ?`,
		username, taskID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check task access: %w", err)
	}
	return count == 1, nil
}
