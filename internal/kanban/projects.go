package kanban

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/alandsidel/kanban/internal/models"
)

// ListProjects returns the projects the user is associated with, ordered
// by name.
func (r *Repository) ListProjects(ctx context.Context, username string) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT projects.id, projects.owner, projects.name
		FROM projects
		INNER JOIN project_users ON project_users.project_id = projects.id
		WHERE project_users.username = ?
		ORDER BY projects.name`,
		username)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Owner, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject creates a project, associates the owner as its admin, and
// seeds the default buckets in order with ord values starting at 1 — all
// in one transaction so a failure leaves nothing behind.
func (r *Repository) CreateProject(ctx context.Context, owner, name string, defaultBuckets []string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("failed to rollback project creation", "error", err)
		}
	}()

	projectID, err := tx.InsertReturningID(ctx,
		`INSERT INTO projects (owner, name) VALUES (?, ?)`, owner, name)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: project name already exists, project names must be unique", models.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to insert project %q: %w", name, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_users (project_id, username, is_admin) VALUES (?, ?, ?)`,
		projectID, owner, true)
	if err != nil {
		return 0, fmt.Errorf("failed to associate owner with project: %w", err)
	}

	for i, bucket := range defaultBuckets {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO buckets (project_id, name, ord) VALUES (?, ?, ?)`,
			projectID, bucket, i+1)
		if err != nil {
			return 0, fmt.Errorf("failed to create default bucket %q: %w", bucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit project creation: %w", err)
	}
	return projectID, nil
}

// DeleteProject removes the project; buckets, tasks and association rows
// go with it via the schema's cascading deletes.
func (r *Repository) DeleteProject(ctx context.Context, projectID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// AddProjectUser grants a user access to a project. The association table's
// primary key keeps the pair unique.
func (r *Repository) AddProjectUser(ctx context.Context, projectID int64, username string, isAdmin bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_users (project_id, username, is_admin) VALUES (?, ?, ?)`,
		projectID, username, isAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user is already associated with this project", models.ErrDuplicate)
		}
		return fmt.Errorf("failed to add project user: %w", err)
	}
	return nil
}

// RemoveProjectUser revokes a user's access to a project.
func (r *Repository) RemoveProjectUser(ctx context.Context, projectID int64, username string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM project_users WHERE project_id = ? AND username = ?`,
		projectID, username)
	if err != nil {
		return fmt.Errorf("failed to remove project user: %w", err)
	}
	return nil
}

// Board returns the project's buckets in display order, each with its
// tasks in display order, limited to projects the user belongs to.
func (r *Repository) Board(ctx context.Context, projectID int64, username string) ([]models.BoardBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT buckets.id, buckets.name, buckets.ord
		FROM buckets
		INNER JOIN projects ON projects.id = buckets.project_id
		INNER JOIN project_users ON project_users.project_id = projects.id
		WHERE project_users.username = ? AND projects.id = ?
		ORDER BY buckets.ord`,
		username, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	buckets := []models.BoardBucket{}
	for rows.Next() {
		var b models.BoardBucket
		if err := rows.Scan(&b.ID, &b.Name, &b.Ord); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range buckets {
		tasks, err := r.tasksForBucket(ctx, buckets[i].ID)
		if err != nil {
			return nil, err
		}
		buckets[i].Tasks = tasks
	}
	return buckets, nil
}

func (r *Repository) tasksForBucket(ctx context.Context, bucketID int64) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, bucket_id, ord, name, COALESCE(description, '')
		FROM tasks
		WHERE bucket_id = ?
		ORDER BY ord`,
		bucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.BucketID, &t.Ord, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
