package kanban

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/alandsidel/kanban/internal/models"
)

// CreateTask adds a task to the project's first bucket (lowest ord),
// appending it after the bucket's current tasks. The ord computation and
// insert share a transaction so concurrent creates cannot claim the same
// slot.
func (r *Repository) CreateTask(ctx context.Context, projectID int64, name, description string) error {
	var bucketID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM buckets
		WHERE project_id = ?
		ORDER BY ord ASC
		LIMIT 1`,
		projectID).Scan(&bucketID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: project has no buckets", models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to find first bucket: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("failed to rollback task creation", "error", err)
		}
	}()

	var nextOrd int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ord), 0) + 1 FROM tasks WHERE bucket_id = ?`,
		bucketID).Scan(&nextOrd)
	if err != nil {
		return fmt.Errorf("failed to compute task order: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (bucket_id, ord, name, description) VALUES (?, ?, ?, ?)`,
		bucketID, nextOrd, name, description)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return tx.Commit()
}

// UpdateTask rewrites the task's name and description.
func (r *Repository) UpdateTask(ctx context.Context, taskID int64, name, description string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, description = ? WHERE id = ?`,
		name, description, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// ProjectForTaskInBucket resolves the project a task belongs to, scoped to
// the bucket the caller claims it is in. models.ErrNotFound means the task
// isn't in that bucket (or doesn't exist) — the two cases are deliberately
// indistinguishable.
func (r *Repository) ProjectForTaskInBucket(ctx context.Context, taskID, bucketID int64) (int64, error) {
	var projectID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT buckets.project_id
		FROM buckets
		INNER JOIN tasks ON tasks.bucket_id = buckets.id
		WHERE tasks.id = ? AND tasks.bucket_id = ?`,
		taskID, bucketID).Scan(&projectID)
	if err == sql.ErrNoRows {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve task project: %w", err)
	}
	return projectID, nil
}

// ProjectForBucket resolves the project a bucket belongs to.
func (r *Repository) ProjectForBucket(ctx context.Context, bucketID int64) (int64, error) {
	var projectID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT project_id FROM buckets WHERE id = ?`,
		bucketID).Scan(&projectID)
	if err == sql.ErrNoRows {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve bucket project: %w", err)
	}
	return projectID, nil
}

// ProjectForTask resolves the project a task belongs to through its bucket.
func (r *Repository) ProjectForTask(ctx context.Context, taskID int64) (int64, error) {
	var projectID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT buckets.project_id
		FROM buckets
		INNER JOIN tasks ON tasks.bucket_id = buckets.id
		WHERE tasks.id = ?`,
		taskID).Scan(&projectID)
	if err == sql.ErrNoRows {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve task project: %w", err)
	}
	return projectID, nil
}

// MoveTask relocates a task between buckets. Both buckets must belong to
// the same project; a mismatch is rejected with models.ErrCrossProject no
// matter what permissions the caller holds on either project. The update
// is scoped to the source bucket so a task that already moved elsewhere is
// left alone.
func (r *Repository) MoveTask(ctx context.Context, taskID, fromBucketID, toBucketID int64) error {
	fromProject, err := r.ProjectForTaskInBucket(ctx, taskID, fromBucketID)
	if err != nil {
		return err
	}
	toProject, err := r.ProjectForBucket(ctx, toBucketID)
	if err != nil {
		return err
	}
	if fromProject != toProject {
		return models.ErrCrossProject
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE tasks SET bucket_id = ? WHERE id = ? AND bucket_id = ?`,
		toBucketID, taskID, fromBucketID)
	if err != nil {
		return fmt.Errorf("failed to move task: %w", err)
	}
	return nil
}

// DeleteTask removes a task, scoped to the bucket the caller claims it is
// in.
func (r *Repository) DeleteTask(ctx context.Context, taskID, fromBucketID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND bucket_id = ?`,
		taskID, fromBucketID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}
