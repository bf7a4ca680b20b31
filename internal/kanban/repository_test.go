package kanban

import (
	"context"
	"errors"
	"testing"

	"github.com/alandsidel/kanban/internal/database"
	"github.com/alandsidel/kanban/internal/models"
)

var defaultBuckets = []string{"Backlog", "Doing", "Review", "Done"}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewRepository(db)
}

func mustCreateUser(t *testing.T, r *Repository, username string, isAdmin bool) {
	t.Helper()
	if err := r.CreateUser(context.Background(), username, "hash", isAdmin, nil); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
}

func mustCreateProject(t *testing.T, r *Repository, owner, name string) int64 {
	t.Helper()
	id, err := r.CreateProject(context.Background(), owner, name, defaultBuckets)
	if err != nil {
		t.Fatalf("failed to create project %s: %v", name, err)
	}
	return id
}

func countRows(t *testing.T, r *Repository, query string, args ...any) int {
	t.Helper()
	var n int
	if err := r.db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func TestCreateProjectSeedsDefaultBuckets(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)

	id := mustCreateProject(t, r, "alice", "website")

	board, err := r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if len(board) != len(defaultBuckets) {
		t.Fatalf("expected %d buckets, got %d", len(defaultBuckets), len(board))
	}
	for i, b := range board {
		if b.Name != defaultBuckets[i] {
			t.Errorf("bucket %d: expected %s, got %s", i, defaultBuckets[i], b.Name)
		}
		if b.Ord != int64(i+1) {
			t.Errorf("bucket %s: expected ord %d, got %d", b.Name, i+1, b.Ord)
		}
		if len(b.Tasks) != 0 {
			t.Errorf("bucket %s: expected no tasks, got %d", b.Name, len(b.Tasks))
		}
	}

	// The owner must come out associated as a project admin.
	if n := countRows(t, r, `SELECT COUNT(*) FROM project_users WHERE project_id = ? AND username = 'alice' AND is_admin`, id); n != 1 {
		t.Errorf("expected owner association row, got %d", n)
	}
}

func TestCreateProjectDuplicateName(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	mustCreateUser(t, r, "bob", false)

	mustCreateProject(t, r, "alice", "website")

	if _, err := r.CreateProject(ctx, "alice", "website", defaultBuckets); !errors.Is(err, models.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for same owner and name, got %v", err)
	}

	// The unique constraint is per owner, not global.
	if _, err := r.CreateProject(ctx, "bob", "website", defaultBuckets); err != nil {
		t.Errorf("different owner should be able to reuse the name, got %v", err)
	}

	// A failed create must leave no partial rows behind.
	if n := countRows(t, r, `SELECT COUNT(*) FROM projects WHERE owner = 'alice'`); n != 1 {
		t.Errorf("expected 1 project for alice after failed duplicate, got %d", n)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	id := mustCreateProject(t, r, "alice", "website")

	if err := r.CreateTask(ctx, id, "ship it", "before friday"); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	if err := r.DeleteProject(ctx, id); err != nil {
		t.Fatalf("failed to delete project: %v", err)
	}

	for _, q := range []string{
		`SELECT COUNT(*) FROM projects`,
		`SELECT COUNT(*) FROM project_users`,
		`SELECT COUNT(*) FROM buckets`,
		`SELECT COUNT(*) FROM tasks`,
	} {
		if n := countRows(t, r, q); n != 0 {
			t.Errorf("%s: expected 0 after cascade delete, got %d", q, n)
		}
	}
}

func TestCreateTaskAppendsToFirstBucket(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	id := mustCreateProject(t, r, "alice", "website")

	for _, name := range []string{"first", "second", "third"} {
		if err := r.CreateTask(ctx, id, name, ""); err != nil {
			t.Fatalf("failed to create task %s: %v", name, err)
		}
	}

	board, err := r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}

	backlog := board[0]
	if backlog.Name != "Backlog" {
		t.Fatalf("expected first bucket Backlog, got %s", backlog.Name)
	}
	if len(backlog.Tasks) != 3 {
		t.Fatalf("expected 3 tasks in Backlog, got %d", len(backlog.Tasks))
	}
	for i, want := range []string{"first", "second", "third"} {
		task := backlog.Tasks[i]
		if task.Name != want {
			t.Errorf("task %d: expected %s, got %s", i, want, task.Name)
		}
		if task.Ord != int64(i+1) {
			t.Errorf("task %s: expected ord %d, got %d", task.Name, i+1, task.Ord)
		}
	}
	for _, other := range board[1:] {
		if len(other.Tasks) != 0 {
			t.Errorf("bucket %s should be empty, has %d tasks", other.Name, len(other.Tasks))
		}
	}
}

func TestCreateTaskWithoutBuckets(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)

	id, err := r.CreateProject(ctx, "alice", "empty", nil)
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	if err := r.CreateTask(ctx, id, "orphan", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for bucketless project, got %v", err)
	}
}

func TestMoveTaskWithinProject(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	id := mustCreateProject(t, r, "alice", "website")

	if err := r.CreateTask(ctx, id, "ship it", ""); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	board, err := r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	task := board[0].Tasks[0]
	doing := board[1]

	if err := r.MoveTask(ctx, task.ID, task.BucketID, doing.ID); err != nil {
		t.Fatalf("failed to move task: %v", err)
	}

	board, err = r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if len(board[0].Tasks) != 0 {
		t.Error("task still present in source bucket")
	}
	if len(board[1].Tasks) != 1 || board[1].Tasks[0].ID != task.ID {
		t.Error("task missing from destination bucket")
	}
}

func TestMoveTaskCrossProjectRejected(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	p1 := mustCreateProject(t, r, "alice", "website")
	p2 := mustCreateProject(t, r, "alice", "backend")

	if err := r.CreateTask(ctx, p1, "ship it", ""); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	b1, err := r.Board(ctx, p1, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	b2, err := r.Board(ctx, p2, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	task := b1[0].Tasks[0]

	err = r.MoveTask(ctx, task.ID, task.BucketID, b2[0].ID)
	if !errors.Is(err, models.ErrCrossProject) {
		t.Fatalf("expected ErrCrossProject, got %v", err)
	}

	// The task must not have moved.
	b1, err = r.Board(ctx, p1, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if len(b1[0].Tasks) != 1 {
		t.Error("rejected move still relocated the task")
	}
}

func TestMoveTaskWrongSourceBucket(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	id := mustCreateProject(t, r, "alice", "website")

	if err := r.CreateTask(ctx, id, "ship it", ""); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	board, err := r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	task := board[0].Tasks[0]
	review, done := board[2], board[3]

	// Claiming the task lives in Review when it is in Backlog must fail.
	err = r.MoveTask(ctx, task.ID, review.ID, done.ID)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for stale source bucket, got %v", err)
	}
}

func TestUpdateTask(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	id := mustCreateProject(t, r, "alice", "website")

	if err := r.CreateTask(ctx, id, "ship it", "old"); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	board, err := r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	task := board[0].Tasks[0]

	if err := r.UpdateTask(ctx, task.ID, "ship it now", "new"); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}

	board, err = r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	got := board[0].Tasks[0]
	if got.Name != "ship it now" || got.Description != "new" {
		t.Errorf("unexpected task after update: %+v", got)
	}
}

func TestDeleteTaskScopedToBucket(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	id := mustCreateProject(t, r, "alice", "website")

	if err := r.CreateTask(ctx, id, "ship it", ""); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	board, err := r.Board(ctx, id, "alice")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	task := board[0].Tasks[0]

	// Wrong bucket: no-op.
	if err := r.DeleteTask(ctx, task.ID, board[1].ID); err != nil {
		t.Fatalf("failed scoped delete: %v", err)
	}
	if n := countRows(t, r, `SELECT COUNT(*) FROM tasks`); n != 1 {
		t.Error("delete with wrong bucket removed the task")
	}

	if err := r.DeleteTask(ctx, task.ID, task.BucketID); err != nil {
		t.Fatalf("failed to delete task: %v", err)
	}
	if n := countRows(t, r, `SELECT COUNT(*) FROM tasks`); n != 0 {
		t.Error("task survived delete")
	}
}

func TestBoardHiddenFromNonMembers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	mustCreateUser(t, r, "bob", false)
	id := mustCreateProject(t, r, "alice", "website")

	board, err := r.Board(ctx, id, "bob")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if len(board) != 0 {
		t.Errorf("non-member should see an empty board, got %d buckets", len(board))
	}

	if err := r.AddProjectUser(ctx, id, "bob", false); err != nil {
		t.Fatalf("failed to add project user: %v", err)
	}
	board, err = r.Board(ctx, id, "bob")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if len(board) != len(defaultBuckets) {
		t.Errorf("member should see the board, got %d buckets", len(board))
	}

	if err := r.AddProjectUser(ctx, id, "bob", false); !errors.Is(err, models.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for repeated association, got %v", err)
	}

	if err := r.RemoveProjectUser(ctx, id, "bob"); err != nil {
		t.Fatalf("failed to remove project user: %v", err)
	}
	board, err = r.Board(ctx, id, "bob")
	if err != nil {
		t.Fatalf("failed to fetch board: %v", err)
	}
	if len(board) != 0 {
		t.Error("removed member still sees the board")
	}
}

func TestListProjectsOrdered(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	mustCreateProject(t, r, "alice", "zeta")
	mustCreateProject(t, r, "alice", "alpha")

	projects, err := r.ListProjects(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Name != "alpha" || projects[1].Name != "zeta" {
		t.Errorf("projects not ordered by name: %v", projects)
	}
}

func TestUserLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.CreateUser(ctx, "alice", "hash", false, nil); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := r.CreateUser(ctx, "alice", "hash", false, nil); !errors.Is(err, models.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	u, err := r.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if u.IsAdmin || u.Email != nil {
		t.Errorf("unexpected user record: %+v", u)
	}

	if err := r.SetAdmin(ctx, "alice", true); err != nil {
		t.Fatalf("failed to set admin: %v", err)
	}
	email := "alice@example.com"
	if err := r.SetEmail(ctx, "alice", &email); err != nil {
		t.Fatalf("failed to set email: %v", err)
	}

	u, err = r.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if !u.IsAdmin {
		t.Error("admin flag not persisted")
	}
	if u.Email == nil || *u.Email != email {
		t.Errorf("email not persisted: %v", u.Email)
	}

	if err := r.SetEmail(ctx, "alice", nil); err != nil {
		t.Fatalf("failed to clear email: %v", err)
	}
	u, _ = r.GetUser(ctx, "alice")
	if u.Email != nil {
		t.Error("nil email should clear the column")
	}

	if err := r.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}
	if _, err := r.GetUser(ctx, "alice"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteUserCascadesOwnedProjects(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	mustCreateUser(t, r, "alice", false)
	mustCreateProject(t, r, "alice", "website")

	if err := r.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}
	if n := countRows(t, r, `SELECT COUNT(*) FROM projects`); n != 0 {
		t.Errorf("expected owned projects to cascade, got %d rows", n)
	}
}
