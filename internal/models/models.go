// Package models holds the kanban entity types shared by the repositories
// and the HTTP layer.
package models

// User is an account that can log in. Username is the primary key.
type User struct {
	Username string  `json:"username"`
	Password string  `json:"-"` // bcrypt hash, never serialized
	IsAdmin  bool    `json:"isAdmin"`
	Email    *string `json:"email"`
}

// Project is a kanban board owned by a user. Name is unique per owner.
type Project struct {
	ID    int64  `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ProjectUser links a user to a project. Exactly one row exists per
// (project_id, username) pair; its presence grants access.
type ProjectUser struct {
	ProjectID int64  `json:"projectId"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"isAdmin"`
}

// Bucket is a named column in a project, displayed in Ord order.
type Bucket struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"projectId"`
	Name      string `json:"name"`
	Ord       int64  `json:"ord"`
}

// Task belongs to exactly one bucket at a time.
type Task struct {
	ID          int64  `json:"id"`
	BucketID    int64  `json:"bucketId"`
	Ord         int64  `json:"ord"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BoardBucket is a bucket with its tasks attached, as returned by the
// board listing endpoint.
type BoardBucket struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Ord   int64  `json:"ord"`
	Tasks []Task `json:"tasks"`
}

// UserSummary is the shape returned by the admin user listing.
type UserSummary struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	IsAdmin  bool    `json:"is_admin"`
}
