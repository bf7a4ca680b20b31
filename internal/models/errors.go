package models

import "errors"

// Domain error taxonomy. NotFound is a normal negative result and is only
// returned where the caller expects a record to exist.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden indicates the acting principal may not perform the
	// requested operation. It carries no information about whether the
	// target resource exists.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicate indicates a uniqueness constraint was violated. It is
	// wrapped with a user-facing detail distinguishing it from generic
	// persistence errors.
	ErrDuplicate = errors.New("duplicate record")

	// ErrCrossProject indicates an attempt to move a task between buckets
	// belonging to different projects.
	ErrCrossProject = errors.New("cannot move a task from one project to another")
)
