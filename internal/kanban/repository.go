// Package kanban holds the repositories for projects, buckets, tasks and
// users. Handlers are expected to run the relevant ownership check before
// calling any mutating operation here.
package kanban

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/alandsidel/kanban/internal/database"
)

// Repository bundles all kanban database operations over the shared pool.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// isUniqueViolation recognizes uniqueness-constraint failures from both
// backends so they can surface as models.ErrDuplicate with a user-facing
// detail instead of a generic persistence error. modernc.org/sqlite exposes
// no stable error type for this, hence the message match.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
