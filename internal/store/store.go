// Package store provides durable server-side session storage keyed by an
// opaque session ID. The primary adapters persist sessions into the
// relational database shared with the rest of the application; a memcached
// adapter exists for deployments that want sessions out of the database
// entirely.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotSupported is returned by introspection operations on backends
	// that cannot enumerate their keys (memcached).
	ErrNotSupported = errors.New("operation not supported by this store")
)

// Store is the session-store capability contract consumed by the session
// manager. Get returns a nil map and nil error when the session is missing
// or expired; that is a normal outcome, not an error.
type Store interface {
	// Get retrieves the data bag for a session, or nil if the session is
	// missing or its expiration is in the past.
	Get(ctx context.Context, id string) (map[string]any, error)
	// Set upserts the session, recomputing expiration = now + lifetime.
	Set(ctx context.Context, id string, data map[string]any) error
	// Touch refreshes the expiration watermark without rewriting the data,
	// implementing rolling sessions.
	Touch(ctx context.Context, id string) error
	// Destroy deletes the session. Deleting an absent session is not an
	// error.
	Destroy(ctx context.Context, id string) error
	// Clear deletes every session. Administrative/test operation.
	Clear(ctx context.Context) error
	// Len reports the number of stored sessions.
	Len(ctx context.Context) (int, error)
	// IDs lists every stored session ID.
	IDs(ctx context.Context) ([]string, error)
	// Close releases store resources. It does not close a shared database
	// pool.
	Close() error
}

// Options configures a store adapter.
type Options struct {
	// Lifetime is the session lifetime applied on every Set and Touch.
	// Defaults to 24 hours.
	Lifetime time.Duration

	// GCProbability is the chance, evaluated on every Get and Set, that
	// expired rows are swept. Zero disables the sweep (tests rely on
	// this); production configs typically use 0.01.
	GCProbability float64
}

func (o Options) normalize() Options {
	if o.Lifetime == 0 {
		o.Lifetime = 24 * time.Hour
	}
	return o
}
