package persistence

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by FindOne and Load if nothing matches
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a container which already exists
	ErrExists = errors.New("already exists")
	// ErrUnsupportedCriteria is returned for criteria a backend cannot interpret
	ErrUnsupportedCriteria = errors.New("unsupported criteria")
)

// Filter is an exact match filter. A document matches if it matches every entry.
type Filter map[string]any

// Query builds a backend native query without leaking the native type
type Query interface {
	// Filter restricts the query, criteria follow the same rules as for Find
	Filter(criteria any) Query
	OrderBy(field string, descending bool) Query
	Skip(n int64) Query
	Limit(n int64) Query
}

// Persister writes records. Backends implement it by delegating to
// InsertRecord and PatchRecord of this package.
type Persister interface {
	InsertRecord(ctx context.Context, r *Record) (bool, error)
	PatchRecord(ctx context.Context, r *Record) (bool, error)
}

// Collection is one named container in a backend
type Collection interface {
	Persister

	Name() string
	// KeyField is the name of the field holding the backend generated key
	KeyField() string

	Count(ctx context.Context, criteria any) (int64, error)
	// Find returns raw documents. If fields is not empty, documents are
	// projected to those fields.
	Find(ctx context.Context, criteria any, fields ...string) ([]map[string]any, error)
	FindOne(ctx context.Context, criteria any, fields ...string) (map[string]any, error)
	// Insert stores doc and returns its generated key
	Insert(ctx context.Context, doc map[string]any) (any, error)
	// Update applies changes to all matching documents and returns the
	// number of matched documents
	Update(ctx context.Context, criteria any, changes map[string]any) (int64, error)
	// Remove deletes all matching documents and returns their number
	Remove(ctx context.Context, criteria any) (int64, error)

	Query() Query
	// Cast converts a backend native value into a portable one. Portable
	// values pass unchanged.
	Cast(value any) any
}

// Repository is an open connection to a backend
type Repository interface {
	Collection(name string) Collection
	// Create creates the container name
	Create(ctx context.Context, name string, opts ...Option) error
	// Destroy drops the container name
	Destroy(ctx context.Context, name string, opts ...Option) error
	Close(ctx context.Context) error
}

// Option modifies a container lifecycle operation
type Option func(*Options)

// Options of a container lifecycle operation
type Options struct {
	IgnoreErrors bool
}

// IgnoreErrors makes Create and Destroy swallow failures, for example a
// container which already exists or is already gone
func IgnoreErrors() Option {
	return func(o *Options) { o.IgnoreErrors = true }
}

// Lifecycle applies opts to the outcome err of a Create or Destroy
func Lifecycle(err error, opts ...Option) error {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.IgnoreErrors {
		return nil
	}
	return err
}
