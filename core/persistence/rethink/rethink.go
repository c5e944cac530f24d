// Package rethink is the RethinkDB backend
package rethink

import (
	"context"
	"errors"
	"fmt"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Backend is the registry id of this backend
const Backend = "rethinkdb"

// KeyField is the primary key of every table
const KeyField = "id"

// Register adds the rethink backend to reg
func Register(reg *persistence.Registry) {
	reg.Register(Backend, func(ctx context.Context, conn persistence.Connection) (persistence.Repository, error) {
		return Open(conn)
	})
}

// Repository is a rethink database
type Repository struct {
	session  r.QueryExecutor
	database string
}

// Open connects to the database of conn
func Open(conn persistence.Connection) (*Repository, error) {
	address := conn.Server
	if address == "" {
		address = "localhost:28015"
	}
	session, err := r.Connect(r.ConnectOpts{
		Address:  address,
		Database: conn.Database,
		Username: conn.Username,
		Password: conn.Password,
	})
	if err != nil {
		return nil, err
	}
	logger.Default().Infof("connected to rethinkdb database %s", conn.Database)
	return NewRepository(session, conn.Database), nil
}

// NewRepository returns a repository on an existing session. A mock session
// works as well.
func NewRepository(session r.QueryExecutor, database string) *Repository {
	return &Repository{session: session, database: database}
}

func (repo *Repository) db() r.Term {
	return r.DB(repo.database)
}

// Collection returns the table name
func (repo *Repository) Collection(name string) persistence.Collection {
	return &Collection{repo: repo, name: name}
}

// Create creates the table name
func (repo *Repository) Create(ctx context.Context, name string, opts ...persistence.Option) error {
	err := repo.db().TableCreate(name).Exec(repo.session, r.ExecOpts{Context: ctx})
	return persistence.Lifecycle(err, opts...)
}

// Destroy drops the table name
func (repo *Repository) Destroy(ctx context.Context, name string, opts ...persistence.Option) error {
	err := repo.db().TableDrop(name).Exec(repo.session, r.ExecOpts{Context: ctx})
	return persistence.Lifecycle(err, opts...)
}

// Close closes the session if it is a real one
func (repo *Repository) Close(context.Context) error {
	if s, ok := repo.session.(*r.Session); ok {
		return s.Close()
	}
	return nil
}

// Collection is a rethink table
type Collection struct {
	repo *Repository
	name string
}

// Name returns the table name
func (c *Collection) Name() string { return c.name }

// KeyField returns "id"
func (c *Collection) KeyField() string { return KeyField }

// InsertRecord implements persistence.Persister
func (c *Collection) InsertRecord(ctx context.Context, rec *persistence.Record) (bool, error) {
	return persistence.InsertRecord(ctx, c, rec)
}

// PatchRecord implements persistence.Persister
func (c *Collection) PatchRecord(ctx context.Context, rec *persistence.Record) (bool, error) {
	return persistence.PatchRecord(ctx, c, rec)
}

// Query returns a new query
func (c *Collection) Query() persistence.Query {
	return &Query{}
}

// Cast converts time values, keys are strings already
func (c *Collection) Cast(value any) any {
	return persistence.Cast(value, nil)
}

func (c *Collection) table() r.Term {
	return c.repo.db().Table(c.name)
}

// Count counts matching documents
func (c *Collection) Count(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	cursor, err := q.filtered(c.table()).Count().Run(c.repo.session, r.RunOpts{Context: ctx})
	if err != nil {
		return 0, err
	}
	defer cursor.Close()
	var n int64
	if err := cursor.One(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Find returns all matching documents
func (c *Collection) Find(ctx context.Context, criteria any, fields ...string) ([]map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	cursor, err := q.build(c.table(), fields).Run(c.repo.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	docs := []map[string]any{}
	if err := cursor.All(&docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// FindOne returns the first matching document
func (c *Collection) FindOne(ctx context.Context, criteria any, fields ...string) (map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	one := *q
	one.limit = 1
	cursor, err := one.build(c.table(), fields).Run(c.repo.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()
	var doc map[string]any
	err = cursor.One(&doc)
	if errors.Is(err, r.ErrEmptyResult) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Insert stores doc and returns its generated key
func (c *Collection) Insert(ctx context.Context, doc map[string]any) (any, error) {
	res, err := c.table().Insert(doc).RunWrite(c.repo.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	if len(res.GeneratedKeys) == 0 {
		if id, ok := doc[KeyField]; ok {
			return id, nil
		}
		return nil, fmt.Errorf("insert into %s generated no key", c.name)
	}
	return res.GeneratedKeys[0], nil
}

// Update merges changes into all matching documents
func (c *Collection) Update(ctx context.Context, criteria any, changes map[string]any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	res, err := q.filtered(c.table()).Update(changes).RunWrite(c.repo.session, r.RunOpts{Context: ctx})
	if err != nil {
		return 0, err
	}
	return int64(res.Replaced + res.Unchanged), nil
}

// Remove deletes all matching documents
func (c *Collection) Remove(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	res, err := q.filtered(c.table()).Delete().RunWrite(c.repo.session, r.RunOpts{Context: ctx})
	if err != nil {
		return 0, err
	}
	return int64(res.Deleted), nil
}
