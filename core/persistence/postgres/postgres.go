// Package postgres stores documents as jsonb in PostgreSQL. Every container is
// a table with a varchar primary key and a jsonb document column.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/opengeek/tacit-sub000/core/csql"
	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Backend is the registry id of this backend
const Backend = "postgres"

// KeyField is the key column of every table
const KeyField = "id"

// Register adds the postgres backend to reg
func Register(reg *persistence.Registry) {
	reg.Register(Backend, func(ctx context.Context, conn persistence.Connection) (persistence.Repository, error) {
		return Open(ctx, conn)
	})
}

// DataSourceName returns the postgres url of conn. A server starting with
// postgres:// is taken as is. The options sslmode (default disable) and
// schema are honoured.
func DataSourceName(conn persistence.Connection) string {
	if strings.HasPrefix(conn.Server, "postgres://") || strings.HasPrefix(conn.Server, "postgresql://") {
		return conn.Server
	}
	u := url.URL{Scheme: "postgres", Host: conn.Server, Path: "/" + conn.Database}
	if u.Host == "" {
		u.Host = "localhost:5432"
	}
	if conn.Username != "" {
		u.User = url.UserPassword(conn.Username, conn.Password)
	}
	sslmode := conn.Options["sslmode"]
	if sslmode == "" {
		sslmode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	return u.String()
}

// Repository is a postgres schema
type Repository struct {
	db *csql.DB
}

// Open connects to the database of conn
func Open(ctx context.Context, conn persistence.Connection) (*Repository, error) {
	db, err := csql.OpenWithSchema(ctx, DataSourceName(conn), conn.Options["schema"])
	if err != nil {
		return nil, err
	}
	logger.Default().Infof("connected to postgres database %s, schema %s", conn.Database, db.Schema)
	return NewRepository(db), nil
}

// NewRepository returns a repository on an open database
func NewRepository(db *csql.DB) *Repository {
	return &Repository{db: db}
}

// Collection returns the table name
func (r *Repository) Collection(name string) persistence.Collection {
	return &Collection{db: r.db, name: name}
}

// Create creates the table name
func (r *Repository) Create(ctx context.Context, name string, opts ...persistence.Option) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE `+r.db.Table(name)+
		` (id varchar PRIMARY KEY, document jsonb NOT NULL DEFAULT '{}'::jsonb);`)
	return persistence.Lifecycle(err, opts...)
}

// Destroy drops the table name
func (r *Repository) Destroy(ctx context.Context, name string, opts ...persistence.Option) error {
	_, err := r.db.ExecContext(ctx, `DROP TABLE `+r.db.Table(name)+`;`)
	return persistence.Lifecycle(err, opts...)
}

// Close closes the database
func (r *Repository) Close(context.Context) error {
	return r.db.Close()
}

// Collection is one table
type Collection struct {
	db   *csql.DB
	name string
}

// Name returns the table name
func (c *Collection) Name() string { return c.name }

// KeyField returns "id"
func (c *Collection) KeyField() string { return KeyField }

// InsertRecord implements persistence.Persister
func (c *Collection) InsertRecord(ctx context.Context, r *persistence.Record) (bool, error) {
	return persistence.InsertRecord(ctx, c, r)
}

// PatchRecord implements persistence.Persister
func (c *Collection) PatchRecord(ctx context.Context, r *persistence.Record) (bool, error) {
	return persistence.PatchRecord(ctx, c, r)
}

// Query returns a new query
func (c *Collection) Query() persistence.Query {
	return &Query{}
}

// Cast converts time values. Documents come back as json, so everything
// else is portable already.
func (c *Collection) Cast(value any) any {
	return persistence.Cast(value, nil)
}

// Count counts matching documents
func (c *Collection) Count(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.db.QueryRowContext(ctx, `SELECT count(*) FROM `+c.db.Table(c.name)+where+`;`, args...).Scan(&n)
	return n, err
}

// Find returns all matching documents
func (c *Collection) Find(ctx context.Context, criteria any, fields ...string) ([]map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	return c.find(ctx, q, fields)
}

// FindOne returns the first matching document
func (c *Collection) FindOne(ctx context.Context, criteria any, fields ...string) (map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	one := *q
	one.limit = 1
	docs, err := c.find(ctx, &one, fields)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, persistence.ErrNotFound
	}
	return docs[0], nil
}

func (c *Collection) find(ctx context.Context, q *Query, fields []string) ([]map[string]any, error) {
	where, args, err := q.where()
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT id, document FROM `+c.db.Table(c.name)+where+q.tail()+`;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("corrupt document %s in %s: %w", id, c.name, err)
		}
		doc[KeyField] = id
		docs = append(docs, project(doc, fields))
	}
	return docs, rows.Err()
}

// Insert stores doc under a new uuid
func (c *Collection) Insert(ctx context.Context, doc map[string]any) (any, error) {
	key := uuid.NewString()
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != KeyField {
			body[k] = c.Cast(v)
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO `+c.db.Table(c.name)+` (id, document) VALUES ($1, $2::jsonb);`, key, string(raw))
	if err != nil {
		return nil, err
	}
	return key, nil
}

// Update merges changes into all matching documents
func (c *Collection) Update(ctx context.Context, criteria any, changes map[string]any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	body := make(map[string]any, len(changes))
	for k, v := range changes {
		if k != KeyField {
			body[k] = c.Cast(v)
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	where, args, err := q.whereFrom(2)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, `UPDATE `+c.db.Table(c.name)+` SET document = document || $1::jsonb`+where+`;`,
		append([]any{string(raw)}, args...)...)
	return affected(res, err)
}

// Remove deletes all matching documents
func (c *Collection) Remove(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, `DELETE FROM `+c.db.Table(c.name)+where+`;`, args...)
	return affected(res, err)
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return doc
	}
	result := make(map[string]any, len(fields)+1)
	result[KeyField] = doc[KeyField]
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			result[f] = v
		}
	}
	return result
}
