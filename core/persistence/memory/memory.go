// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package memory is a key-value backend held in process memory. It is used
// for tests and local development. Sorting and pagination happen in memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Backend is the registry id of this backend
const Backend = "memory"

// KeyField is the key field of every memory collection
const KeyField = "id"

// Predicate is the native criteria type of the memory backend
type Predicate func(doc map[string]any) bool

// Register adds the memory backend to reg
func Register(reg *persistence.Registry) {
	reg.Register(Backend, func(_ context.Context, _ persistence.Connection) (persistence.Repository, error) {
		return NewRepository(), nil
	})
}

// Repository holds all containers in memory
type Repository struct {
	mu         sync.RWMutex
	containers map[string]map[string]map[string]any
}

// NewRepository returns an empty repository
func NewRepository() *Repository {
	return &Repository{containers: map[string]map[string]map[string]any{}}
}

// Collection returns the collection name. Containers are created on first write.
func (r *Repository) Collection(name string) persistence.Collection {
	return &Collection{repo: r, name: name}
}

// Create creates the container name
func (r *Repository) Create(_ context.Context, name string, opts ...persistence.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.containers[name]; ok {
		return persistence.Lifecycle(fmt.Errorf("container %s: %w", name, persistence.ErrExists), opts...)
	}
	r.containers[name] = map[string]map[string]any{}
	return nil
}

// Destroy drops the container name
func (r *Repository) Destroy(_ context.Context, name string, opts ...persistence.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.containers[name]; !ok {
		return persistence.Lifecycle(fmt.Errorf("container %s: %w", name, persistence.ErrNotFound), opts...)
	}
	delete(r.containers, name)
	return nil
}

// Close is a no-op
func (r *Repository) Close(context.Context) error { return nil }

// Collection is one container of a memory repository
type Collection struct {
	repo *Repository
	name string
}

// Name returns the container name
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

// Query returns a new query on this collection
func (c *Collection) Query() persistence.Query {
	return &Query{}
}

// Cast converts time values, everything else is portable already
func (c *Collection) Cast(value any) any {
	return persistence.Cast(value, nil)
}

// Count counts matching documents
func (c *Collection) Count(ctx context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	// count ignores pagination
	q = &Query{predicates: q.predicates}
	docs := c.run(q, nil)
	return int64(len(docs)), nil
}

// Find returns copies of all matching documents
func (c *Collection) Find(ctx context.Context, criteria any, fields ...string) ([]map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	return c.run(q, fields), nil
}

// FindOne returns the first matching document
func (c *Collection) FindOne(ctx context.Context, criteria any, fields ...string) (map[string]any, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return nil, err
	}
	q.limit = 1
	docs := c.run(q, fields)
	if len(docs) == 0 {
		return nil, persistence.ErrNotFound
	}
	return docs[0], nil
}

// Insert stores a copy of doc under a new uuid
func (c *Collection) Insert(_ context.Context, doc map[string]any) (any, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	container, ok := c.repo.containers[c.name]
	if !ok {
		container = map[string]map[string]any{}
		c.repo.containers[c.name] = container
	}
	key := uuid.NewString()
	stored := clone(doc)
	stored[KeyField] = key
	container[key] = stored
	return key, nil
}

// Update merges changes into every matching document
func (c *Collection) Update(_ context.Context, criteria any, changes map[string]any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	var matched int64
	for _, doc := range c.repo.containers[c.name] {
		if !q.matches(doc) {
			continue
		}
		for k, v := range changes {
			if k == KeyField {
				continue
			}
			doc[k] = copyValue(v)
		}
		matched++
	}
	return matched, nil
}

// Remove deletes every matching document
func (c *Collection) Remove(_ context.Context, criteria any) (int64, error) {
	q, err := toQuery(criteria)
	if err != nil {
		return 0, err
	}
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	var removed int64
	container := c.repo.containers[c.name]
	for key, doc := range container {
		if q.matches(doc) {
			delete(container, key)
			removed++
		}
	}
	return removed, nil
}

func (c *Collection) run(q *Query, fields []string) []map[string]any {
	c.repo.mu.RLock()
	docs := make([]map[string]any, 0, len(c.repo.containers[c.name]))
	for _, doc := range c.repo.containers[c.name] {
		if q.matches(doc) {
			docs = append(docs, project(doc, fields))
		}
	}
	c.repo.mu.RUnlock()

	// map iteration is random, the key is the final tie breaker
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range q.order {
			if cmp := Compare(docs[i][o.field], docs[j][o.field]); cmp != 0 {
				if o.descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return Compare(docs[i][KeyField], docs[j][KeyField]) < 0
	})

	if q.skip > 0 {
		if q.skip >= int64(len(docs)) {
			return []map[string]any{}
		}
		docs = docs[q.skip:]
	}
	if q.limit > 0 && q.limit < int64(len(docs)) {
		docs = docs[:q.limit]
	}
	return docs
}

func project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return clone(doc)
	}
	result := make(map[string]any, len(fields)+1)
	result[KeyField] = doc[KeyField]
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			result[f] = copyValue(v)
		}
	}
	return result
}

func clone(doc map[string]any) map[string]any {
	return copyValue(doc).(map[string]any)
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = copyValue(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = copyValue(e)
		}
		return c
	}
	return v
}
