// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/opengeek/tacit-sub000/core/validator"
)

// Record is one persistent entity of a model, bound to a collection
type Record struct {
	model      *Model
	collection Collection
	values     map[string]any
	dirty      map[string]bool
	// stored is set once the record was loaded or inserted
	stored bool
}

// New returns a new record with default values. Defaults are not dirty.
func New(c Collection, m *Model) *Record {
	return &Record{
		model:      m,
		collection: c,
		values:     m.Defaults(),
		dirty:      map[string]bool{},
	}
}

// Load finds the first document matching criteria and hydrates a record from it
func Load(ctx context.Context, c Collection, m *Model, criteria any) (*Record, error) {
	doc, err := c.FindOne(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return FromDocument(c, m, doc), nil
}

// FromDocument returns the stored record of doc
func FromDocument(c Collection, m *Model, doc map[string]any) *Record {
	r := New(c, m)
	r.stored = true
	r.Hydrate(doc)
	return r
}

// Model returns the model of the record
func (r *Record) Model() *Model { return r.model }

// Collection returns the collection the record is bound to
func (r *Record) Collection() Collection { return r.collection }

// KeyField returns the name of the key field
func (r *Record) KeyField() string {
	if r.model.KeyField != "" {
		return r.model.KeyField
	}
	return r.collection.KeyField()
}

// NaturalKey is true if the key field is a model field supplied by
// clients rather than the key generated by the backend
func (r *Record) NaturalKey() bool {
	return r.model.KeyField != "" && r.model.KeyField != r.collection.KeyField()
}

// Key returns the key, nil for new records
func (r *Record) Key() any {
	return r.values[r.KeyField()]
}

// IsNew is true as long as the record has no key. Records with a natural
// key are new until they are loaded or inserted.
func (r *Record) IsNew() bool {
	if r.NaturalKey() {
		return !r.stored
	}
	return r.Key() == nil
}

// Set assigns a value and marks the field dirty
func (r *Record) Set(key string, value any) {
	r.values[key] = value
	r.dirty[key] = true
}

// Get returns the value of key, or def if the field is unset. Formatters
// are applied in order.
func (r *Record) Get(key string, def any, formatters ...func(any) any) any {
	value, ok := r.values[key]
	if !ok || value == nil {
		value = def
	}
	for _, f := range formatters {
		value = f(value)
	}
	return value
}

// Has returns true if the field has a value
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Dirty returns the sorted names of all fields changed since hydration
func (r *Record) Dirty() []string {
	names := make([]string, 0, len(r.dirty))
	for name := range r.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearDirty forgets all changes
func (r *Record) ClearDirty() {
	r.dirty = map[string]bool{}
}

// Mask returns all fields except the key, the discriminator, the secret and exclude
func (r *Record) Mask(exclude ...string) []string {
	skip := append([]string{r.KeyField(), r.model.Discriminator(), r.model.Secret()}, exclude...)
	return Without(r.model.FieldNames(), skip...)
}

// HydrateMask is the default mask of Hydrate: all fields plus the key, but
// not the discriminator
func (r *Record) HydrateMask() []string {
	return append([]string{r.KeyField()}, Without(r.model.FieldNames(), r.KeyField(), r.model.Discriminator())...)
}

// WritableMask returns the fields a client may write: everything but the key,
// the discriminator and the timestamps
func (r *Record) WritableMask() []string {
	exclude := []string{r.KeyField(), r.model.Discriminator()}
	if !r.model.NoTimestamps {
		exclude = append(exclude, CreatedAt, UpdatedAt)
	}
	return Without(r.model.FieldNames(), exclude...)
}

// CreateMask returns the fields a client may write on creation: the
// writable fields plus a natural key
func (r *Record) CreateMask() []string {
	if r.NaturalKey() {
		return append([]string{r.KeyField()}, r.WritableMask()...)
	}
	return r.WritableMask()
}

// OutputMask returns the key followed by Mask()
func (r *Record) OutputMask(exclude ...string) []string {
	return append([]string{r.KeyField()}, r.Mask(exclude...)...)
}

// Hydrate applies all entries of data contained in mask. Without a mask
// HydrateMask is used. On records which are not new, the dirty set is
// cleared afterwards.
func (r *Record) Hydrate(data map[string]any, mask ...string) {
	if len(mask) == 0 {
		mask = r.HydrateMask()
	}
	for _, field := range mask {
		if value, ok := data[field]; ok {
			r.Set(field, value)
		}
	}
	if !r.IsNew() {
		r.ClearDirty()
	}
}

// ToMap projects the record to mask, OutputMask if mask is empty. With cast,
// values are converted to portable types by the collection.
func (r *Record) ToMap(mask []string, cast bool) map[string]any {
	if len(mask) == 0 {
		mask = r.OutputMask()
	}
	result := make(map[string]any, len(mask))
	for _, field := range mask {
		value, ok := r.values[field]
		if !ok {
			continue
		}
		if cast {
			value = r.collection.Cast(value)
		}
		result[field] = value
	}
	return result
}

// Validate checks the record against the model rules merged with extraRules.
// An empty fieldMask validates every field, otherwise only the masked fields
// are validated.
func (r *Record) Validate(extraRules map[string]string, fieldMask []string) (bool, map[string][]validator.Failure) {
	rules := make(map[string]string, len(r.model.Rules)+len(extraRules))
	for field, rule := range r.model.Rules {
		rules[field] = rule
	}
	for field, rule := range extraRules {
		if existing, ok := rules[field]; ok && existing != "" {
			rules[field] = existing + "|" + rule
		} else {
			rules[field] = rule
		}
	}
	if len(fieldMask) > 0 {
		masked := make(map[string]string, len(fieldMask))
		for _, field := range fieldMask {
			if rule, ok := rules[field]; ok {
				masked[field] = rule
			}
		}
		rules = masked
	}

	v := validator.New(rules)
	for name, fn := range r.model.RuleFuncs {
		v.Register(name, fn)
	}
	valid := v.Check(r.values, true)
	failures, _ := v.Failures()
	return valid, failures
}

// Save inserts new records and patches dirty ones. It returns false if
// nothing was persisted.
func (r *Record) Save(ctx context.Context) (bool, error) {
	if r.IsNew() {
		return r.collection.InsertRecord(ctx, r)
	}
	if len(r.dirty) == 0 {
		return false, nil
	}
	return r.collection.PatchRecord(ctx, r)
}

// Remove deletes the record by key. It returns false if nothing was deleted.
func (r *Record) Remove(ctx context.Context) (bool, error) {
	if r.IsNew() {
		return false, nil
	}
	n, err := r.collection.Remove(ctx, Filter{r.KeyField(): r.Key()})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// String implements fmt.Stringer
func (r *Record) String() string {
	return fmt.Sprintf("%s(%v)", r.collection.Name(), r.Key())
}

// ValidationError carries the failures of a rejected write
type ValidationError struct {
	Failures map[string][]validator.Failure
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Failures))
	for field := range e.Failures {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed for " + strings.Join(fields, ", ")
}

// FieldMessages returns the failure messages grouped by field
func (e *ValidationError) FieldMessages() map[string][]string {
	return validator.Messages(e.Failures)
}
