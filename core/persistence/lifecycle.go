package persistence

import (
	"context"
	"fmt"
	"time"
)

// TimeFormat is the portable representation of time values. It has a fixed
// width, so stamps sort lexically.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// FormatTime formats t in UTC with TimeFormat
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

var now = func() time.Time { return time.Now().UTC() }

// InsertRecord is the shared insert of all backends. It stamps created_at
// and validates all fields. A generated key is assigned to r after the
// insert. A natural key is required, must be unique and is stored with
// the other fields.
func InsertRecord(ctx context.Context, c Collection, r *Record) (bool, error) {
	m := r.Model()
	if !m.NoTimestamps {
		r.Set(CreatedAt, now())
	}
	if m.Type != "" {
		r.Set(m.Discriminator(), m.Type)
	}
	var extraRules map[string]string
	if r.NaturalKey() {
		extraRules = map[string]string{r.KeyField(): "required"}
	}
	if ok, failures := r.Validate(extraRules, nil); !ok {
		return false, &ValidationError{Failures: failures}
	}

	doc := make(map[string]any, len(r.values))
	for field, value := range r.values {
		if field == c.KeyField() {
			continue
		}
		doc[field] = value
	}
	if r.NaturalKey() {
		n, err := c.Count(ctx, Filter{r.KeyField(): r.Key()})
		if err != nil {
			return false, fmt.Errorf("insert into %s: %w", c.Name(), err)
		}
		if n > 0 {
			return false, fmt.Errorf("insert %s: %w", r, ErrExists)
		}
	}
	key, err := c.Insert(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("insert into %s: %w", c.Name(), err)
	}
	if key == nil {
		return false, nil
	}
	r.values[c.KeyField()] = key
	r.stored = true
	r.ClearDirty()
	return true, nil
}

// PatchRecord is the shared patch of all backends. It stamps updated_at,
// validates the dirty fields and writes only those.
func PatchRecord(ctx context.Context, c Collection, r *Record) (bool, error) {
	m := r.Model()
	if !m.NoTimestamps {
		r.Set(UpdatedAt, now())
	}
	dirty := r.Dirty()
	if ok, failures := r.Validate(nil, dirty); !ok {
		return false, &ValidationError{Failures: failures}
	}

	changes := make(map[string]any, len(dirty))
	for _, field := range dirty {
		if field == r.KeyField() {
			continue
		}
		changes[field] = r.values[field]
	}
	matched, err := c.Update(ctx, Filter{r.KeyField(): r.Key()}, changes)
	if err != nil {
		return false, fmt.Errorf("patch %s: %w", r, err)
	}
	if matched == 0 {
		return false, nil
	}
	r.ClearDirty()
	return true, nil
}
