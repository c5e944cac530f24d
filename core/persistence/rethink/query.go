package rethink

import (
	"fmt"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

type order struct {
	field      string
	descending bool
}

// Query is the rethink implementation of persistence.Query. Native criteria
// are terms or predicate functions as accepted by Filter of the driver.
type Query struct {
	filters []any
	order   []order
	skip    int64
	limit   int64
	err     error
}

// Filter adds criteria
func (q *Query) Filter(criteria any) persistence.Query {
	switch c := criteria.(type) {
	case nil:
	case persistence.Filter:
		q.filters = append(q.filters, map[string]any(c))
	case map[string]any:
		q.filters = append(q.filters, c)
	case r.Term, func(r.Term) r.Term, func(r.Term) any:
		q.filters = append(q.filters, c)
	case *Query:
		q.filters = append(q.filters, c.filters...)
	default:
		q.err = fmt.Errorf("%w: %T", persistence.ErrUnsupportedCriteria, criteria)
	}
	return q
}

// OrderBy adds a sort field
func (q *Query) OrderBy(field string, descending bool) persistence.Query {
	q.order = append(q.order, order{field: field, descending: descending})
	return q
}

// Skip skips the first n documents
func (q *Query) Skip(n int64) persistence.Query {
	q.skip = n
	return q
}

// Limit returns at most n documents
func (q *Query) Limit(n int64) persistence.Query {
	q.limit = n
	return q
}

func (q *Query) filtered(t r.Term) r.Term {
	for _, f := range q.filters {
		t = t.Filter(f)
	}
	return t
}

func (q *Query) build(t r.Term, fields []string) r.Term {
	t = q.filtered(t)
	if len(q.order) > 0 {
		args := make([]any, len(q.order))
		for i, o := range q.order {
			if o.descending {
				args[i] = r.Desc(o.field)
			} else {
				args[i] = r.Asc(o.field)
			}
		}
		t = t.OrderBy(args...)
	}
	if q.skip > 0 {
		t = t.Skip(q.skip)
	}
	if q.limit > 0 {
		t = t.Limit(q.limit)
	}
	if len(fields) > 0 {
		pluck := make([]any, 0, len(fields)+1)
		pluck = append(pluck, KeyField)
		for _, f := range fields {
			pluck = append(pluck, f)
		}
		t = t.Pluck(pluck...)
	}
	return t
}

func toQuery(criteria any) (*Query, error) {
	if q, ok := criteria.(*Query); ok {
		return q, q.err
	}
	q := &Query{}
	q.Filter(criteria)
	return q, q.err
}
