package memory

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

type order struct {
	field      string
	descending bool
}

// Query is the memory implementation of persistence.Query
type Query struct {
	predicates []Predicate
	order      []order
	skip       int64
	limit      int64
	err        error
}

// Filter adds criteria, all of them must match
func (q *Query) Filter(criteria any) persistence.Query {
	switch c := criteria.(type) {
	case nil:
	case persistence.Filter:
		q.predicates = append(q.predicates, filterPredicate(c))
	case map[string]any:
		q.predicates = append(q.predicates, filterPredicate(c))
	case Predicate:
		q.predicates = append(q.predicates, c)
	case func(map[string]any) bool:
		q.predicates = append(q.predicates, c)
	case *Query:
		q.predicates = append(q.predicates, c.predicates...)
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

// Limit returns at most n documents, 0 means no limit
func (q *Query) Limit(n int64) persistence.Query {
	q.limit = n
	return q
}

func (q *Query) matches(doc map[string]any) bool {
	for _, p := range q.predicates {
		if !p(doc) {
			return false
		}
	}
	return true
}

func toQuery(criteria any) (*Query, error) {
	if q, ok := criteria.(*Query); ok {
		c := *q
		return &c, q.err
	}
	q := &Query{}
	q.Filter(criteria)
	return q, q.err
}

func filterPredicate(filter map[string]any) Predicate {
	return func(doc map[string]any) bool {
		for k, want := range filter {
			got, ok := doc[k]
			if !ok && want != nil {
				return false
			}
			if !equal(got, want) {
				return false
			}
		}
		return true
	}
}

// Compare orders two field values. Nil sorts first, numbers compare
// numerically, times chronologically, everything else by string form.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
