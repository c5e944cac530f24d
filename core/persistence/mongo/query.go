package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Query is the mongo implementation of persistence.Query
type Query struct {
	filters []any
	sort    bson.D
	skip    int64
	limit   int64
	err     error
}

// Filter adds criteria. Filters translate to bson with hex string keys
// converted to ObjectIDs; bson.M and bson.D pass unchanged.
func (q *Query) Filter(criteria any) persistence.Query {
	switch c := criteria.(type) {
	case nil:
	case persistence.Filter:
		q.filters = append(q.filters, translate(c))
	case map[string]any:
		q.filters = append(q.filters, translate(c))
	case bson.M:
		q.filters = append(q.filters, c)
	case bson.D:
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
	dir := 1
	if descending {
		dir = -1
	}
	q.sort = append(q.sort, bson.E{Key: field, Value: dir})
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

func (q *Query) document() any {
	switch len(q.filters) {
	case 0:
		return bson.M{}
	case 1:
		return q.filters[0]
	}
	return bson.M{"$and": q.filters}
}

func (q *Query) sortDocument() any {
	if len(q.sort) == 0 {
		return bson.D{{Key: KeyField, Value: 1}}
	}
	return q.sort
}

func (q *Query) findOptions(fields []string) *options.FindOptions {
	opts := options.Find().SetSort(q.sortDocument())
	if q.skip > 0 {
		opts.SetSkip(q.skip)
	}
	if q.limit > 0 {
		opts.SetLimit(q.limit)
	}
	if len(fields) > 0 {
		opts.SetProjection(projection(fields))
	}
	return opts
}

func toQuery(criteria any) (*Query, error) {
	if q, ok := criteria.(*Query); ok {
		return q, q.err
	}
	q := &Query{}
	q.Filter(criteria)
	return q, q.err
}

func projection(fields []string) bson.M {
	p := bson.M{}
	for _, f := range fields {
		p[f] = 1
	}
	return p
}

func translate(filter map[string]any) bson.M {
	m := bson.M{}
	for k, v := range filter {
		if s, ok := v.(string); ok && k == KeyField {
			if id, err := primitive.ObjectIDFromHex(s); err == nil {
				v = id
			}
		}
		m[k] = v
	}
	return m
}
