package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Where is the native criteria type: a boolean SQL expression with ?
// placeholders. The key is the column id, the document the jsonb column
// document. A literal ?, as in the jsonb operators ?, ?| and ?&, is
// written ??.
type Where struct {
	SQL  string
	Args []any
}

type order struct {
	field      string
	descending bool
}

// Query is the postgres implementation of persistence.Query
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
	case Where:
		q.filters = append(q.filters, c)
	case *Query:
		q.filters = append(q.filters, c.filters...)
	default:
		q.err = fmt.Errorf("%w: %T", persistence.ErrUnsupportedCriteria, criteria)
	}
	return q
}

// OrderBy adds a sort field. Values are compared as jsonb, so numbers sort
// numerically and strings lexically.
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

func (q *Query) where() (string, []any, error) {
	return q.whereFrom(1)
}

// whereFrom renders the filters with placeholders numbered from first
func (q *Query) whereFrom(first int) (string, []any, error) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(first+len(args)-1)
	}
	for _, f := range q.filters {
		switch c := f.(type) {
		case map[string]any:
			document := map[string]any{}
			for k, v := range c {
				if k == KeyField {
					conditions = append(conditions, "id = "+next(fmt.Sprint(v)))
					continue
				}
				document[k] = persistence.Cast(v, nil)
			}
			if len(document) > 0 {
				raw, err := json.Marshal(document)
				if err != nil {
					return "", nil, err
				}
				conditions = append(conditions, "document @> "+next(string(raw))+"::jsonb")
			}
		case Where:
			rendered, err := renderWhere(c, next)
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, "("+rendered+")")
		}
	}
	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// renderWhere replaces every ? of w with a numbered placeholder and every
// ?? with a literal ?
func renderWhere(w Where, next func(any) string) (string, error) {
	var b strings.Builder
	used := 0
	for i := 0; i < len(w.SQL); i++ {
		if w.SQL[i] != '?' {
			b.WriteByte(w.SQL[i])
			continue
		}
		if i+1 < len(w.SQL) && w.SQL[i+1] == '?' {
			b.WriteByte('?')
			i++
			continue
		}
		if used == len(w.Args) {
			return "", fmt.Errorf("where %q has more placeholders than the %d arguments", w.SQL, len(w.Args))
		}
		b.WriteString(next(w.Args[used]))
		used++
	}
	if used != len(w.Args) {
		return "", fmt.Errorf("where %q expects %d arguments, got %d", w.SQL, used, len(w.Args))
	}
	return b.String(), nil
}

// tail renders order, offset and limit. The key is the final tie breaker.
func (q *Query) tail() string {
	var terms []string
	for _, o := range q.order {
		term := "document->" + pq.QuoteLiteral(o.field)
		if o.field == KeyField {
			term = "id"
		}
		if o.descending {
			term += " DESC"
		}
		terms = append(terms, term)
	}
	terms = append(terms, "id")
	tail := " ORDER BY " + strings.Join(terms, ", ")
	if q.skip > 0 {
		tail += " OFFSET " + strconv.FormatInt(q.skip, 10)
	}
	if q.limit > 0 {
		tail += " LIMIT " + strconv.FormatInt(q.limit, 10)
	}
	return tail
}

func toQuery(criteria any) (*Query, error) {
	if q, ok := criteria.(*Query); ok {
		return q, q.err
	}
	q := &Query{}
	q.Filter(criteria)
	return q, q.err
}
