// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/rest"
)

const (
	// DefaultLimit is the page size of collection requests without limit
	DefaultLimit = 25

	sortAscending  = "asc"
	sortDescending = "desc"
)

func newRequest(res *Resource, operation core.Operation, r *http.Request) Request {
	parameters := map[string]string{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			parameters[key] = values[0]
		}
	}
	return Request{
		Resource:   res.Configuration.Resource,
		Operation:  operation,
		Selectors:  mux.Vars(r),
		Parameters: parameters,
	}
}

func parseInt(r *http.Request, name string, def int64) (int64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, rest.BadRequest(fmt.Sprintf("Invalid Parameter %s", name)).WithProperty(name)
	}
	return n, nil
}

// parsePage reads limit and offset
func parsePage(r *http.Request) (page, error) {
	limit, err := parseInt(r, "limit", DefaultLimit)
	if err != nil {
		return page{}, err
	}
	if limit < 1 {
		return page{}, rest.BadRequest("Invalid Parameter limit").WithProperty("limit")
	}
	offset, err := parseInt(r, "offset", 0)
	if err != nil {
		return page{}, err
	}
	if offset < 0 {
		return page{}, rest.BadRequest("Invalid Parameter offset").WithProperty("offset")
	}
	return page{limit: limit, offset: offset}, nil
}

// parseSort reads sort and sort_dir. The default order is the configured
// default sort, else the creation time, else the key. Descending unless
// configured otherwise.
func (res *Resource) parseSort(r *http.Request) (string, bool, error) {
	rc := &res.Configuration
	field := r.URL.Query().Get("sort")
	if field == "" {
		field = rc.DefaultSort
	}
	if field == "" {
		if res.model.NoTimestamps {
			field = res.keys[0]
		} else {
			field = persistence.CreatedAt
		}
	} else if field != res.keys[0] && field != res.collection.KeyField() && !res.model.HasField(field) {
		return "", false, rest.BadRequest("Invalid Parameter sort").WithProperty("sort")
	}

	direction := r.URL.Query().Get("sort_dir")
	if direction == "" {
		direction = rc.DefaultSortDir
	}
	switch direction {
	case "", sortDescending:
		return field, true, nil
	case sortAscending:
		return field, false, nil
	}
	return "", false, rest.BadRequest("Invalid Parameter sort_dir").WithProperty("sort_dir")
}

// present projects rec to mask and runs the interceptor of request
func (b *Backend) present(r *http.Request, request Request, rec *persistence.Record, mask []string) (map[string]any, error) {
	return b.intercept(r.Context(), request, rec.ToMap(mask, true))
}

func (b *Backend) list(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, err := parsePage(r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		sortField, descending, err := res.parseSort(r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}

		p.total, err = res.collection.Count(ctx, nil)
		if err != nil {
			rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4711: count %s: %w", res.collection.Name(), err)))
			return
		}

		items := []map[string]any{}
		if p.offset < p.total {
			query := res.collection.Query().OrderBy(sortField, descending).Skip(p.offset).Limit(p.limit)
			docs, err := res.collection.Find(ctx, query)
			if err != nil {
				rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4712: find %s: %w", res.collection.Name(), err)))
				return
			}
			request := newRequest(res, core.OperationList, r)
			for _, doc := range docs {
				rec := persistence.FromDocument(res.collection, res.model, doc)
				item, err := b.present(r, request, rec, rec.OutputMask())
				if err != nil {
					rest.WriteError(w, r, err)
					return
				}
				items = append(items, item)
			}
		}

		rest.Write(w, r, http.StatusOK, p.envelope(r.URL, res.collection.Name(), items))
	}
}

func (b *Backend) create(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := b.readBody(w, r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		request := newRequest(res, core.OperationCreate, r)
		body, err = b.intercept(ctx, request, body)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}

		rec := persistence.New(res.collection, res.model)
		rec.Hydrate(body, rec.CreateMask()...)
		ok, err := rec.Save(ctx)
		if err != nil {
			var validationErr *persistence.ValidationError
			if errors.As(err, &validationErr) {
				rest.WriteError(w, r, err)
				return
			}
			if errors.Is(err, persistence.ErrExists) {
				rest.WriteError(w, r, rest.Conflict("Resource Exists").
					WithDescription("A "+res.Configuration.Resource+" with this key already exists.").
					WithContext("key", rec.Key()))
				return
			}
			rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4713: insert into %s: %w", res.collection.Name(), err)))
			return
		}
		if !ok {
			rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4714: insert into %s returned no key", res.collection.Name())))
			return
		}

		representation := rec.ToMap(rec.OutputMask(), true)
		w.Header().Set("Location", res.location(representation))
		b.notify(ctx, res.Configuration.Resource, core.OperationCreate, representation)
		rest.Write(w, r, http.StatusCreated, representation)
	}
}

// location returns the item route of the given representation
func (res *Resource) location(representation map[string]any) string {
	path := res.listRoute
	for _, key := range res.keys {
		path += "/" + segment(representation[key])
	}
	return path
}

// segment formats a key value as a path segment. Floats are written
// without exponent so they match the segment parsing of load.
func segment(value any) string {
	if f, ok := value.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}
