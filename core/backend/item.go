// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/rest"
)

// load returns the record selected by the path segments of r. Segments
// are matched as strings first, then as the numbers or booleans they spell.
func (b *Backend) load(res *Resource, r *http.Request) (*persistence.Record, error) {
	vars := mux.Vars(r)
	candidates := make([][]any, len(res.keys))
	for i, key := range res.keys {
		candidates[i] = keyValues(vars[key])
	}
	var criteria persistence.Filter
	for _, values := range combinations(candidates) {
		criteria = persistence.Filter{}
		for i, key := range res.keys {
			criteria[key] = values[i]
		}
		rec, err := persistence.Load(r.Context(), res.collection, res.model, criteria)
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, rest.ServerError(fmt.Errorf("Error 4721: load from %s: %w", res.collection.Name(), err))
		}
		return rec, nil
	}
	return nil, rest.NotFound("").WithContext("criteria", criteria)
}

// keyValues returns the values a path segment may stand for, the segment
// itself first
func keyValues(s string) []any {
	values := []any{s}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		values = append(values, f)
	}
	switch s {
	case "true":
		values = append(values, true)
	case "false":
		values = append(values, false)
	}
	return values
}

// combinations returns every choice of one value per position, in order
func combinations(candidates [][]any) [][]any {
	result := [][]any{{}}
	for _, values := range candidates {
		next := make([][]any, 0, len(result)*len(values))
		for _, prefix := range result {
			for _, v := range values {
				combination := append(append(make([]any, 0, len(prefix)+1), prefix...), v)
				next = append(next, combination)
			}
		}
		result = next
	}
	return result
}

// projection returns the output mask restricted to the comma separated
// fields parameter. The key is always included.
func projection(rec *persistence.Record, fields string) []string {
	mask := rec.OutputMask()
	if fields == "" {
		return mask
	}
	wanted := map[string]bool{rec.KeyField(): true}
	for _, field := range strings.Split(fields, ",") {
		wanted[strings.TrimSpace(field)] = true
	}
	projected := make([]string, 0, len(wanted))
	for _, field := range mask {
		if wanted[field] {
			projected = append(projected, field)
		}
	}
	return projected
}

// embed adds the requested scopes to the representation. Unknown scopes are skipped.
func (b *Backend) embed(r *http.Request, res *Resource, request Request, representation map[string]any) error {
	scopes := r.URL.Query().Get(b.scopesParameter)
	if scopes == "" {
		return nil
	}
	embedded := map[string]any{}
	for _, scope := range strings.Split(scopes, ",") {
		scope = strings.TrimSpace(scope)
		fn, ok := res.embeds[scope]
		if !ok {
			continue
		}
		value, err := fn(r.Context(), request, representation)
		if err != nil {
			return err
		}
		embedded[scope] = value
	}
	if len(embedded) > 0 {
		representation["_embedded"] = embedded
	}
	return nil
}

func (b *Backend) read(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := b.load(res, r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		request := newRequest(res, core.OperationRead, r)
		representation, err := b.present(r, request, rec, projection(rec, r.URL.Query().Get("fields")))
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		if err := b.embed(r, res, request, representation); err != nil {
			rest.WriteError(w, r, err)
			return
		}
		rest.Write(w, r, http.StatusOK, representation)
	}
}

// save persists a loaded record. A record which vanished since it was
// loaded is reported as not found.
func (b *Backend) save(r *http.Request, res *Resource, rec *persistence.Record) error {
	if len(rec.Dirty()) == 0 {
		return nil
	}
	ok, err := rec.Save(r.Context())
	if err != nil {
		var validationErr *persistence.ValidationError
		if errors.As(err, &validationErr) {
			return err
		}
		return rest.ServerError(fmt.Errorf("Error 4722: update %s in %s: %w", rec, res.collection.Name(), err))
	}
	if !ok {
		return rest.NotFound("").WithContext("record", rec.String())
	}
	return nil
}

func (b *Backend) update(res *Resource) http.HandlerFunc {
	return b.write(res, core.OperationUpdate, func(rec *persistence.Record, body map[string]any) {
		for _, field := range rec.WritableMask() {
			if value, ok := body[field]; ok {
				rec.Set(field, value)
			}
		}
	})
}

func (b *Backend) replace(res *Resource) http.HandlerFunc {
	return b.write(res, core.OperationReplace, func(rec *persistence.Record, body map[string]any) {
		merged := map[string]any{}
		for field, value := range res.model.Defaults() {
			if value != nil {
				merged[field] = value
			}
		}
		for field, value := range body {
			merged[field] = value
		}
		for _, field := range rec.WritableMask() {
			rec.Set(field, merged[field])
		}
	})
}

// write is the shared PATCH and PUT handler. apply transfers the
// intercepted body onto the loaded record.
func (b *Backend) write(res *Resource, operation core.Operation, apply func(rec *persistence.Record, body map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rec, err := b.load(res, r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		body, err := b.readBody(w, r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		body, err = b.intercept(ctx, newRequest(res, operation, r), body)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		apply(rec, body)
		if err := b.save(r, res, rec); err != nil {
			rest.WriteError(w, r, err)
			return
		}

		representation := rec.ToMap(rec.OutputMask(), true)
		b.notify(ctx, res.Configuration.Resource, operation, representation)
		rest.Write(w, r, http.StatusOK, representation)
	}
}

func (b *Backend) delete(res *Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rec, err := b.load(res, r)
		if err != nil {
			rest.WriteError(w, r, err)
			return
		}
		representation := rec.ToMap(rec.OutputMask(), true)
		if _, err := b.intercept(ctx, newRequest(res, core.OperationDelete, r), representation); err != nil {
			rest.WriteError(w, r, err)
			return
		}
		ok, err := rec.Remove(ctx)
		if err != nil {
			rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4723: delete %s: %w", rec, err)))
			return
		}
		if !ok {
			rest.WriteError(w, r, rest.ServerError(fmt.Errorf("Error 4724: delete %s removed nothing", rec)))
			return
		}
		b.notify(ctx, res.Configuration.Resource, core.OperationDelete, representation)
		rest.Write(w, r, http.StatusNoContent, nil)
	}
}
