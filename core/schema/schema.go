// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package schema compiles JSON schemas and exposes them to the validator
// as the rule "schema:<id>".
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/opengeek/tacit-sub000/core/validator"
)

// RuleName is the name under which Set.Rule is registered
const RuleName = "schema"

// Set is a collection of compiled schemas addressed by their $id
type Set struct {
	schemas map[string]*gojsonschema.Schema
}

// LoadFS compiles all *.json files in dir of fsys as top level schemas. Files
// in dir/refs are only available as references.
func LoadFS(fsys fs.FS, dir string) (*Set, error) {
	read := func(dir string) ([]string, error) {
		entries, err := fs.ReadDir(fsys, dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read schema directory %s: %w", dir, err)
		}
		var docs []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("cannot read schema %s: %w", e.Name(), err)
			}
			docs = append(docs, string(b))
		}
		return docs, nil
	}

	schemas, err := read(dir)
	if err != nil {
		return nil, err
	}
	refs, err := read(path.Join(dir, "refs"))
	if err != nil {
		return nil, err
	}
	return New(schemas, refs)
}

// New compiles schemas. Every schema needs an $id; references may only
// point into refs.
func New(schemas []string, refs []string) (*Set, error) {
	set := &Set{schemas: make(map[string]*gojsonschema.Schema, len(schemas))}
	for _, doc := range schemas {
		var header struct {
			ID string `json:"$id"`
		}
		if err := json.Unmarshal([]byte(doc), &header); err != nil {
			return nil, fmt.Errorf("cannot parse schema: %w", err)
		}
		if header.ID == "" {
			return nil, fmt.Errorf("schema without $id: %.60s", doc)
		}
		loader := gojsonschema.NewSchemaLoader()
		for _, ref := range refs {
			if err := loader.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
				return nil, fmt.Errorf("cannot add reference schema: %w", err)
			}
		}
		compiled, err := loader.Compile(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("cannot compile schema %s: %w", header.ID, err)
		}
		set.schemas[header.ID] = compiled
	}
	return set, nil
}

// Has returns true if a schema with the given id is known
func (s *Set) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.schemas[id]
	return ok
}

// Validate checks a decoded value against the schema id
func (s *Set) Validate(value any, id string) error {
	compiled, ok := s.schemas[id]
	if !ok {
		return fmt.Errorf("unknown schema %s", id)
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("cannot validate against %s: %w", id, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Rule returns the validator rule for this set. Nil values pass, use
// "required" to demand a value.
func (s *Set) Rule() validator.RuleFunc {
	return func(field string, value any, args []string) error {
		if len(args) == 0 || !s.Has(args[0]) {
			return &validator.RuleError{Message: "schema rule for " + field + " names no known schema", Code: 500}
		}
		if value == nil {
			return nil
		}
		if err := s.Validate(value, args[0]); err != nil {
			return validator.Fail("%s does not match schema %s: %s", field, args[0], err)
		}
		return nil
	}
}
