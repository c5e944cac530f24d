// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package persistence

import (
	"github.com/opengeek/tacit-sub000/core/validator"
)

const (
	// CreatedAt is stamped on insert
	CreatedAt = "created_at"
	// UpdatedAt is stamped on patch
	UpdatedAt = "updated_at"
	// DefaultDiscriminatorField holds the model type of a stored document
	DefaultDiscriminatorField = "_type"
	// DefaultSecretField is never part of a default mask
	DefaultSecretField = "password"
)

// Field is a declared model field with an optional default value
type Field struct {
	Name    string `json:"name"`
	Default any    `json:"default,omitempty"`
}

// Model describes the records of one collection
type Model struct {
	// Type is written into the discriminator field on insert, if set
	Type string
	// KeyField overrides the key field of the collection
	KeyField           string
	Fields             []Field
	DiscriminatorField string
	SecretField        string
	// Rules are validator rule expressions per field
	Rules map[string]string
	// RuleFuncs are additional named rules available in Rules
	RuleFuncs map[string]validator.RuleFunc
	// NoTimestamps disables the created_at and updated_at stamps
	NoTimestamps bool
}

// Discriminator returns the name of the discriminator field
func (m *Model) Discriminator() string {
	if m.DiscriminatorField != "" {
		return m.DiscriminatorField
	}
	return DefaultDiscriminatorField
}

// Secret returns the name of the secret field
func (m *Model) Secret() string {
	if m.SecretField != "" {
		return m.SecretField
	}
	return DefaultSecretField
}

// FieldNames returns all field names in declaration order. Unless disabled,
// the timestamp fields are appended if not declared.
func (m *Model) FieldNames() []string {
	names := make([]string, 0, len(m.Fields)+2)
	seen := map[string]bool{}
	for _, f := range m.Fields {
		if !seen[f.Name] {
			names = append(names, f.Name)
			seen[f.Name] = true
		}
	}
	if !m.NoTimestamps {
		for _, name := range []string{CreatedAt, UpdatedAt} {
			if !seen[name] {
				names = append(names, name)
			}
		}
	}
	return names
}

// HasField returns true if name is a field of the model
func (m *Model) HasField(name string) bool {
	for _, f := range m.FieldNames() {
		if f == name {
			return true
		}
	}
	return false
}

// Defaults returns a fresh map of all fields with their default values
func (m *Model) Defaults() map[string]any {
	values := make(map[string]any, len(m.Fields)+2)
	for _, name := range m.FieldNames() {
		values[name] = nil
	}
	for _, f := range m.Fields {
		values[f.Name] = copyValue(f.Default)
	}
	return values
}

// copyValue copies maps and slices so records never share a default
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

// Without returns names minus every name in exclude, order preserved
func Without(names []string, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	result := make([]string, 0, len(names))
	for _, n := range names {
		if !skip[n] {
			result = append(result, n)
		}
	}
	return result
}
