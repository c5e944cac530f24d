// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/persistence"
)

// Configuration holds a complete backend configuration
type Configuration struct {
	Resources []ResourceConfiguration `json:"resources"`
}

// ResourceConfiguration describes one resource. The resource name is
// singular, routes and containers use its plural.
type ResourceConfiguration struct {
	Resource    string `json:"resource"`
	Description string `json:"description"`
	// Type is stored in the discriminator field of every new document
	Type string `json:"type"`
	// KeyField overrides the key field of the backend
	KeyField string `json:"key_field"`
	// Keys are the fields matched by the path segments of item routes, in
	// order. The default is the key field.
	Keys               []string            `json:"keys"`
	Fields             []persistence.Field `json:"fields"`
	Rules              map[string]string   `json:"rules"`
	SecretField        string              `json:"secret_field"`
	DiscriminatorField string              `json:"discriminator_field"`
	NoTimestamps       bool                `json:"no_timestamps"`
	DefaultSort        string              `json:"default_sort"`
	DefaultSortDir     string              `json:"default_sort_dir"`
}

// Container returns the name of the backing container
func (rc *ResourceConfiguration) Container() string {
	return core.Plural(rc.Resource)
}

// Model returns the persistence model of the resource
func (rc *ResourceConfiguration) Model() *persistence.Model {
	return &persistence.Model{
		Type:               rc.Type,
		KeyField:           rc.KeyField,
		Fields:             rc.Fields,
		DiscriminatorField: rc.DiscriminatorField,
		SecretField:        rc.SecretField,
		Rules:              rc.Rules,
		NoTimestamps:       rc.NoTimestamps,
	}
}

func (rc *ResourceConfiguration) validate() error {
	if rc.Resource == "" {
		return fmt.Errorf("resource without name")
	}
	switch rc.DefaultSortDir {
	case "", sortAscending, sortDescending:
	default:
		return fmt.Errorf("resource %s: invalid default_sort_dir %q", rc.Resource, rc.DefaultSortDir)
	}
	seen := map[string]bool{}
	for _, f := range rc.Fields {
		if f.Name == "" {
			return fmt.Errorf("resource %s: field without name", rc.Resource)
		}
		if seen[f.Name] {
			return fmt.Errorf("resource %s: duplicate field %s", rc.Resource, f.Name)
		}
		seen[f.Name] = true
	}
	for field := range rc.Rules {
		if !seen[field] {
			return fmt.Errorf("resource %s: rule for undeclared field %s", rc.Resource, field)
		}
	}
	return nil
}
