// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Identity is the secret and the label of one client key
type Identity struct {
	SecretKey string `json:"secretKey" yaml:"secretKey"`
	Identity  string `json:"identity" yaml:"identity"`
}

// Identities maps client keys to identities
type Identities map[string]Identity

// Loader loads identities from a source
type Loader func(ctx context.Context) (Identities, error)

// Static returns a loader for fixed identities
func Static(identities Identities) Loader {
	return func(context.Context) (Identities, error) {
		return identities, nil
	}
}

// FileLoader reads identities from a file. Files ending in .yaml or .yml are
// yaml, everything else is json.
func FileLoader(path string) Loader {
	return func(context.Context) (Identities, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read identities: %w", err)
		}
		return Decode(data, filepath.Ext(path))
	}
}

// Decode parses identities. ext selects the format, ".yaml" and ".yml" are yaml,
// everything else is json.
func Decode(data []byte, ext string) (Identities, error) {
	identities := Identities{}
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &identities)
	default:
		err = json.Unmarshal(data, &identities)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse identities: %w", err)
	}
	return identities, nil
}

// Store holds the identities of the process. They are loaded on first use,
// exactly once, and only read afterwards.
type Store struct {
	load       Loader
	once       sync.Once
	identities Identities
	err        error
}

// NewStore returns a store for the given loader
func NewStore(load Loader) *Store {
	return &Store{load: load}
}

// Load loads the identities unless this happened already. Services call it
// at startup so a broken source fails before the first request.
func (s *Store) Load(ctx context.Context) error {
	s.once.Do(func() {
		s.identities, s.err = s.load(ctx)
	})
	return s.err
}

// Lookup returns the identity of clientKey
func (s *Store) Lookup(ctx context.Context, clientKey string) (Identity, bool, error) {
	if err := s.Load(ctx); err != nil {
		return Identity{}, false, err
	}
	identity, ok := s.identities[clientKey]
	return identity, ok, nil
}

// Len returns the number of identities, 0 if they failed to load
func (s *Store) Len(ctx context.Context) int {
	if s.Load(ctx) != nil {
		return 0
	}
	return len(s.identities)
}
