package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrClosed is returned by a provider which was closed before first use
var ErrClosed = errors.New("repository provider closed")

// Connection describes how to reach a backend
type Connection struct {
	// Backend is the id a Factory is registered under
	Backend  string
	Server   string
	Database string
	Username string
	Password string
	Options  map[string]string
}

// String returns the connection without credentials
func (c Connection) String() string {
	return fmt.Sprintf("%s://%s/%s", c.Backend, c.Server, c.Database)
}

// Factory opens a repository for a connection
type Factory func(ctx context.Context, conn Connection) (Repository, error)

// Registry maps backend ids to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register makes a backend available under id. Registering an id twice
// replaces the factory.
func (reg *Registry) Register(id string, factory Factory) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.factories[id] = factory
}

// Backends returns the sorted ids of all registered backends
func (reg *Registry) Backends() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.factories))
	for id := range reg.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Open opens a new repository for conn
func (reg *Registry) Open(ctx context.Context, conn Connection) (Repository, error) {
	reg.mu.RLock()
	factory, ok := reg.factories[conn.Backend]
	reg.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q, registered are %v", conn.Backend, reg.Backends())
	}
	repo, err := factory(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", conn, err)
	}
	return repo, nil
}

// Provider opens the repository of one connection at most once. The outcome
// of the first call, repository or error, is returned by every later call.
type Provider struct {
	registry *Registry
	conn     Connection
	mu       sync.Mutex
	opened   bool
	repo     Repository
	err      error
}

// NewProvider returns a provider for conn
func NewProvider(registry *Registry, conn Connection) *Provider {
	return &Provider{registry: registry, conn: conn}
}

// Repository returns the repository, opening it on first use
func (p *Provider) Repository(ctx context.Context) (Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		p.repo, p.err = p.registry.Open(ctx, p.conn)
		p.opened = true
	}
	return p.repo, p.err
}

// Close closes the repository if it was opened. Afterwards Repository
// returns ErrClosed unless it had failed before. Close waits for a
// concurrent first open to finish.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		p.opened = true
		p.err = ErrClosed
		return nil
	}
	repo := p.repo
	if repo == nil {
		return nil
	}
	if p.err == nil {
		p.repo, p.err = nil, ErrClosed
	}
	return repo.Close(ctx)
}
