package backend

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/access"
	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/schema"
)

// DefaultScopesParameter is the query parameter selecting embedded resources
const DefaultScopesParameter = "zoom"

// DefaultMaxBodySize limits request bodies
const DefaultMaxBodySize = 1 << 20

// Backend is the generic rest backend
type Backend struct {
	repository      persistence.Repository
	router          *mux.Router
	notifier        core.Notifier
	schemas         *schema.Set
	scopesParameter string
	maxBodySize     int64
	cors            bool
	resources       map[string]*Resource
	interceptors    map[string]Interceptor
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON description of all resources. This is optional,
	// resources can also be added with Handle.
	Config string
	// Repository is the persistence backend. This is mandatory.
	Repository persistence.Repository
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Scheme authorizes every request. A nil scheme authorizes nothing.
	Scheme access.Scheme
	// Notifier receives a notification for every successful write. This is optional.
	Notifier core.Notifier
	// Schemas are available to validation rules as "schema:<id>". This is optional.
	Schemas *schema.Set
	// ScopesParameter overrides the name of the embed parameter "zoom"
	ScopesParameter string
	// Debug adds the request duration to every response
	Debug bool
	// Compress gzips responses if the client accepts it
	Compress bool
	// CORS answers preflight requests and adds CORS headers
	CORS bool
	// MaxBodySize overrides DefaultMaxBodySize
	MaxBodySize int64
}

// New realizes the actual backend. It installs the middleware chain and
// adds routes for all configured resources to the router.
func New(bb *Builder) (*Backend, error) {
	if bb.Repository == nil {
		return nil, fmt.Errorf("repository is missing")
	}
	if bb.Router == nil {
		return nil, fmt.Errorf("router is missing")
	}

	var config Configuration
	if bb.Config != "" {
		if err := json.Unmarshal([]byte(bb.Config), &config); err != nil {
			return nil, fmt.Errorf("parse error in backend configuration: %w", err)
		}
	}

	b := &Backend{
		repository:      bb.Repository,
		router:          bb.Router,
		notifier:        bb.Notifier,
		schemas:         bb.Schemas,
		scopesParameter: bb.ScopesParameter,
		maxBodySize:     bb.MaxBodySize,
		cors:            bb.CORS,
		resources:       map[string]*Resource{},
		interceptors:    map[string]Interceptor{},
	}
	if b.scopesParameter == "" {
		b.scopesParameter = DefaultScopesParameter
	}
	if b.maxBodySize <= 0 {
		b.maxBodySize = DefaultMaxBodySize
	}

	b.router.NotFoundHandler = http.HandlerFunc(notFound)
	b.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	logger.AddRequestID(b.router)
	b.router.Use(requestContextMiddleware(bb.Debug))
	b.router.Use(recoverMiddleware)
	if bb.CORS {
		b.handleCORS()
	}
	if bb.Compress {
		b.handleCompression()
	}
	b.router.Use(access.NewMiddleware(bb.Scheme))
	access.HandleAuthorizationRoute(b.router)
	b.handleVersion()
	b.handleStatistics()

	for i := range config.Resources {
		rc := config.Resources[i]
		if _, err := b.Handle(&Resource{Configuration: rc}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Resource returns the resource called name
func (b *Backend) Resource(name string) (*Resource, bool) {
	r, ok := b.resources[name]
	return r, ok
}

// Resources returns the names of all resources, sorted
func (b *Backend) Resources() []string {
	names := make([]string, 0, len(b.resources))
	for name := range b.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Router returns the router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

// CreateContainers creates the containers of all resources. Existing
// containers are left alone.
func (b *Backend) CreateContainers(ctx context.Context) {
	for _, name := range b.Resources() {
		container := b.resources[name].Configuration.Container()
		if err := b.repository.Create(ctx, container); err != nil {
			logger.FromContext(ctx).WithError(err).Debugf("container %s not created", container)
		}
	}
}
