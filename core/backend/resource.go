package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core"
	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/persistence"
	"github.com/opengeek/tacit-sub000/core/schema"
	"github.com/opengeek/tacit-sub000/core/validator"
)

// EmbedFunc returns the embedded resource for scope. item is the
// representation of the requested item.
type EmbedFunc func(ctx context.Context, request Request, item map[string]any) (any, error)

// Resource is a served resource with a collection route and an item route
type Resource struct {
	Configuration ResourceConfiguration

	model      *persistence.Model
	collection persistence.Collection
	keys       []string
	listRoute  string
	itemRoute  string
	embeds     map[string]EmbedFunc
}

// Model returns the persistence model of the resource
func (res *Resource) Model() *persistence.Model { return res.model }

// Collection returns the collection backing the resource
func (res *Resource) Collection() persistence.Collection { return res.collection }

// Keys returns the fields matched by the path segments of the item route
func (res *Resource) Keys() []string { return res.keys }

// ListRoute returns the route of the collection, for example "/users"
func (res *Resource) ListRoute() string { return res.listRoute }

// ItemRoute returns the mux template of the item route, for example "/users/{id}"
func (res *Resource) ItemRoute() string { return res.itemRoute }

// Handle adds the routes of res to the router of the backend
func (b *Backend) Handle(res *Resource) (*Resource, error) {
	rc := &res.Configuration
	if err := rc.validate(); err != nil {
		return nil, err
	}
	if _, ok := b.resources[rc.Resource]; ok {
		return nil, fmt.Errorf("resource %s already handled", rc.Resource)
	}

	nillog := logger.FromContext(nil)
	nillog.Debugln("create resource:", rc.Resource)
	if rc.Description != "" {
		nillog.Debugln("  description:", rc.Description)
	}

	res.model = rc.Model()
	if b.schemas != nil {
		res.model.RuleFuncs = map[string]validator.RuleFunc{schema.RuleName: b.schemas.Rule()}
	}
	res.collection = b.repository.Collection(rc.Container())

	keyField := res.model.KeyField
	if keyField == "" {
		keyField = res.collection.KeyField()
	} else if keyField != res.collection.KeyField() && !res.model.HasField(keyField) {
		return nil, fmt.Errorf("resource %s: key field %s is not a field", rc.Resource, keyField)
	}
	res.keys = rc.Keys
	if len(res.keys) == 0 {
		res.keys = []string{keyField}
	}
	for _, key := range res.keys {
		if key != keyField && !res.model.HasField(key) {
			return nil, fmt.Errorf("resource %s: key %s is not a field", rc.Resource, key)
		}
	}
	if rc.DefaultSort != "" && rc.DefaultSort != keyField && !res.model.HasField(rc.DefaultSort) {
		return nil, fmt.Errorf("resource %s: default sort %s is not a field", rc.Resource, rc.DefaultSort)
	}

	res.listRoute = "/" + core.Plural(rc.Resource)
	segments := make([]string, len(res.keys))
	for i, key := range res.keys {
		segments[i] = "{" + key + "}"
	}
	res.itemRoute = res.listRoute + "/" + strings.Join(segments, "/")
	if res.embeds == nil {
		res.embeds = map[string]EmbedFunc{}
	}

	nillog.Debugln("  handle routes:", res.listRoute, "GET,POST")
	nillog.Debugln("  handle routes:", res.itemRoute, "GET,PATCH,PUT,DELETE")

	b.route(res.listRoute, b.list(res), http.MethodGet)
	b.route(res.listRoute, b.create(res), http.MethodPost)
	b.route(res.itemRoute, b.read(res), http.MethodGet)
	b.route(res.itemRoute, b.update(res), http.MethodPatch)
	b.route(res.itemRoute, b.replace(res), http.MethodPut)
	b.route(res.itemRoute, b.delete(res), http.MethodDelete)

	b.resources[rc.Resource] = res
	return res, nil
}

// route registers handler for method. With CORS enabled the route also
// matches OPTIONS so the preflight passes the middleware chain.
func (b *Backend) route(path string, handler http.HandlerFunc, method string) *mux.Route {
	methods := []string{method}
	if b.cors {
		methods = append(methods, http.MethodOptions)
	}
	return b.router.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		handler(w, r)
	})).Methods(methods...)
}

// HandleEmbed installs the embed function for scope on a resource. The embed
// is added to item representations if the request names scope in the scopes
// parameter, for example "?zoom=owner".
func (b *Backend) HandleEmbed(resource string, scope string, embed EmbedFunc) error {
	res, ok := b.resources[resource]
	if !ok {
		return fmt.Errorf("handle embed %s for %s: no such resource", scope, resource)
	}
	if _, ok := res.embeds[scope]; ok {
		return fmt.Errorf("embed %s for %s already installed", scope, resource)
	}
	res.embeds[scope] = embed
	return nil
}
