/*Package access authorizes requests.

A Scheme extracts the credential of a request and verifies it against the
identity store. Three schemes exist:

  - Basic: transport credentials username:password
  - HMAC: the Signature-HMAC header, hexTimestamp:clientKey:hexHmacSha1
  - JWT: an HS256/384/512 bearer token issued by the client key

The authorization of a successful request is added to the request context with

	ctx = auth.ContextWithAuthorization(ctx)

and retrieved with

	auth := AuthorizationFromContext(ctx)
*/
package access

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/rest"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyAuthorization contextKey = "_authorization_"
)

// Authorization is the outcome of a successfully validated request
type Authorization struct {
	ClientKey string `json:"client_key"`
	Identity  string `json:"identity"`
	Scheme    string `json:"scheme"`
}

// ContextWithAuthorization returns a new context with this authorization added to it
func (a *Authorization) ContextWithAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, ok := ctx.Value(contextKeyAuthorization).(*Authorization)
	if ok {
		return a
	}
	return nil
}

// HandleAuthorizationRoute adds a route /authorization GET to the router
//
// The route returns the authorization of the request, or 204 if there is none.
func HandleAuthorizationRoute(router *mux.Router) {
	logger.Default().Debugln("authorization")
	logger.Default().Debugln("  handle route: /authorization GET")
	router.HandleFunc("/authorization", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method)
		auth := AuthorizationFromContext(r.Context())
		if auth == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		rest.Write(w, r, http.StatusOK, map[string]any{
			"client_key": auth.ClientKey,
			"identity":   auth.Identity,
			"scheme":     auth.Scheme,
		})
	}).Methods(http.MethodGet)
}
