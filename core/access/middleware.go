package access

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/rest"
)

// NewMiddleware returns a middleware which rejects every request the scheme
// does not validate. Valid requests continue with the authorization and the
// identity in their context. A nil scheme authorizes nothing and rejects
// nothing.
func NewMiddleware(scheme Scheme) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		if scheme == nil {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// preflight requests never carry credentials
			if r.Method == http.MethodOptions {
				h.ServeHTTP(w, r)
				return
			}
			auth, err := scheme.Validate(r)
			if err != nil {
				rlog := logger.FromContext(r.Context())
				rlog.WithError(err).Debugf("%s authorization failed for %s %s", scheme.Name(), r.Method, r.URL.Path)
				rest.WriteError(w, r, err)
				return
			}
			ctx := auth.ContextWithAuthorization(r.Context())
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Identity)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SchemeByName returns the scheme called name on identities. "none" and the
// empty name return nil.
func SchemeByName(name string, identities IdentityLookup) (Scheme, bool) {
	switch name {
	case "", "none":
		return nil, true
	case "basic":
		return NewBasic(identities), true
	case "hmac":
		return NewHMAC(identities), true
	case "jwt":
		return NewJWT(identities), true
	}
	return nil, false
}
