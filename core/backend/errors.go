package backend

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/rest"
)

func notFound(w http.ResponseWriter, r *http.Request) {
	rest.WriteError(w, r, rest.NotFound(""))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rest.WriteError(w, r, rest.MethodNotAllowed(""))
}

// requestContextMiddleware stamps the request start time used by debug responses
func requestContextMiddleware(debug bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := rest.ContextWithRequest(r.Context(), rest.RequestContext{Start: time.Now(), Debug: debug})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recoverMiddleware renders a panic as 500
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.FromContext(r.Context()).WithField("stack", string(debug.Stack())).Errorf("Error 4700: panic in %s %s", r.Method, r.URL.Path)
				rest.WriteError(w, r, rest.ServerError(fmt.Errorf("panic: %v", p)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
