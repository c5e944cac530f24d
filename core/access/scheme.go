package access

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"

	"github.com/opengeek/tacit-sub000/core/rest"
)

// Scheme authorizes requests
type Scheme interface {
	// Name identifies the scheme
	Name() string
	// Input returns the canonical fingerprint of the request
	Input(r *http.Request) (string, error)
	// Signature returns the credential supplied by the client
	Signature(r *http.Request) string
	// Validate returns the authorization of a valid request. Invalid requests
	// fail with a *rest.Error.
	Validate(r *http.Request) (*Authorization, error)
}

// IdentityLookup resolves client keys
type IdentityLookup interface {
	Lookup(ctx context.Context, clientKey string) (Identity, bool, error)
}

// readBody reads the request body and puts an identical reader back
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// cleanPath normalizes the resource path of r
func cleanPath(r *http.Request) string {
	p := r.URL.Path
	if p == "" {
		p = "/"
	}
	return path.Clean(p)
}

func lookupFailed(err error) error {
	return rest.ServerError(err).WithDescription("The identity store is not available.")
}
