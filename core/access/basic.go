// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"crypto/subtle"
	"net/http"

	"github.com/opengeek/tacit-sub000/core/rest"
)

// Basic authorizes requests with transport credentials, the username being
// the client key and the password its secret key
type Basic struct {
	Identities IdentityLookup
}

// NewBasic returns the basic scheme
func NewBasic(identities IdentityLookup) *Basic {
	return &Basic{Identities: identities}
}

// Name returns "basic"
func (b *Basic) Name() string { return "basic" }

// Input returns method and path of the request
func (b *Basic) Input(r *http.Request) (string, error) {
	return r.Method + "\n" + cleanPath(r), nil
}

// Signature returns "username:password", or the empty string without credentials
func (b *Basic) Signature(r *http.Request) string {
	username, password, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	return username + ":" + password
}

// Validate checks the transport credentials. Missing or malformed credentials
// are unauthorized, wrong ones forbidden.
func (b *Basic) Validate(r *http.Request) (*Authorization, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, rest.Unauthorized("Missing Credentials").
			WithDescription("The request carries no credentials.")
	}
	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		return nil, rest.Unauthorized("Invalid Credentials").
			WithDescription("The credentials are malformed.").
			WithContext("authorization", header)
	}

	identity, found, err := b.Identities.Lookup(r.Context(), username)
	if err != nil {
		return nil, lookupFailed(err)
	}
	if !found || identity.SecretKey == "" ||
		subtle.ConstantTimeCompare([]byte(identity.SecretKey), []byte(password)) != 1 {
		return nil, rest.Forbidden("Forbidden Request").
			WithDescription("The credentials were rejected.").
			WithContext("username", username)
	}
	return &Authorization{ClientKey: username, Identity: identity.Identity, Scheme: b.Name()}, nil
}
