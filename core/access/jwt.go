package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/opengeek/tacit-sub000/core/rest"
)

// JWT authorizes requests with a bearer token. The issuer of the token is
// the client key and the token is signed with its secret key.
type JWT struct {
	Identities IdentityLookup
}

// NewJWT returns the bearer token scheme
func NewJWT(identities IdentityLookup) *JWT {
	return &JWT{Identities: identities}
}

// Name returns "jwt"
func (j *JWT) Name() string { return "jwt" }

// Input returns method and path of the request
func (j *JWT) Input(r *http.Request) (string, error) {
	return r.Method + "\n" + cleanPath(r), nil
}

// Signature returns the bearer token
func (j *JWT) Signature(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
		return bearer[7:]
	}
	return ""
}

var errUnknownIssuer = errors.New("unknown issuer")

// Validate parses and verifies the bearer token
func (j *JWT) Validate(r *http.Request) (*Authorization, error) {
	tokenString := j.Signature(r)
	if tokenString == "" {
		return nil, rest.Unauthorized("Missing Bearer Token").
			WithDescription("The request carries no bearer token.")
	}

	var (
		identity  Identity
		lookupErr error
	)
	claims := jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		c, ok := token.Claims.(*jwt.StandardClaims)
		if !ok || c.Issuer == "" {
			return nil, errUnknownIssuer
		}
		var found bool
		identity, found, lookupErr = j.Identities.Lookup(r.Context(), c.Issuer)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if !found || identity.SecretKey == "" {
			return nil, errUnknownIssuer
		}
		return []byte(identity.SecretKey), nil
	})
	if lookupErr != nil {
		return nil, lookupFailed(lookupErr)
	}
	if err != nil || !token.Valid {
		return nil, rest.Unauthorized("Invalid Bearer Token").
			WithDescription("The bearer token was rejected.").
			WithCause(err)
	}
	return &Authorization{ClientKey: claims.Issuer, Identity: identity.Identity, Scheme: j.Name()}, nil
}

// IssueToken returns a token for clientKey signed with HS256, valid for ttl
func IssueToken(clientKey, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Issuer:    clientKey,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}
