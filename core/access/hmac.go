package access

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opengeek/tacit-sub000/core/rest"
)

// HeaderHMAC carries the request signature
const HeaderHMAC = "Signature-HMAC"

// Window is how long a signature stays valid
const Window = 900 * time.Second

// HMAC authorizes requests signed with the secret key of the client
type HMAC struct {
	Identities IdentityLookup
	// Now returns the current time, time.Now if nil
	Now func() time.Time
}

// NewHMAC returns the hmac scheme
func NewHMAC(identities IdentityLookup) *HMAC {
	return &HMAC{Identities: identities}
}

// Name returns "hmac"
func (h *HMAC) Name() string { return "hmac" }

// Fingerprint joins method, md5 of body, content type and clean path with newlines
func Fingerprint(method string, body []byte, contentType, path string) string {
	sum := md5.Sum(body)
	return strings.Join([]string{method, hex.EncodeToString(sum[:]), contentType, path}, "\n")
}

// Sign returns the Signature-HMAC header value for fingerprint
func Sign(fingerprint, clientKey, secretKey string, at time.Time) string {
	return strconv.FormatInt(at.Unix(), 16) + ":" + clientKey + ":" + digest(fingerprint, secretKey)
}

func digest(fingerprint, secretKey string) string {
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(fingerprint))
	return hex.EncodeToString(mac.Sum(nil))
}

// Input returns the fingerprint of r. The body stays readable.
func (h *HMAC) Input(r *http.Request) (string, error) {
	body, err := readBody(r)
	if err != nil {
		return "", fmt.Errorf("cannot read body: %w", err)
	}
	return Fingerprint(r.Method, body, r.Header.Get("Content-Type"), cleanPath(r)), nil
}

// Signature returns the raw Signature-HMAC header
func (h *HMAC) Signature(r *http.Request) string {
	return r.Header.Get(HeaderHMAC)
}

func (h *HMAC) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Validate checks the signature of r. An unknown client key fails like a
// wrong signature.
func (h *HMAC) Validate(r *http.Request) (*Authorization, error) {
	signature := h.Signature(r)
	if signature == "" {
		return nil, rest.Unauthorized("Unsigned Request").
			WithDescription("The request carries no " + HeaderHMAC + " header.").
			WithContext("signature", signature)
	}
	parts := strings.Split(signature, ":")
	if len(parts) != 3 {
		return nil, invalidSignature(signature)
	}
	requested, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil {
		return nil, invalidSignature(signature)
	}
	expires := time.Unix(requested, 0).Add(Window)
	if !h.now().Before(expires) {
		return nil, rest.Conflict("Request Outdated").
			WithDescription("The signature has expired.").
			WithContext("signature", signature)
	}

	clientKey := parts[1]
	identity, found, err := h.Identities.Lookup(r.Context(), clientKey)
	if err != nil {
		return nil, lookupFailed(err)
	}
	input, err := h.Input(r)
	if err != nil {
		return nil, rest.BadRequest("Unreadable Request").WithCause(err).WithContext("signature", signature)
	}
	// the digest is computed for unknown keys as well
	matches := hmac.Equal([]byte(digest(input, identity.SecretKey)), []byte(parts[2]))
	if !matches || !found || identity.SecretKey == "" {
		return nil, rest.Unauthorized("Unauthorized Signature").
			WithDescription("The signature does not match the request.").
			WithContext("signature", signature)
	}
	return &Authorization{ClientKey: clientKey, Identity: identity.Identity, Scheme: h.Name()}, nil
}

func invalidSignature(signature string) error {
	return rest.Unauthorized("Invalid Signature").
		WithDescription("The " + HeaderHMAC + " header is malformed.").
		WithContext("signature", signature)
}
