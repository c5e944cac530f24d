// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeek/tacit-sub000/core/logger"
	"github.com/opengeek/tacit-sub000/core/rest"
)

func testStore() *Store {
	return NewStore(Static(Identities{
		"client": {SecretKey: "S", Identity: "Test Client"},
		"u":      {SecretKey: "p", Identity: "User U"},
	}))
}

func status(t *testing.T, err error) int {
	t.Helper()
	var rerr *rest.Error
	require.True(t, errors.As(err, &rerr), "expected a rest error, got %v", err)
	return rerr.Status
}

func TestHMACScenario(t *testing.T) {
	md5Empty := "d41d8cd98f00b204e9800998ecf8427e"
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	scheme := NewHMAC(testStore())
	input, err := scheme.Input(r)
	require.NoError(t, err)
	assert.Equal(t, "GET\n"+md5Empty+"\n\n/x", input)

	now := time.Unix(1_600_000_000, 0)
	scheme.Now = func() time.Time { return now }
	r.Header.Set(HeaderHMAC, Sign(input, "client", "S", now))

	auth, err := scheme.Validate(r)
	require.NoError(t, err)
	assert.Equal(t, &Authorization{ClientKey: "client", Identity: "Test Client", Scheme: "hmac"}, auth)

	scheme.Now = func() time.Time { return now.Add(899 * time.Second) }
	_, err = scheme.Validate(r)
	assert.NoError(t, err)

	scheme.Now = func() time.Time { return now.Add(900 * time.Second) }
	_, err = scheme.Validate(r)
	assert.Equal(t, http.StatusConflict, status(t, err))
	assert.Equal(t, "Request Outdated", err.(*rest.Error).Message)
	assert.Equal(t, r.Header.Get(HeaderHMAC), err.(*rest.Error).Context["signature"])
}

func TestHMACFailures(t *testing.T) {
	now := time.Now()
	scheme := NewHMAC(testStore())
	body := `{"name":"jane"}`
	newRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/users/../users", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return r
	}
	fingerprint := Fingerprint(http.MethodPost, []byte(body), "application/json", "/users")

	cases := []struct {
		name      string
		signature string
		status    int
		message   string
	}{
		{"unsigned", "", 401, "Unsigned Request"},
		{"two parts", "abc:client", 401, "Invalid Signature"},
		{"four parts", "a:b:c:d", 401, "Invalid Signature"},
		{"bad timestamp", "zz:client:00", 401, "Invalid Signature"},
		{"wrong secret", Sign(fingerprint, "client", "wrong", now), 401, "Unauthorized Signature"},
		{"unknown client", Sign(fingerprint, "nobody", "", now), 401, "Unauthorized Signature"},
		{"other body", Sign(Fingerprint(http.MethodPost, []byte("{}"), "application/json", "/users"), "client", "S", now), 401, "Unauthorized Signature"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newRequest()
			if c.signature != "" {
				r.Header.Set(HeaderHMAC, c.signature)
			}
			_, err := scheme.Validate(r)
			require.Error(t, err)
			assert.Equal(t, c.status, status(t, err))
			assert.Equal(t, c.message, err.(*rest.Error).Message)
			assert.Equal(t, c.signature, err.(*rest.Error).Context["signature"])
		})
	}

	r := newRequest()
	r.Header.Set(HeaderHMAC, Sign(fingerprint, "client", "S", now))
	auth, err := scheme.Validate(r)
	require.NoError(t, err)
	assert.Equal(t, "client", auth.ClientKey)

	// the body is still there for the handler
	remaining, _ := io.ReadAll(r.Body)
	assert.Equal(t, body, string(remaining))
}

func TestBasicScenario(t *testing.T) {
	scheme := NewBasic(testStore())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	_, err := scheme.Validate(r)
	assert.Equal(t, http.StatusUnauthorized, status(t, err))
	assert.Equal(t, "", scheme.Signature(r))

	r.SetBasicAuth("u", "p")
	assert.Equal(t, "u:p", scheme.Signature(r))
	auth, err := scheme.Validate(r)
	require.NoError(t, err)
	assert.Equal(t, "User U", auth.Identity)

	r.SetBasicAuth("u", "q")
	_, err = scheme.Validate(r)
	assert.Equal(t, http.StatusForbidden, status(t, err))

	r.SetBasicAuth("stranger", "p")
	_, err = scheme.Validate(r)
	assert.Equal(t, http.StatusForbidden, status(t, err))

	// base64 of "nocolon"
	r.Header.Set("Authorization", "Basic bm9jb2xvbg==")
	_, err = scheme.Validate(r)
	assert.Equal(t, http.StatusUnauthorized, status(t, err))
}

func TestJWT(t *testing.T) {
	scheme := NewJWT(testStore())
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	_, err := scheme.Validate(r)
	assert.Equal(t, http.StatusUnauthorized, status(t, err))

	token, err := IssueToken("client", "S", time.Minute)
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+token)
	auth, err := scheme.Validate(r)
	require.NoError(t, err)
	assert.Equal(t, &Authorization{ClientKey: "client", Identity: "Test Client", Scheme: "jwt"}, auth)

	for name, tokenFn := range map[string]func() (string, error){
		"wrong secret":   func() (string, error) { return IssueToken("client", "other", time.Minute) },
		"unknown issuer": func() (string, error) { return IssueToken("nobody", "S", time.Minute) },
		"expired":        func() (string, error) { return IssueToken("client", "S", -time.Minute) },
		"garbage":        func() (string, error) { return "not.a.token", nil },
	} {
		t.Run(name, func(t *testing.T) {
			token, err := tokenFn()
			require.NoError(t, err)
			r := httptest.NewRequest(http.MethodGet, "/x", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			_, err = scheme.Validate(r)
			assert.Equal(t, http.StatusUnauthorized, status(t, err))
		})
	}
}

func TestStoreLoadsOnce(t *testing.T) {
	calls := 0
	store := NewStore(func(context.Context) (Identities, error) {
		calls++
		return Identities{"a": {SecretKey: "s"}}, nil
	})
	ctx := context.Background()
	require.NoError(t, store.Load(ctx))
	_, found, err := store.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, _ = store.Lookup(ctx, "b")
	assert.False(t, found)
	assert.Equal(t, 1, store.Len(ctx))
	assert.Equal(t, 1, calls)

	failing := NewStore(FileLoader(filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, failing.Load(ctx))
	_, _, err = failing.Lookup(ctx, "a")
	assert.Error(t, err)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "identities.json")
	yamlPath := filepath.Join(dir, "identities.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"k1":{"secretKey":"s1","identity":"One"}}`), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("k2:\n  secretKey: s2\n  identity: Two\n"), 0o600))

	ids, err := FileLoader(jsonPath)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Identities{"k1": {SecretKey: "s1", Identity: "One"}}, ids)

	ids, err = FileLoader(yamlPath)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Identities{"k2": {SecretKey: "s2", Identity: "Two"}}, ids)

	_, err = Decode([]byte("{"), ".json")
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string]string
	input   *s3.GetObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = params
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(data)))}, nil
}

func TestS3Loader(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"config/auth/identities.yaml": "k:\n  secretKey: s\n  identity: S3\n",
	}}
	ids, err := S3Loader(client, "s3://config/auth/identities.yaml")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S3", ids["k"].Identity)
	assert.Equal(t, "auth/identities.yaml", aws.ToString(client.input.Key))

	_, err = S3Loader(client, "s3://config/missing.json")(context.Background())
	assert.Error(t, err)
	_, err = S3Loader(client, "s3://bucket-only")(context.Background())
	assert.Error(t, err)
	assert.True(t, IsS3("s3://a/b"))
	assert.False(t, IsS3("/etc/identities.json"))
}

func TestMiddleware(t *testing.T) {
	router := mux.NewRouter()
	logger.AddRequestID(router)
	router.Use(NewMiddleware(NewBasic(testStore())))
	HandleAuthorizationRoute(router)

	r := httptest.NewRequest(http.MethodGet, "/authorization", nil)
	r.SetBasicAuth("u", "p")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"client_key": "u", "identity": "User U", "scheme": "basic"}, body)

	r = httptest.NewRequest(http.MethodGet, "/authorization", nil)
	r.SetBasicAuth("u", "wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 403, body["status"])

	open := mux.NewRouter()
	open.Use(NewMiddleware(nil))
	HandleAuthorizationRoute(open)
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/authorization", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSchemeByName(t *testing.T) {
	for _, name := range []string{"basic", "hmac", "jwt"} {
		s, ok := SchemeByName(name, testStore())
		require.True(t, ok)
		assert.Equal(t, name, s.Name())
	}
	s, ok := SchemeByName("none", testStore())
	assert.True(t, ok)
	assert.Nil(t, s)
	_, ok = SchemeByName("kerberos", testStore())
	assert.False(t, ok)
}
