package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestContextWithLogger(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	assert.NotNil(t, rlog)
	id := RequestIDFromContext(ctx)
	assert.NotEmpty(t, id)

	// a second call keeps the existing logger
	ctx2, _ := ContextWithLogger(ctx)
	assert.Equal(t, id, RequestIDFromContext(ctx2))

	ctx3, _ := ContextWithLoggerIdentity(ctx2, "Test Client")
	assert.Equal(t, id, RequestIDFromContext(ctx3))
	assert.Equal(t, "Test Client", IdentityFromContext(ctx3))
}

func TestFromContext_Nil(t *testing.T) {
	//lint:ignore SA1012 nil context is explicitly supported
	assert.NotNil(t, FromContext(nil))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)
	var seen string
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
}
