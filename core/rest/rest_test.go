package rest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldErr map[string][]string

func (f fieldErr) Error() string                       { return "invalid" }
func (f fieldErr) FieldMessages() map[string][]string { return f }

func TestNew_Defaults(t *testing.T) {
	for _, code := range []int{400, 402, 403, 404, 405, 406, 408, 409, 410, 411, 412, 413, 414, 415, 416, 422, 423, 424, 500, 501, 502, 503, 504, 505} {
		e := New(code)
		assert.Equal(t, code, e.Status)
		assert.Equal(t, code, e.Code)
		assert.NotEmpty(t, e.Message, "status %d", code)
		assert.NotEmpty(t, e.Description, "status %d", code)
		assert.Equal(t, "", e.Property)
	}
	assert.Equal(t, http.StatusInternalServerError, New(299).Status)
	assert.Equal(t, "Unsigned Request", Unauthorized("Unsigned Request").Message)
}

func TestFromError(t *testing.T) {
	nf := NotFound("no such note")
	assert.Same(t, nf, FromError(fmt.Errorf("wrapped: %w", nf)))

	op := Operational(KindConflict, "already archived")
	op.Property = "state"
	e := FromError(op)
	assert.Equal(t, http.StatusConflict, e.Status)
	assert.Equal(t, "already archived", e.Message)
	assert.Equal(t, "state", e.Property)

	e = FromError(fieldErr{"name": {"name is required"}})
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
	assert.Equal(t, map[string][]string{"name": {"name is required"}}, e.Property)

	e = FromError(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, e.Status)
	assert.Equal(t, "connection reset", e.Context["error"])
	assert.NotContains(t, e.Message, "connection reset")

	assert.Nil(t, FromError(nil))
	assert.Equal(t, http.StatusInternalServerError, Kind("whatever").Status())
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/notes", nil)
	r = r.WithContext(ContextWithRequest(r.Context(), RequestContext{Start: time.Now(), Debug: true}))
	rec := httptest.NewRecorder()
	WriteError(rec, r, Forbidden(""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(403), body["status"])
	assert.Equal(t, float64(403), body["code"])
	assert.Equal(t, "Forbidden", body["message"])
	assert.Equal(t, "", body["property"])
	assert.Contains(t, body, "description")
	assert.Contains(t, body, "request_duration")
}

func TestWrite_NoContent(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/notes/1", nil)
	rec := httptest.NewRecorder()
	Write(rec, r, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, rec.Body.Len())
}
