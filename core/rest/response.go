package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/opengeek/tacit-sub000/core/logger"
)

// Type for the context keys
type contextKeyRequestType struct{}

var contextKeyRequest = &contextKeyRequestType{}

// RequestContext holds the per request settings needed for response shaping
type RequestContext struct {
	// Start is the time the request was received
	Start time.Time
	// Debug adds request_duration to every response body
	Debug bool
}

// ContextWithRequest returns a new context carrying rc
func ContextWithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, contextKeyRequest, rc)
}

// RequestFromContext returns the request context or a zero value
func RequestFromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(contextKeyRequest).(RequestContext)
	return rc, ok
}

// Write renders body as JSON with the given status. A nil body writes the
// status only, unless debugging is enabled.
func Write(w http.ResponseWriter, r *http.Request, status int, body map[string]any) {
	rc, _ := RequestFromContext(r.Context())
	if rc.Debug {
		if body == nil {
			body = map[string]any{}
		}
		body["request_duration"] = time.Since(rc.Start).Seconds()
	}
	if body == nil || status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	jsonData, err := json.MarshalWithOption(body, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4701: cannot marshal response")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":500,"code":500,"message":"Internal Server Error","description":"","property":""}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// WriteError renders err as a RESTful error response. Server errors are logged
// with their diagnostic context.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	restErr := FromError(err)
	rlog := logger.FromContext(r.Context())
	if restErr.Context != nil {
		rlog = rlog.WithFields(restErr.Context)
	}
	if restErr.Status >= http.StatusInternalServerError {
		rlog.WithError(err).Errorf("%s %s failed with %d", r.Method, r.URL.Path, restErr.Status)
	} else {
		rlog.Debugf("%s %s rejected with %d: %s", r.Method, r.URL.Path, restErr.Status, restErr.Message)
	}
	Write(w, r, restErr.Status, restErr.Body())
}

// Body returns the flattened fields of the error as response body
func (e *Error) Body() map[string]any {
	property := e.Property
	if property == nil {
		property = ""
	}
	return map[string]any{
		"status":      e.Status,
		"code":        e.Code,
		"message":     e.Message,
		"description": e.Description,
		"property":    property,
	}
}
