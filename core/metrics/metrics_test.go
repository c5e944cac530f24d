package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, registry *prometheus.Registry, labels map[string]string) float64 {
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != Namespace+"_requests_total" {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := New(registry)
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Use(collector.Middleware)
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", collector.Handler())

	for _, path := range []string{"/users/a", "/users/b", "/users/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, counterValue(t, registry, map[string]string{"route": "/users/{id}", "method": "GET", "status": "200"}))
	assert.Equal(t, 1.0, counterValue(t, registry, map[string]string{"route": "/users/{id}", "method": "GET", "status": "404"}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "tacit_request_duration_seconds"))
	assert.True(t, strings.Contains(body, `tacit_requests_total{method="GET",route="/users/{id}",status="200"} 2`))
}

func TestDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)
	_, err = New(registry)
	assert.Error(t, err)
}

func TestMiddlewareKeepsFlusher(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := New(registry)
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Use(collector.Middleware)
	flushed := false
	router.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if ok {
			w.WriteHeader(http.StatusAccepted)
			f.Flush()
			flushed = true
		}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
	assert.Equal(t, 1.0, counterValue(t, registry, map[string]string{"route": "/stream", "method": "GET", "status": "202"}))
}
