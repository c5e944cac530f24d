// Package metrics counts and times requests with prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes all metric names
const Namespace = "tacit"

// Collector holds the request metrics of one service
type Collector struct {
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the collector and registers its metrics with registry
func New(registry *prometheus.Registry) (*Collector, error) {
	c := &Collector{
		gatherer: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Number of handled requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of handled requests by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	for _, collector := range []prometheus.Collector{c.requests, c.duration} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Middleware observes every request passing the router. Requests are
// labelled with the route template so that item keys do not create new
// series.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		m := httpsnoop.CaptureMetrics(next, w, r)
		c.duration.WithLabelValues(route, r.Method).Observe(m.Duration.Seconds())
		c.requests.WithLabelValues(route, r.Method, strconv.Itoa(m.Code)).Inc()
	})
}

// Handler serves the gathered metrics in the prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
