// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process's Prometheus registry together with the
// management API request instruments. It starts with the Go runtime and
// process collectors.
type Registry struct {
	reg *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := []string{"method", "route", "status"}
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recordlock_http_requests_total",
			Help: "Management API requests.",
		}, labels),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "recordlock_http_request_duration_seconds",
			Help: "Management API request latency.",
		}, labels),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "recordlock_http_requests_in_flight",
			Help: "Management API requests being served.",
		}),
	}
}

// Registerer is where other components register their instruments.
func (r *Registry) Registerer() prometheus.Registerer { return r.reg }

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the OpenMetrics exposition.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartRequest counts a request in flight. Calling the returned func with
// the route template and status records it as finished.
func (r *Registry) StartRequest(method string) func(route string, status int) {
	start := time.Now()
	r.inFlight.Inc()
	return func(route string, status int) {
		r.inFlight.Dec()
		code := strconv.Itoa(status)
		r.requests.WithLabelValues(method, route, code).Inc()
		r.latency.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
	}
}
