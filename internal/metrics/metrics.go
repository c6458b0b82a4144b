// Package metrics exposes Prometheus metrics for HTTP traffic and form
// submissions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/shipbroker/internal/core"
)

const namespace = "shipbroker"

// Metrics is the collection of all collectors, registered on its own
// registry so that several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SubmissionsTotal    *prometheus.CounterVec
	SubmissionDuration  *prometheus.HistogramVec
	StepTransitions     *prometheus.CounterVec
	ActiveSessions      prometheus.GaugeFunc
	SubmissionsInFlight prometheus.GaugeFunc
}

// Gauges reads live values at scrape time.
type Gauges struct {
	ActiveSessions      func() int
	SubmissionsInFlight func() int
}

// New creates and registers every metric. Nil gauge functions report 0.
func New(g Gauges) *Metrics {
	if g.ActiveSessions == nil {
		g.ActiveSessions = func() int { return 0 }
	}
	if g.SubmissionsInFlight == nil {
		g.SubmissionsInFlight = func() int { return 0 }
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_submissions_total",
			Help:      "Finished form submissions by outcome",
		},
		[]string{"form", "outcome", "code"},
	)

	m.SubmissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "form_submission_duration_seconds",
			Help:      "Time from submit to final outcome",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"form"},
	)

	m.StepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_step_transitions_total",
			Help:      "Step navigation attempts by action and result",
		},
		[]string{"form", "action", "result"},
	)

	m.ActiveSessions = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "form_sessions_active",
			Help:      "Form sessions currently held in memory",
		},
		func() float64 { return float64(g.ActiveSessions()) },
	)

	m.SubmissionsInFlight = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "form_submissions_in_flight",
			Help:      "Submissions holding a pipeline slot",
		},
		func() float64 { return float64(g.SubmissionsInFlight()) },
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SubmissionsTotal,
		m.SubmissionDuration,
		m.StepTransitions,
		m.ActiveSessions,
		m.SubmissionsInFlight,
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SubmissionFinished implements core.Observer.
func (m *Metrics) SubmissionFinished(form string, state core.SubmissionState, code string, elapsed time.Duration) {
	m.SubmissionsTotal.WithLabelValues(form, string(state), code).Inc()
	m.SubmissionDuration.WithLabelValues(form).Observe(elapsed.Seconds())
}

// StepChanged implements core.Observer.
func (m *Metrics) StepChanged(form, action string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.StepTransitions.WithLabelValues(form, action, result).Inc()
}

// Middleware records request counts and latency, labelled by the matched
// chi route pattern rather than the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var _ core.Observer = (*Metrics)(nil)
