package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP and session metrics.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionResets   prometheus.Counter
	ActiveSessions  prometheus.Gauge
	RateLimited     *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "drivematch_sessions_started_total",
			Help: "Total number of onboarding sessions started",
		}),
		SessionResets: f.NewCounter(prometheus.CounterOpts{
			Name: "drivematch_session_resets_total",
			Help: "Total number of session resets",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "drivematch_sessions_active",
			Help: "Sessions currently held in memory",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drivematch_rate_limited_total",
			Help: "Requests rejected by a rate limiter, by limiter name",
		}, []string{"limiter"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drivematch_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drivematch_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}
}

func (m *Metrics) IncSessionsStarted() {
	if m != nil {
		m.SessionsStarted.Inc()
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) IncSessionResets() {
	if m != nil {
		m.SessionResets.Inc()
	}
}

// IncActiveSessions counts a session brought back from the snapshot store.
func (m *Metrics) IncActiveSessions() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) DecActiveSessions() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) IncRateLimited(limiter string) {
	if m != nil {
		m.RateLimited.WithLabelValues(limiter).Inc()
	}
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so ids in paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
