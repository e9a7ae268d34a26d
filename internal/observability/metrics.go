package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	closuresTotal   prometheus.Counter
	restrictedMode  prometheus.Gauge
	authzDenied     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinea_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinea_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	closures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinea_closures_total",
		Help: "Business days closed since process start.",
	})
	restricted := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clinea_restricted_mode",
		Help: "1 while the business date lags the wall clock, 0 otherwise.",
	})
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinea_authz_denied_total",
		Help: "Refused capability checks by capability code.",
	}, []string{"capability"})
	registry.MustRegister(requests, duration, closures, restricted, denied)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		closuresTotal:   closures,
		restrictedMode:  restricted,
		authzDenied:     denied,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ClosureRecorded counts one completed business-day closure.
func (m *Metrics) ClosureRecorded() {
	if m != nil {
		m.closuresTotal.Inc()
	}
}

// SetRestrictedMode reflects the drift flag observed by the poller.
func (m *Metrics) SetRestrictedMode(restricted bool) {
	if m == nil {
		return
	}
	if restricted {
		m.restrictedMode.Set(1)
	} else {
		m.restrictedMode.Set(0)
	}
}

// AuthzDenied counts one refused capability check.
func (m *Metrics) AuthzDenied(capability string) {
	if m != nil {
		m.authzDenied.WithLabelValues(capability).Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
