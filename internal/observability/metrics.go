package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	shiftsOpened    *prometheus.CounterVec
	shiftsClosed    *prometheus.CounterVec
	shiftDifference *prometheus.HistogramVec
}

// NewMetrics initialises the registry with HTTP and shift reconciliation metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_pos_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_pos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	opened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_pos_shifts_opened_total",
		Help: "Shifts opened by kind.",
	}, []string{"kind"})
	closed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_pos_shifts_closed_total",
		Help: "Shifts closed by kind and reconciliation outcome.",
	}, []string{"kind", "outcome"})
	difference := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_pos_shift_difference",
		Help:    "Declared minus expected amount at close, in currency units.",
		Buckets: []float64{-100, -50, -20, -10, -5, -1, 0, 1, 5, 10, 20, 50, 100},
	}, []string{"kind"})
	registry.MustRegister(requests, duration, opened, closed, difference)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		shiftsOpened:    opened,
		shiftsClosed:    closed,
		shiftDifference: difference,
	}
}

// ShiftOpened counts a newly opened shift.
func (m *Metrics) ShiftOpened(kind string) {
	if m == nil {
		return
	}
	m.shiftsOpened.WithLabelValues(kind).Inc()
}

// ShiftClosed counts a close and observes its difference.
func (m *Metrics) ShiftClosed(kind, outcome string, difference float64) {
	if m == nil {
		return
	}
	m.shiftsClosed.WithLabelValues(kind, outcome).Inc()
	m.shiftDifference.WithLabelValues(kind).Observe(difference)
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
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

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
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
