package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cmdb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// Upsert engine metrics
	upsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdb",
			Subsystem: "engine",
			Name:      "upserts_total",
			Help:      "Total number of configuration item upserts by outcome",
		},
		[]string{"outcome"}, // created, updated, touched, error
	)

	baselineRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdb",
			Subsystem: "engine",
			Name:      "baseline_records_total",
			Help:      "Total number of baseline records written by operation",
		},
		[]string{"operation"},
	)

	traversalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cmdb",
			Subsystem: "engine",
			Name:      "traversal_duration_seconds",
			Help:      "Duration of relationship graph traversals in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	edgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdb",
			Subsystem: "engine",
			Name:      "relationship_edges_total",
			Help:      "Total number of relationship edge operations",
		},
		[]string{"operation"}, // created, deduplicated, deleted
	)
)

// RecordUpsert increments the upsert counter for the given outcome.
func RecordUpsert(outcome string) {
	upsertsTotal.WithLabelValues(outcome).Inc()
}

// RecordBaselineRecord increments the baseline record counter.
func RecordBaselineRecord(operation string) {
	baselineRecordsTotal.WithLabelValues(operation).Inc()
}

// ObserveTraversal records the duration of one graph traversal.
func ObserveTraversal(d time.Duration) {
	traversalDuration.Observe(d.Seconds())
}

// RecordEdge increments the relationship edge counter.
func RecordEdge(operation string) {
	edgesTotal.WithLabelValues(operation).Inc()
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.status)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
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
