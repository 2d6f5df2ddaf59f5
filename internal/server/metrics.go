// Prometheus metrics for the HTTP server, plus the per-handler
// instrumentation helper used when registering routes.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// uploadsTotal counts completed upload requests, partitioned by outcome:
	// "ok", "invalid" (client error), or "error" (indexing failure).
	uploadsTotal *prometheus.CounterVec

	// uploadDuration records the wall-clock duration of successful uploads,
	// from request receipt through indexing.
	uploadDuration prometheus.Histogram

	// chunksIndexed counts the total number of chunks indexed across uploads.
	chunksIndexed prometheus.Counter

	// questionsTotal counts the questions answered across /api/v1/run requests.
	questionsTotal prometheus.Counter

	// retrievalDuration records the latency of context collection for a
	// question batch.
	retrievalDuration prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, logical handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default,
// keeping unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clauselens",
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "Total number of upload requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clauselens",
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful uploads, including extraction and indexing.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		chunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clauselens",
			Subsystem: "upload",
			Name:      "chunks_indexed_total",
			Help:      "Total number of document chunks indexed across all uploads.",
		}),

		questionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clauselens",
			Subsystem: "query",
			Name:      "questions_total",
			Help:      "Total number of questions answered across all query requests.",
		}),

		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clauselens",
			Subsystem: "query",
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of retrieval context collection for a question batch.",
			Buckets:   prometheus.DefBuckets,
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clauselens",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clauselens",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

// instrument wraps h to record per-request totals and latency under the
// given logical handler name.
func (s *Server) instrument(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		h(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	})
}
