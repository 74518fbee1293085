/*
Package metrics holds the Prometheus collectors for the freight engine.

PURPOSE:
  HTTP traffic metrics recorded by a chi middleware, plus engine counters
  incremented by the pay, dispatch and settlement packages. Everything is
  registered on the default registry through promauto and exposed at
  /metrics by api.NewRouter.

ENGINE COUNTERS:
  freight_payables_generated_total{payee_type}
  freight_pay_rules_skipped_total{reason}
  freight_assignment_results_total{operation, status}
  freight_settlement_transitions_total{to}
  freight_auto_assign_sweeps_total{outcome}

SEE ALSO:
  - api/server.go: Mounts Middleware and Handler
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// HTTP
// =============================================================================

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Middleware records request count, latency and in-flight gauge.
// The route label uses the matched chi pattern to keep cardinality low.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// ENGINE
// =============================================================================

var (
	PayablesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_payables_generated_total",
			Help: "SYSTEM payables written by the pay engine",
		},
		[]string{"payee_type"},
	)

	RulesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_pay_rules_skipped_total",
			Help: "Rate rules skipped during calculation",
		},
		[]string{"reason"},
	)

	AssignmentResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_assignment_results_total",
			Help: "Dispatch assignment outcomes",
		},
		[]string{"operation", "status"},
	)

	SettlementTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_settlement_transitions_total",
			Help: "Settlement status changes by target status",
		},
		[]string{"to"},
	)

	AutoAssignSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_auto_assign_sweeps_total",
			Help: "Scheduled auto-assign sweeps by outcome",
		},
		[]string{"outcome"},
	)
)

// Skip reasons
const (
	SkipBelowThreshold = "below_threshold"
	SkipZeroQuantity   = "zero_quantity"
	SkipMissingData    = "missing_data"
	SkipNotApplicable  = "not_applicable"
	SkipTemplate       = "manual_template"
)
