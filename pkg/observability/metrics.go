package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capture_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "capture_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"route"},
	)

	// EventsTotal counts processed events by source and pipeline outcome
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_events_total",
			Help: "Total number of notification events by outcome",
		},
		[]string{"source", "outcome"},
	)

	// PipelineDuration tracks the time spent on one event
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capture_pipeline_duration_seconds",
			Help:    "Per-event pipeline duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"source"},
	)

	// RewardCreditsTotal sums the credits granted for captured transactions
	RewardCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capture_reward_credits_total",
			Help: "Total reward credits granted for captured transactions",
		},
	)

	// QueueDepth is the number of events waiting for a worker
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capture_queue_depth",
			Help: "Number of events waiting in the dispatch queue",
		},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// NewMetricsMiddleware collects Prometheus metrics for one route
func NewMetricsMiddleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Track active requests
			ActiveRequests.WithLabelValues(route).Inc()
			defer ActiveRequests.WithLabelValues(route).Dec()

			// Track duration
			start := time.Now()
			defer func() {
				RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			}()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		})
	}
}
