// Package metrics holds the Prometheus collectors of the routing engine.
// All Record* methods are safe on a nil *Metrics so handlers can run without
// instrumentation in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Routing metrics
	Assignments        *prometheus.CounterVec
	HistoryAppends     prometheus.Counter
	TransientCleanups  prometheus.Counter
	IndexWrites        prometheus.Counter
	CounterDeltas      *prometheus.CounterVec
	Backfills          prometheus.Counter
	ScoreWrites        *prometheus.CounterVec
	Conversions        *prometheus.CounterVec
	HandlerErrors      *prometheus.CounterVec
	ChangesDelivered   *prometheus.CounterVec
	ChangeDeliveryTime prometheus.Histogram
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		Assignments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_assignments_total",
			Help: "Assignment outcomes by result and reason",
		}, []string{"outcome", "reason"}),
		HistoryAppends: f.NewCounter(prometheus.CounterOpts{
			Name: "lead_history_appends_total",
			Help: "History entries appended by the status tracker",
		}),
		TransientCleanups: f.NewCounter(prometheus.CounterOpts{
			Name: "lead_transient_cleanups_total",
			Help: "Writes that cleared transient annotation fields",
		}),
		IndexWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "advisor_index_writes_total",
			Help: "Active inventory index rewrites",
		}),
		CounterDeltas: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_counter_deltas_total",
			Help: "Won/lost counter deltas applied, by counter and sign",
		}, []string{"counter", "sign"}),
		Backfills: f.NewCounter(prometheus.CounterOpts{
			Name: "advisor_counter_backfills_total",
			Help: "Legacy advisors whose counters were rebuilt from their leads",
		}),
		ScoreWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_score_writes_total",
			Help: "Score recomputations persisted, by trigger",
		}, []string{"trigger"}),
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_conversions_total",
			Help: "Conversion decisions by outcome",
		}, []string{"outcome"}),
		HandlerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "handler_errors_total",
			Help: "Failures contained by change handlers",
		}, []string{"component"}),
		ChangesDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "changefeed_deliveries_total",
			Help: "Document changes delivered to handlers, by collection and result",
		}, []string{"collection", "result"}),
		ChangeDeliveryTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "changefeed_delivery_duration_seconds",
			Help:    "Time spent dispatching one change to all handlers",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordAssignment(outcome, reason string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) RecordHistoryAppend() {
	if m == nil {
		return
	}
	m.HistoryAppends.Inc()
}

func (m *Metrics) RecordTransientCleanup() {
	if m == nil {
		return
	}
	m.TransientCleanups.Inc()
}

func (m *Metrics) RecordIndexWrite() {
	if m == nil {
		return
	}
	m.IndexWrites.Inc()
}

// RecordCounterDelta records a non-zero delta on the won or lost counter.
func (m *Metrics) RecordCounterDelta(counter string, delta int) {
	if m == nil || delta == 0 {
		return
	}
	sign := "increment"
	if delta < 0 {
		sign = "decrement"
	}
	m.CounterDeltas.WithLabelValues(counter, sign).Add(float64(abs(delta)))
}

func (m *Metrics) RecordBackfill() {
	if m == nil {
		return
	}
	m.Backfills.Inc()
}

func (m *Metrics) RecordScoreWrite(trigger string) {
	if m == nil {
		return
	}
	m.ScoreWrites.WithLabelValues(trigger).Inc()
}

func (m *Metrics) RecordConversion(outcome string) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordHandlerError(component string) {
	if m == nil {
		return
	}
	m.HandlerErrors.WithLabelValues(component).Inc()
}

func (m *Metrics) RecordDelivery(collection, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChangesDelivered.WithLabelValues(collection, result).Inc()
	m.ChangeDeliveryTime.Observe(duration.Seconds())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
