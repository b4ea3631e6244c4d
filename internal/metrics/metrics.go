// Package metrics provides Prometheus metrics for askdb.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	TurnsTotal    *prometheus.CounterVec
	RoundsPerTurn prometheus.Histogram

	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	ResponseBytes          prometheus.Histogram
	ValidationRejections   *prometheus.CounterVec
	UnknownShapesTotal     prometheus.Counter

	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	BackupsTotal     *prometheus.CounterVec
	MemoryOpsTotal   *prometheus.CounterVec
	MemorySweptTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_turns_total",
				Help: "Total number of user turns by outcome",
			},
			[]string{"outcome"},
		),
		RoundsPerTurn: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "askdb_model_rounds_per_turn",
				Help:    "Number of model round-trips needed to answer one user turn",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 12, 16, 32},
			},
		),
		BackendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_backend_requests_total",
				Help: "Total number of inference backend requests",
			},
			[]string{"dialect", "outcome"},
		),
		BackendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askdb_backend_request_duration_seconds",
				Help:    "Duration of inference backend requests in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"dialect"},
		),
		ResponseBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "askdb_backend_response_bytes",
				Help:    "Size of accepted backend response bodies",
				Buckets: prometheus.ExponentialBuckets(512, 4, 10),
			},
		),
		ValidationRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_validation_rejections_total",
				Help: "Backend responses rejected by the response validator",
			},
			[]string{"reason"},
		),
		UnknownShapesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "askdb_backend_unknown_shapes_total",
				Help: "Backend responses whose shape matched no known dialect",
			},
		),
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_tool_calls_total",
				Help: "Tool calls dispatched by outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askdb_tool_call_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"tool"},
		),
		BackupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_backups_total",
				Help: "Automatic backups taken before write tools",
			},
			[]string{"outcome"},
		),
		MemoryOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askdb_memory_operations_total",
				Help: "Result memory cache operations",
			},
			[]string{"operation", "outcome"},
		),
		MemorySweptTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "askdb_memory_swept_total",
				Help: "Memory records removed by expiry sweeps",
			},
		),
	}
}

func (m *Metrics) RecordTurn(outcome string, rounds int) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	if rounds > 0 {
		m.RoundsPerTurn.Observe(float64(rounds))
	}
}

func (m *Metrics) RecordBackendRequest(dialect string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(dialect, outcome).Inc()
	m.BackendRequestDuration.WithLabelValues(dialect).Observe(duration.Seconds())
}

func (m *Metrics) RecordResponseBytes(size int64) {
	if m == nil {
		return
	}
	m.ResponseBytes.Observe(float64(size))
}

func (m *Metrics) RecordValidationRejection(reason string) {
	if m == nil {
		return
	}
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordUnknownShape() {
	if m == nil {
		return
	}
	m.UnknownShapesTotal.Inc()
}

func (m *Metrics) RecordToolCall(tool string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func (m *Metrics) RecordBackup(outcome string) {
	if m == nil {
		return
	}
	m.BackupsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordMemoryOp(operation string, outcome string) {
	if m == nil {
		return
	}
	m.MemoryOpsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.MemorySweptTotal.Add(float64(count))
}
