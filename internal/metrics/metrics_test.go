package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTurn("answered", 2)
	m.RecordToolCall("search_records", "ok", 10*time.Millisecond)
	m.RecordToolCall("search_records", "ok", 5*time.Millisecond)
	m.RecordValidationRejection("too_large")
	m.RecordBackup("failed")
	m.RecordMemoryOp("save", "ok")
	m.RecordSwept(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TurnsTotal.WithLabelValues("answered")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search_records", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ValidationRejections.WithLabelValues("too_large")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BackupsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MemoryOpsTotal.WithLabelValues("save", "ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.MemorySweptTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordTurn("answered", 1)
		m.RecordBackendRequest("ollama", "ok", time.Second)
		m.RecordResponseBytes(10)
		m.RecordValidationRejection("content_type")
		m.RecordUnknownShape()
		m.RecordToolCall("x", "ok", time.Millisecond)
		m.RecordBackup("ok")
		m.RecordMemoryOp("load", "not_found")
		m.RecordSwept(1)
	})
}
