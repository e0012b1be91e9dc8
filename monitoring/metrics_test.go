package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordSubmit(t *testing.T) {
	m := NewMetrics()

	m.RecordSubmit(OutcomePredicted, 10*time.Millisecond)
	m.RecordSubmit(OutcomeRequestFailed, 30*time.Millisecond)
	m.RecordSubmit(OutcomeInvalid, 0)
	m.RecordSubmit(OutcomeInvalid, 0)

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.Outcomes[OutcomePredicted])
	assert.Equal(t, int64(1), s.Outcomes[OutcomeRequestFailed])
	assert.Equal(t, int64(2), s.Outcomes[OutcomeInvalid])
	assert.Equal(t, int64(2), s.Predictions)
	assert.InDelta(t, 20.0, s.MeanLatencyMS, 1e-9)
	assert.InDelta(t, 30.0, s.MaxLatencyMS, 1e-9)
}

func TestMetricsExportPrometheus(t *testing.T) {
	m := NewMetrics()
	m.RecordSubmit(OutcomeIgnored, 0)
	m.RecordSubmit(OutcomePredicted, time.Millisecond)

	out := m.ExportPrometheus()
	assert.Contains(t, out, `dessertcast_submits_total{outcome="ignored"} 1`)
	assert.Contains(t, out, `dessertcast_submits_total{outcome="predicted"} 1`)
	assert.Contains(t, out, "# TYPE dessertcast_prediction_latency_ms_max gauge")
}

func TestMetricsEmpty(t *testing.T) {
	s := NewMetrics().Snapshot()
	assert.Empty(t, s.Outcomes)
	assert.Zero(t, s.MeanLatencyMS)
}
