package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Outcome 一次提交的结果
type Outcome string

const (
	OutcomePredicted     Outcome = "predicted"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeRequestFailed Outcome = "request_failed"
	OutcomeIgnored       Outcome = "ignored"
)

// Metrics 指标收集器: submit outcomes and prediction latency since start.
type Metrics struct {
	mu        sync.RWMutex
	outcomes  map[Outcome]int64
	latency   latencyStats
	startTime time.Time
}

type latencyStats struct {
	count int64
	total time.Duration
	max   time.Duration
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Outcomes      map[Outcome]int64 `json:"outcomes"`
	Predictions   int64             `json:"predictions"`
	MeanLatencyMS float64           `json:"mean_latency_ms"`
	MaxLatencyMS  float64           `json:"max_latency_ms"`
	Uptime        string            `json:"uptime"`
	Goroutines    int               `json:"goroutines"`
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:  make(map[Outcome]int64),
		startTime: time.Now(),
	}
}

// RecordSubmit 记录一次提交. elapsed only counts for submits that reached
// the prediction service.
func (m *Metrics) RecordSubmit(outcome Outcome, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcomes[outcome]++
	if outcome != OutcomePredicted && outcome != OutcomeRequestFailed {
		return
	}
	m.latency.count++
	m.latency.total += elapsed
	if elapsed > m.latency.max {
		m.latency.max = elapsed
	}
}

// Snapshot 获取当前指标
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		Outcomes:     make(map[Outcome]int64, len(m.outcomes)),
		Predictions:  m.latency.count,
		MaxLatencyMS: float64(m.latency.max) / float64(time.Millisecond),
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
		Goroutines:   runtime.NumGoroutine(),
	}
	for k, v := range m.outcomes {
		s.Outcomes[k] = v
	}
	if m.latency.count > 0 {
		s.MeanLatencyMS = float64(m.latency.total) / float64(m.latency.count) / float64(time.Millisecond)
	}
	return s
}

// ExportPrometheus 导出Prometheus文本格式
func (m *Metrics) ExportPrometheus() string {
	s := m.Snapshot()

	var b strings.Builder
	b.WriteString("# HELP dessertcast_submits_total Form submits by outcome.\n")
	b.WriteString("# TYPE dessertcast_submits_total counter\n")

	outcomes := make([]string, 0, len(s.Outcomes))
	for k := range s.Outcomes {
		outcomes = append(outcomes, string(k))
	}
	sort.Strings(outcomes)
	for _, k := range outcomes {
		fmt.Fprintf(&b, "dessertcast_submits_total{outcome=%q} %d\n", k, s.Outcomes[Outcome(k)])
	}

	b.WriteString("# HELP dessertcast_prediction_latency_ms_mean Mean prediction round trip.\n")
	b.WriteString("# TYPE dessertcast_prediction_latency_ms_mean gauge\n")
	fmt.Fprintf(&b, "dessertcast_prediction_latency_ms_mean %f\n", s.MeanLatencyMS)
	b.WriteString("# HELP dessertcast_prediction_latency_ms_max Slowest prediction round trip.\n")
	b.WriteString("# TYPE dessertcast_prediction_latency_ms_max gauge\n")
	fmt.Fprintf(&b, "dessertcast_prediction_latency_ms_max %f\n", s.MaxLatencyMS)
	return b.String()
}
