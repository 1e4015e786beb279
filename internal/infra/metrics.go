package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	tradesExecuted  atomic.Uint64
	tradesRejected  atomic.Uint64
	refreshTicks    atomic.Uint64
	refreshFailures atomic.Uint64

	// Latency tracking (execution path)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	wsClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTradeExecuted records a successful execution with its latency.
func (m *Metrics) RecordTradeExecuted(latencyNs int64) {
	m.tradesExecuted.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordTradeRejected records a rejected execution attempt.
func (m *Metrics) RecordTradeRejected() {
	m.tradesRejected.Add(1)
}

// RecordRefreshTick records a successful price refresh pass.
func (m *Metrics) RecordRefreshTick() {
	m.refreshTicks.Add(1)
}

// RecordRefreshFailure records a failed price refresh pass.
func (m *Metrics) RecordRefreshFailure() {
	m.refreshFailures.Add(1)
}

// IncrementWSClients increments connected websocket clients by 1.
func (m *Metrics) IncrementWSClients() {
	m.wsClients.Add(1)
}

// DecrementWSClients decrements connected websocket clients by 1.
func (m *Metrics) DecrementWSClients() {
	m.wsClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TradesExecuted  uint64    `json:"trades_executed"`
	TradesRejected  uint64    `json:"trades_rejected"`
	RefreshTicks    uint64    `json:"refresh_ticks"`
	RefreshFailures uint64    `json:"refresh_failures"`
	AvgLatencyNs    int64     `json:"avg_latency_ns"`
	WSClients       int32     `json:"ws_clients"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		TradesExecuted:  m.tradesExecuted.Load(),
		TradesRejected:  m.tradesRejected.Load(),
		RefreshTicks:    m.refreshTicks.Load(),
		RefreshFailures: m.refreshFailures.Load(),
		AvgLatencyNs:    avgLatency,
		WSClients:       m.wsClients.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.tradesExecuted.Store(0)
	m.tradesRejected.Store(0)
	m.refreshTicks.Store(0)
	m.refreshFailures.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.wsClients.Store(0)
}
