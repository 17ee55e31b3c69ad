package llm

import (
	"sync"
	"sync/atomic"
	"time"
)

// ModelPerformance holds per-model counters. Updates are commutative
// atomic increments; snapshots are eventually consistent and cheap to
// take (copy-on-read, no lock held across the copy).
type ModelPerformance struct {
	Model           string
	RequestCount    int64
	SuccessCount    int64
	FailureCount    int64
	TotalLatencyMs  int64
	LastSeen        time.Time
}

// AvgLatencyMs returns the simple arithmetic average latency across all
// recorded requests, or 0 if none have been recorded.
func (p ModelPerformance) AvgLatencyMs() float64 {
	if p.RequestCount == 0 {
		return 0
	}
	return float64(p.TotalLatencyMs) / float64(p.RequestCount)
}

// SuccessRate returns SuccessCount/RequestCount, or 1.0 (optimistic
// default) when no requests have been recorded yet.
func (p ModelPerformance) SuccessRate() float64 {
	if p.RequestCount == 0 {
		return 1.0
	}
	return float64(p.SuccessCount) / float64(p.RequestCount)
}

type modelCounters struct {
	requestCount   atomic.Int64
	successCount   atomic.Int64
	failureCount   atomic.Int64
	totalLatencyMs atomic.Int64
	lastSeenUnix   atomic.Int64
}

// PerformanceThresholds configures when the monitor raises an alert for a
// model: success rate dropping below MinSuccessRate, or average latency
// exceeding MaxAvgLatencyMs. Either check is skipped when its field is
// zero/unset.
type PerformanceThresholds struct {
	MinSuccessRate  float64
	MaxAvgLatencyMs float64
	// MinSamples is the number of requests required before thresholds are
	// evaluated; avoids alerting on a single cold-start failure.
	MinSamples int64
}

// PerformanceMonitor keeps a rolling per-model success-rate and latency
// average, fed by provider adapters after every completion attempt, and
// consumed by the latency- and quality-optimised routers. Counters never
// shrink automatically; operators trigger Reset explicitly.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	counters   map[string]*modelCounters
	thresholds PerformanceThresholds
	alertSink  AlertSink
	// alerted tracks which models already had an alert fired for the
	// current threshold breach, so repeated failing calls don't spam the
	// sink; cleared once the model recovers above threshold.
	alerted map[string]bool
}

// NewPerformanceMonitor creates a monitor. alertSink may be nil, in which
// case threshold breaches are silently not reported.
func NewPerformanceMonitor(thresholds PerformanceThresholds, alertSink AlertSink) *PerformanceMonitor {
	return &PerformanceMonitor{
		counters:   make(map[string]*modelCounters),
		thresholds: thresholds,
		alertSink:  alertSink,
		alerted:    make(map[string]bool),
	}
}

func (m *PerformanceMonitor) counterFor(model string) *modelCounters {
	m.mu.RLock()
	c, ok := m.counters[model]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[model]; ok {
		return c
	}
	c = &modelCounters{}
	m.counters[model] = c
	return c
}

// RecordResult reports the outcome of one completion/embedding attempt for
// a model. Safe for concurrent use from many goroutines.
func (m *PerformanceMonitor) RecordResult(model string, success bool, latency time.Duration) {
	c := m.counterFor(model)
	c.requestCount.Add(1)
	if success {
		c.successCount.Add(1)
	} else {
		c.failureCount.Add(1)
	}
	c.totalLatencyMs.Add(latency.Milliseconds())
	c.lastSeenUnix.Store(time.Now().Unix())

	m.checkThresholds(model, c)
}

func (m *PerformanceMonitor) checkThresholds(model string, c *modelCounters) {
	requests := c.requestCount.Load()
	if m.thresholds.MinSamples > 0 && requests < m.thresholds.MinSamples {
		return
	}
	if requests == 0 {
		return
	}

	successRate := float64(c.successCount.Load()) / float64(requests)
	avgLatency := float64(c.totalLatencyMs.Load()) / float64(requests)

	breached := false
	if m.thresholds.MinSuccessRate > 0 && successRate < m.thresholds.MinSuccessRate {
		breached = true
	}
	if m.thresholds.MaxAvgLatencyMs > 0 && avgLatency > m.thresholds.MaxAvgLatencyMs {
		breached = true
	}

	m.mu.Lock()
	alreadyAlerted := m.alerted[model]
	if breached && !alreadyAlerted {
		m.alerted[model] = true
	} else if !breached {
		delete(m.alerted, model)
	}
	m.mu.Unlock()

	if breached && !alreadyAlerted && m.alertSink != nil {
		m.alertSink.Send(AlertKindModelPerformance, AlertPayload{
			Model:       model,
			SuccessRate: successRate,
			AvgLatency:  time.Duration(avgLatency) * time.Millisecond,
			Message:     "model performance below configured threshold",
		})
	}
}

// GetMetrics returns a point-in-time snapshot for one model. Returns the
// zero value if no requests have ever been recorded for it.
func (m *PerformanceMonitor) GetMetrics(model string) ModelPerformance {
	m.mu.RLock()
	c, ok := m.counters[model]
	m.mu.RUnlock()
	if !ok {
		return ModelPerformance{Model: model}
	}
	return snapshotCounters(model, c)
}

// GetAllMetrics returns a snapshot for every model with at least one
// recorded request.
func (m *PerformanceMonitor) GetAllMetrics() []ModelPerformance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ModelPerformance, 0, len(m.counters))
	for model, c := range m.counters {
		out = append(out, snapshotCounters(model, c))
	}
	return out
}

func snapshotCounters(model string, c *modelCounters) ModelPerformance {
	lastSeen := time.Time{}
	if unix := c.lastSeenUnix.Load(); unix > 0 {
		lastSeen = time.Unix(unix, 0)
	}
	return ModelPerformance{
		Model:          model,
		RequestCount:   c.requestCount.Load(),
		SuccessCount:   c.successCount.Load(),
		FailureCount:   c.failureCount.Load(),
		TotalLatencyMs: c.totalLatencyMs.Load(),
		LastSeen:       lastSeen,
	}
}

// Reset clears all counters for a model, returning it to a cold-start
// state. Operator-triggered only; never called automatically.
func (m *PerformanceMonitor) Reset(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counters, model)
	delete(m.alerted, model)
}
