package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []AlertPayload
}

func (s *recordingSink) Send(_ AlertKind, payload AlertPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, payload)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestModelPerformance_Derived(t *testing.T) {
	p := ModelPerformance{RequestCount: 4, SuccessCount: 3, TotalLatencyMs: 400}
	assert.Equal(t, 100.0, p.AvgLatencyMs())
	assert.Equal(t, 0.75, p.SuccessRate())

	zero := ModelPerformance{}
	assert.Equal(t, 0.0, zero.AvgLatencyMs())
	assert.Equal(t, 1.0, zero.SuccessRate(), "no samples yet defaults optimistically")
}

func TestPerformanceMonitor_RecordAndRead(t *testing.T) {
	mon := NewPerformanceMonitor(PerformanceThresholds{}, nil)
	mon.RecordResult("gpt-4", true, 100*time.Millisecond)
	mon.RecordResult("gpt-4", false, 300*time.Millisecond)

	m := mon.GetMetrics("gpt-4")
	assert.Equal(t, int64(2), m.RequestCount)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, 200.0, m.AvgLatencyMs())
}

func TestPerformanceMonitor_GetMetricsUnknownModel(t *testing.T) {
	mon := NewPerformanceMonitor(PerformanceThresholds{}, nil)
	m := mon.GetMetrics("never-seen")
	assert.Equal(t, int64(0), m.RequestCount)
}

func TestPerformanceMonitor_AlertOncePerCrossing(t *testing.T) {
	sink := &recordingSink{}
	mon := NewPerformanceMonitor(PerformanceThresholds{MinSuccessRate: 0.5, MinSamples: 2}, sink)

	mon.RecordResult("gpt-4", false, time.Millisecond)
	mon.RecordResult("gpt-4", false, time.Millisecond)
	assert.Equal(t, 1, sink.count(), "first breach fires exactly one alert")

	mon.RecordResult("gpt-4", false, time.Millisecond)
	assert.Equal(t, 1, sink.count(), "repeated breaches do not re-fire")

	for i := 0; i < 5; i++ {
		mon.RecordResult("gpt-4", true, time.Millisecond)
	}
	assert.Equal(t, 1, sink.count(), "recovery above threshold does not itself fire an alert")

	for i := 0; i < 8; i++ {
		mon.RecordResult("gpt-4", false, time.Millisecond)
	}
	assert.Equal(t, 2, sink.count(), "a second breach after recovery fires again")
}

func TestPerformanceMonitor_Reset(t *testing.T) {
	mon := NewPerformanceMonitor(PerformanceThresholds{}, nil)
	mon.RecordResult("gpt-4", true, time.Millisecond)
	mon.Reset("gpt-4")
	m := mon.GetMetrics("gpt-4")
	assert.Equal(t, int64(0), m.RequestCount)
}

func TestPerformanceMonitor_ConcurrentRecordResult(t *testing.T) {
	mon := NewPerformanceMonitor(PerformanceThresholds{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mon.RecordResult("gpt-4", true, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), mon.GetMetrics("gpt-4").RequestCount)
}
