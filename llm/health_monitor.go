package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor periodically probes every registered provider through its
// own HealthCheck method, tracks a rolling health score and QPS per
// provider, and raises an alert exactly once each time a provider crosses
// the consecutive-failure threshold (and once more when it recovers).
type HealthMonitor struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	interval      time.Duration
	timeout       time.Duration
	failThreshold int

	alertSink AlertSink
	logger    *zap.Logger

	healthScore         map[string]float64
	qpsCounter          map[string]*QPSCounter
	probe               map[string]ProviderProbeResult
	consecutiveFailures map[string]int
	alerted             map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

type QPSCounter struct {
	lastSec atomic.Int64
	buckets [60]atomic.Int64
	maxQPS  atomic.Int64 // 配置的最大 QPS（0 表示无限制）
}

// ProviderHealthStats is a snapshot of one provider's health for reporting.
type ProviderHealthStats struct {
	ProviderCode        string
	HealthScore         float64
	CurrentQPS          int
	ErrorRate           float64
	Latency             time.Duration
	ConsecutiveFailures int
	LastCheckAt         time.Time
}

// ProviderProbeResult is the outcome of the most recent HealthCheck call
// against a provider.
type ProviderProbeResult struct {
	Healthy     bool
	Latency     time.Duration
	ErrorRate   float64
	LastError   string
	LastCheckAt time.Time
}

// NewHealthMonitor builds a monitor over providers and starts its
// background probe loop immediately. providers may be nil or empty; the
// loop then simply has nothing to check each tick.
func NewHealthMonitor(providers map[string]Provider, alertSink AlertSink, logger *zap.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	if alertSink == nil {
		alertSink = NopAlertSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	monitor := &HealthMonitor{
		providers:           providers,
		interval:            60 * time.Second,
		timeout:             10 * time.Second,
		failThreshold:       3,
		alertSink:           alertSink,
		logger:              logger,
		healthScore:         make(map[string]float64),
		qpsCounter:          make(map[string]*QPSCounter),
		probe:               make(map[string]ProviderProbeResult),
		consecutiveFailures: make(map[string]int),
		alerted:             make(map[string]bool),
		ctx:                 ctx,
		cancel:              cancel,
	}

	go monitor.startHealthCheckLoop()

	return monitor
}

// SetInterval overrides the probe loop's tick interval. Must be called
// before the first tick to take effect.
func (m *HealthMonitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// SetFailureThreshold overrides how many consecutive probe failures are
// required before an alert fires.
func (m *HealthMonitor) SetFailureThreshold(n int) {
	if n > 0 {
		m.failThreshold = n
	}
}

func (m *HealthMonitor) Stop() {
	m.cancel()
}

// GetHealthScore returns a provider's health score (0-1). A provider that
// has crossed the consecutive-failure threshold reports 0 regardless of
// its last computed score, so routers can treat it as circuit-broken.
func (m *HealthMonitor) GetHealthScore(providerCode string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveFailures[providerCode] >= m.failThreshold {
		return 0.0
	}

	if counter, exists := m.qpsCounter[providerCode]; exists && counter.maxQPS.Load() > 0 {
		currentQPS := m.getCurrentQPSUnsafe(providerCode)
		if currentQPS >= int(counter.maxQPS.Load()) {
			return 0.0
		}
	}

	if score, exists := m.healthScore[providerCode]; exists {
		return score
	}
	return 1.0 // 默认健康：尚未完成首次探活
}

// GetCurrentQPS 获取当前 QPS
func (m *HealthMonitor) GetCurrentQPS(providerCode string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCurrentQPSUnsafe(providerCode)
}

func (m *HealthMonitor) getCurrentQPSUnsafe(providerCode string) int {
	counter, exists := m.qpsCounter[providerCode]
	if !exists {
		return 0
	}
	now := time.Now()
	counter.bumpWindow(now.Unix())
	var total int64
	for i := range counter.buckets {
		total += counter.buckets[i].Load()
	}
	if total < 0 {
		return 0
	}
	return int(total)
}

// IncrementQPS 记录一次请求
func (m *HealthMonitor) IncrementQPS(providerCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.qpsCounter[providerCode]; !exists {
		m.qpsCounter[providerCode] = newQPSCounter(time.Now())
	}

	counter := m.qpsCounter[providerCode]
	now := time.Now().Unix()
	counter.bumpWindow(now)
	counter.buckets[now%60].Add(1)
}

// SetMaxQPS 设置 Provider 的最大 QPS（0 表示无限制）
func (m *HealthMonitor) SetMaxQPS(providerCode string, maxQPS int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.qpsCounter[providerCode]; !exists {
		m.qpsCounter[providerCode] = newQPSCounter(time.Now())
	}
	m.qpsCounter[providerCode].maxQPS.Store(int64(maxQPS))
}

// GetAllProviderStats 获取所有已探活 Provider 的健康统计
func (m *HealthMonitor) GetAllProviderStats() []ProviderHealthStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ProviderHealthStats, 0, len(m.probe))
	for providerCode, p := range m.probe {
		stats = append(stats, ProviderHealthStats{
			ProviderCode:        providerCode,
			HealthScore:         m.healthScore[providerCode],
			CurrentQPS:          m.getCurrentQPSUnsafe(providerCode),
			ErrorRate:           p.ErrorRate,
			Latency:             p.Latency,
			ConsecutiveFailures: m.consecutiveFailures[providerCode],
			LastCheckAt:         p.LastCheckAt,
		})
	}
	return stats
}

// startHealthCheckLoop probes every registered provider on a fixed tick.
func (m *HealthMonitor) startHealthCheckLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAll(m.ctx)
		}
	}
}

func (m *HealthMonitor) checkAll(ctx context.Context) {
	m.mu.RLock()
	providers := make(map[string]Provider, len(m.providers))
	for name, p := range m.providers {
		providers[name] = p
	}
	m.mu.RUnlock()

	for name, p := range providers {
		m.probeOne(ctx, name, p)
	}
}

func (m *HealthMonitor) probeOne(ctx context.Context, providerCode string, p Provider) {
	if p == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	start := time.Now()
	status, err := p.HealthCheck(probeCtx)
	cancel()

	latency := time.Since(start)
	healthy := err == nil
	errorRate := 0.0
	if status != nil {
		if status.Latency > 0 {
			latency = status.Latency
		}
		healthy = healthy && status.Healthy
		errorRate = status.ErrorRate
	}

	var lastErr string
	if err != nil {
		lastErr = err.Error()
		m.logger.Warn("provider health check failed",
			zap.String("provider", providerCode),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
	}

	result := ProviderProbeResult{
		Healthy:     healthy,
		Latency:     latency,
		ErrorRate:   errorRate,
		LastError:   lastErr,
		LastCheckAt: time.Now(),
	}

	m.mu.Lock()
	m.probe[providerCode] = result
	m.healthScore[providerCode] = calculateHealthScore(result)

	if healthy {
		m.consecutiveFailures[providerCode] = 0
		recovered := m.alerted[providerCode]
		m.alerted[providerCode] = false
		m.mu.Unlock()
		if recovered {
			m.alertSink.Send(AlertKindProviderUnavailable, AlertPayload{
				Provider: providerCode,
				Message:  fmt.Sprintf("provider %s recovered after health check failures", providerCode),
			})
		}
		return
	}

	m.consecutiveFailures[providerCode]++
	crossedThreshold := m.consecutiveFailures[providerCode] == m.failThreshold
	alreadyAlerted := m.alerted[providerCode]
	if crossedThreshold {
		m.alerted[providerCode] = true
	}
	m.mu.Unlock()

	if crossedThreshold && !alreadyAlerted {
		m.alertSink.Send(AlertKindProviderUnavailable, AlertPayload{
			Provider: providerCode,
			Message:  fmt.Sprintf("provider %s failed %d consecutive health checks: %s", providerCode, m.failThreshold, lastErr),
		})
	}
}

// calculateHealthScore derives a 0-1 score from one probe's error rate and
// latency. Bands mirror PerformanceMonitor's own thresholds so routing and
// alerting agree on what "degraded" means.
func calculateHealthScore(p ProviderProbeResult) float64 {
	if !p.Healthy {
		return 0.0
	}

	score := 1.0
	if p.ErrorRate > 0.10 {
		score = 0.2
	} else if p.ErrorRate > 0.05 {
		score = 0.5
	} else if p.ErrorRate > 0.01 {
		score = 0.8
	}

	if p.Latency > 5*time.Second {
		score *= 0.5
	} else if p.Latency > 3*time.Second {
		score *= 0.8
	}

	return score
}

// ForceHealthCheck immediately probes one provider out of band, updating
// its score and consecutive-failure count the same way the background
// loop would.
func (m *HealthMonitor) ForceHealthCheck(ctx context.Context, providerCode string) error {
	m.mu.RLock()
	p, ok := m.providers[providerCode]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("provider not found: %s", providerCode)
	}
	m.probeOne(ctx, providerCode, p)
	return nil
}

func newQPSCounter(now time.Time) *QPSCounter {
	c := &QPSCounter{}
	c.lastSec.Store(now.Unix())
	c.maxQPS.Store(0)
	return c
}

func (c *QPSCounter) bumpWindow(nowSec int64) {
	prev := c.lastSec.Load()
	for nowSec > prev {
		if c.lastSec.CompareAndSwap(prev, nowSec) {
			gap := nowSec - prev
			if gap >= 60 {
				for i := range c.buckets {
					c.buckets[i].Store(0)
				}
				return
			}
			for s := prev + 1; s <= nowSec; s++ {
				c.buckets[s%60].Store(0)
			}
			return
		}
		prev = c.lastSec.Load()
	}
}
