package router

import (
	"context"
	"sort"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// LatencySource supplies observed per-model latency, so LatencyRouter can
// prefer live data over a model's configured default.
type LatencySource interface {
	GetMetrics(model string) llmpkg.ModelPerformance
}

const (
	latencyMinObservations  = 10
	latencySentinelDefaultMs = 5000
)

// LatencyRouter picks the model with the lowest latency estimate, adjusted
// for the request's estimated input-token load. Per model: if the
// Performance Monitor has at least 10 observations, its average is used;
// otherwise the model's configured default latency; otherwise a 5000ms
// sentinel.
type LatencyRouter struct {
	Enabled  bool
	registry ContentModelRegistry
	perf     LatencySource
}

// NewLatencyRouter creates a latency-optimised router.
func NewLatencyRouter(registry ContentModelRegistry, perf LatencySource) *LatencyRouter {
	return &LatencyRouter{Enabled: true, registry: registry, perf: perf}
}

func (r *LatencyRouter) Route(_ context.Context, req *llmpkg.ChatRequest) RoutingResult {
	if !r.Enabled {
		return fail("LatencyOptimized", "disabled")
	}

	inTokens := estimateInputTokens(req)
	loadFactor := 1.0
	if f := float64(inTokens) / 1000; f > 1 {
		loadFactor = f
	}

	candidates := r.registry.List()
	var eligible []llmpkg.ModelInfo
	for _, m := range candidates {
		if m.SupportsCompletion {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return fail("LatencyOptimized", "no completion-capable model registered")
	}

	type scored struct {
		model   llmpkg.ModelInfo
		latency float64
	}
	scoredModels := make([]scored, 0, len(eligible))
	for _, m := range eligible {
		base := float64(latencySentinelDefaultMs)
		if m.DefaultLatencyMs > 0 {
			base = float64(m.DefaultLatencyMs)
		}
		if r.perf != nil {
			metrics := r.perf.GetMetrics(m.ID)
			if metrics.RequestCount >= latencyMinObservations {
				base = metrics.AvgLatencyMs()
			}
		}
		scoredModels = append(scoredModels, scored{model: m, latency: base * loadFactor})
	}

	sort.Slice(scoredModels, func(i, j int) bool {
		if scoredModels[i].latency != scoredModels[j].latency {
			return scoredModels[i].latency < scoredModels[j].latency
		}
		return scoredModels[i].model.ID < scoredModels[j].model.ID
	})

	best := scoredModels[0].model
	return success("LatencyOptimized", best.Provider, best.ID, best.ProviderModelID, "minimum adjusted latency")
}
