package router

import (
	"context"
	"testing"

	llmpkg "github.com/corvusgate/gateway/llm"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Property: for any registry of completion-capable models and any chat
// request, CostRouter and LatencyRouter each return the same selection no
// matter how many times they're asked — map iteration order (fakeRegistry.List
// ranges over a Go map) must never leak into the winner.
func TestCostRouter_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "modelCount")
		models := make([]llmpkg.ModelInfo, 0, n)
		for i := 0; i < n; i++ {
			id := rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "modelID")
			models = append(models, llmpkg.ModelInfo{
				ID:                 id,
				Provider:           "openai",
				SupportsCompletion: true,
				InputCostPer1K:     rapid.Float64Range(0.0001, 1.0).Draw(rt, "inputCost"),
				OutputCostPer1K:    rapid.Float64Range(0.0001, 1.0).Draw(rt, "outputCost"),
			})
		}
		content := rapid.StringMatching(`[a-zA-Z ]{0,200}`).Draw(rt, "content")
		maxTokens := rapid.IntRange(0, 8000).Draw(rt, "maxTokens")
		req := &llmpkg.ChatRequest{
			Messages:  []llmpkg.Message{{Role: llmpkg.RoleUser, Content: content}},
			MaxTokens: maxTokens,
		}

		first := NewCostRouter(newFakeRegistry(models...)).Route(context.Background(), req)
		for i := 0; i < 5; i++ {
			// A fresh registry (and thus a fresh, independently-randomized
			// map) each iteration; the selection must not move.
			got := NewCostRouter(newFakeRegistry(models...)).Route(context.Background(), req)
			require.Equal(rt, first.Success, got.Success)
			require.Equal(rt, first.ModelID, got.ModelID)
			require.Equal(rt, first.ProviderModelID, got.ProviderModelID)
		}
	})
}

func TestLatencyRouter_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "modelCount")
		models := make([]llmpkg.ModelInfo, 0, n)
		perf := make(map[string]llmpkg.ModelPerformance, n)
		for i := 0; i < n; i++ {
			id := rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "modelID")
			models = append(models, llmpkg.ModelInfo{
				ID:                 id,
				Provider:           "openai",
				SupportsCompletion: true,
				DefaultLatencyMs:   rapid.IntRange(10, 4000).Draw(rt, "defaultLatency"),
			})
			if rapid.Bool().Draw(rt, "hasObservations") {
				perf[id] = llmpkg.ModelPerformance{
					Model:          id,
					RequestCount:   int64(rapid.IntRange(10, 1000).Draw(rt, "requestCount")),
					TotalLatencyMs: int64(rapid.IntRange(100, 500000).Draw(rt, "totalLatency")),
				}
			}
		}
		req := modelReq("whatever")

		runOnce := func() RoutingResult {
			reg := newFakeRegistry(models...)
			src := &fakeLatencySource{metrics: perf}
			return NewLatencyRouter(reg, src).Route(context.Background(), req)
		}

		first := runOnce()
		for i := 0; i < 5; i++ {
			got := runOnce()
			require.Equal(rt, first.Success, got.Success)
			require.Equal(rt, first.ModelID, got.ModelID)
		}
	})
}

// Property: SmartRouter's direct-mapping precedence is independent of the
// underlying registry's iteration order — a model with both a direct
// mapping and an alias always resolves through DirectMapping first, for any
// alias name and any number of unrelated models sharing the registry.
func TestSmartRouter_DirectMappingPrecedenceIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		targetID := "target-model"
		noise := rapid.IntRange(0, 6).Draw(rt, "noiseCount")
		models := []llmpkg.ModelInfo{{ID: targetID, Provider: "openai", SupportsCompletion: true}}
		for i := 0; i < noise; i++ {
			id := rapid.StringMatching(`[a-z]{4,12}`).Draw(rt, "noiseID")
			if id == targetID {
				continue
			}
			models = append(models, llmpkg.ModelInfo{ID: id, Provider: "openai", SupportsCompletion: true})
		}
		alias := rapid.StringMatching(`[a-z]{3,10}-latest`).Draw(rt, "alias")
		nativeID := rapid.StringMatching(`[a-z0-9]{3,12}`).Draw(rt, "nativeID")

		reg := newFakeRegistry(models...)
		direct := NewDirectRouter(map[string]DirectTarget{targetID: {Provider: "openai", ProviderModelID: nativeID}})
		aliases := map[string]string{alias: targetID}
		r := NewSmartRouter(reg, nil, aliases, nil, direct, nil, nil, nil, nil, nil)

		res := r.Route(context.Background(), modelReq(alias))
		require.True(rt, res.Success)
		require.Equal(rt, "DirectMapping", res.Strategy)
		require.Equal(rt, nativeID, res.ProviderModelID)
	})
}
