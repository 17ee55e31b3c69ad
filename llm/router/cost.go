package router

import (
	"context"
	"sort"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// CostRouter selects the completion-capable model with the lowest
// estimated cost for the request, estimating input tokens from message
// character counts and output tokens from the requested max_tokens (or a
// 1000-token default).
type CostRouter struct {
	Enabled  bool
	registry ContentModelRegistry
}

// NewCostRouter creates a cost-optimised router over registry.
func NewCostRouter(registry ContentModelRegistry) *CostRouter {
	return &CostRouter{Enabled: true, registry: registry}
}

func estimateInputTokens(req *llmpkg.ChatRequest) int {
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	return chars/4 + 10*len(req.Messages)
}

func estimateOutputTokens(req *llmpkg.ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return 1000
}

func estimatedCost(m llmpkg.ModelInfo, inTokens, outTokens int) float64 {
	return (m.InputCostPer1K*float64(inTokens) + m.OutputCostPer1K*float64(outTokens)) / 1000
}

func (r *CostRouter) Route(_ context.Context, req *llmpkg.ChatRequest) RoutingResult {
	if !r.Enabled {
		return fail("CostOptimized", "disabled")
	}

	inTokens := estimateInputTokens(req)
	outTokens := estimateOutputTokens(req)

	candidates := r.registry.List()
	var eligible []llmpkg.ModelInfo
	for _, m := range candidates {
		if m.SupportsCompletion && (m.InputCostPer1K > 0 || m.OutputCostPer1K > 0) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return fail("CostOptimized", "no model with known cost")
	}

	sort.Slice(eligible, func(i, j int) bool {
		ci := estimatedCost(eligible[i], inTokens, outTokens)
		cj := estimatedCost(eligible[j], inTokens, outTokens)
		if ci != cj {
			return ci < cj
		}
		return eligible[i].ID < eligible[j].ID
	})

	best := eligible[0]
	return success("CostOptimized", best.Provider, best.ID, best.ProviderModelID, "minimum estimated cost")
}
