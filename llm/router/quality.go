package router

import (
	"context"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// QualityRouter selects from a fixed, priority-ordered list of flagship
// models, returning the first one present in the registry.
type QualityRouter struct {
	Enabled         bool
	PreferredModels []string
	registry        ContentModelRegistry
}

// NewQualityRouter creates a quality-optimised router over a fixed
// preference list.
func NewQualityRouter(registry ContentModelRegistry, preferredModels []string) *QualityRouter {
	return &QualityRouter{Enabled: true, PreferredModels: preferredModels, registry: registry}
}

func (r *QualityRouter) Route(_ context.Context, _ *llmpkg.ChatRequest) RoutingResult {
	if !r.Enabled {
		return fail("QualityOptimized", "disabled")
	}
	for _, modelID := range r.PreferredModels {
		if info, err := r.registry.Get(modelID); err == nil {
			return success("QualityOptimized", info.Provider, info.ID, info.ProviderModelID, "flagship preference")
		}
	}
	return fail("QualityOptimized", "no flagship model mapped")
}
