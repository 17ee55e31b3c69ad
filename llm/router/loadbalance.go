package router

import (
	"context"
	"math/rand/v2"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// LoadBalanceRouter picks uniformly at random among completion-capable
// models meeting a minimum context-window filter. The RNG is process-local
// (math/rand/v2); distribution across replicas of the gateway is not
// coordinated, a known limitation rather than a bug.
type LoadBalanceRouter struct {
	Enabled    bool
	MinContext int
	registry   ContentModelRegistry
}

// NewLoadBalanceRouter creates a load-balanced router. minContext filters
// out models with a smaller context window than requested; pass 0 for no
// filter.
func NewLoadBalanceRouter(registry ContentModelRegistry, minContext int) *LoadBalanceRouter {
	return &LoadBalanceRouter{Enabled: true, MinContext: minContext, registry: registry}
}

func (r *LoadBalanceRouter) Route(_ context.Context, _ *llmpkg.ChatRequest) RoutingResult {
	if !r.Enabled {
		return fail("LoadBalanced", "disabled")
	}

	var eligible []llmpkg.ModelInfo
	for _, m := range r.registry.List() {
		if !m.SupportsCompletion {
			continue
		}
		if r.MinContext > 0 && m.ContextWindow < r.MinContext {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) == 0 {
		return fail("LoadBalanced", "no eligible model")
	}

	pick := eligible[rand.IntN(len(eligible))]
	return success("LoadBalanced", pick.Provider, pick.ID, pick.ProviderModelID, "uniform random pick")
}
