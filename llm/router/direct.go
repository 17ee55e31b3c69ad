package router

import (
	"context"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// DirectRouter looks up the request's model id in a static mapping table
// and returns immediately on a hit. It is always tried first by the Smart
// Router orchestrator, ahead of any strategy selection.
type DirectRouter struct {
	Enabled bool
	// Mappings maps canonical model id -> (provider, provider-model-id).
	Mappings map[string]DirectTarget
}

// DirectTarget is one entry of the direct-mapping table.
type DirectTarget struct {
	Provider        string
	ProviderModelID string
}

// NewDirectRouter creates a router over the given static mapping table.
func NewDirectRouter(mappings map[string]DirectTarget) *DirectRouter {
	if mappings == nil {
		mappings = make(map[string]DirectTarget)
	}
	return &DirectRouter{Enabled: true, Mappings: mappings}
}

func (r *DirectRouter) Route(_ context.Context, req *llmpkg.ChatRequest) RoutingResult {
	if !r.Enabled {
		return fail("DirectMapping", "disabled")
	}
	target, ok := r.Mappings[req.Model]
	if !ok {
		return fail("DirectMapping", "no direct mapping for model")
	}
	return success("DirectMapping", target.Provider, req.Model, target.ProviderModelID, "direct mapping hit")
}
