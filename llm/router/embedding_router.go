package router

import (
	"context"
	"fmt"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// EmbeddingRouter routes embedding requests. Unlike chat completions,
// embeddings skip content/cost/latency routing entirely: the target is
// either an explicit direct mapping or a plain registry lookup, gated by
// an invariant that the resolved model actually supports embeddings.
type EmbeddingRouter struct {
	Aliases map[string]string
	Direct  *DirectRouter
	models  SmartModelRegistry
}

// NewEmbeddingRouter creates an embedding router. direct may be nil.
func NewEmbeddingRouter(models SmartModelRegistry, aliases map[string]string, direct *DirectRouter) *EmbeddingRouter {
	return &EmbeddingRouter{Aliases: aliases, Direct: direct, models: models}
}

// Route resolves req.Model to a provider/model pair, failing with
// CapabilityNotSupported if the resolved model cannot serve embeddings.
func (r *EmbeddingRouter) Route(ctx context.Context, req *llmpkg.EmbeddingRequest) RoutingResult {
	requested := req.Model
	if canon, ok := r.Aliases[requested]; ok {
		requested = canon
	}

	if r.Direct != nil && r.Direct.Enabled {
		if target, ok := r.Direct.Mappings[requested]; ok {
			info, err := r.models.Get(requested)
			if err == nil && !info.SupportsEmbedding {
				return fail("Direct", fmt.Sprintf("model %q does not support embeddings", requested))
			}
			return success("Direct", target.Provider, requested, target.ProviderModelID, "direct mapping")
		}
	}

	info, err := r.models.Get(requested)
	if err != nil {
		return fail("Direct", fmt.Sprintf("no provider for model %q", requested))
	}
	if !info.SupportsEmbedding {
		return fail("Direct", fmt.Sprintf("model %q does not support embeddings", requested))
	}
	return success("Direct", info.Provider, info.ID, info.ProviderModelID, "direct registry lookup")
}
