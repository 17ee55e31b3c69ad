package router

import (
	"context"
	"fmt"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// PreferredStrategyKey is the ChatRequest.Metadata key a caller can set to
// override automatic strategy selection for this one request.
const PreferredStrategyKey = "preferred_strategy"

// Strategy names, shared with PreferredStrategyKey and ModelStrategies.
const (
	StrategyContentBased    = "ContentBased"
	StrategyCostOptimized   = "CostOptimized"
	StrategyLatencyOptimized = "LatencyOptimized"
	StrategyQualityOptimized = "QualityOptimized"
	StrategyLoadBalanced    = "LoadBalanced"
	StrategyDirect          = "Direct"
)

// SmartModelRegistry is the subset of ModelRegistry the Smart Router needs.
type SmartModelRegistry interface {
	Get(id string) (llmpkg.ModelInfo, error)
	List() []llmpkg.ModelInfo
}

// SmartProviderRegistry is the subset of ProviderRegistry the Smart Router
// needs to turn a resolved provider name into a callable Provider.
type SmartProviderRegistry interface {
	Get(name string) (llmpkg.Provider, bool)
}

// SmartRouter is the orchestrator: it resolves aliases, honours explicit
// preferences, tries a direct mapping, then falls back to a selected
// routing strategy, and finally a raw registry lookup. It implements
// llmpkg.ModelResolver so the Fallback Executor can drive it directly.
type SmartRouter struct {
	models    SmartModelRegistry
	providers SmartProviderRegistry

	// Aliases maps a user-facing alias (e.g. "gpt-4-latest") to a
	// canonical model id.
	Aliases map[string]string
	// ModelStrategies maps a canonical model id to the strategy name
	// that should be used whenever a request explicitly names that model
	// id, taking precedence over the heuristic default.
	ModelStrategies map[string]string

	Direct  *DirectRouter
	Content *ContentRouter
	Cost    *CostRouter
	Latency *LatencyRouter
	Quality *QualityRouter
	LoadBal *LoadBalanceRouter
}

// NewSmartRouter assembles an orchestrator from already-constructed
// sub-routers. Any of the sub-router fields may be left nil, in which case
// that strategy is treated as unavailable and selection falls through to
// the next rule.
func NewSmartRouter(models SmartModelRegistry, providers SmartProviderRegistry, aliases, modelStrategies map[string]string, direct *DirectRouter, content *ContentRouter, cost *CostRouter, latency *LatencyRouter, quality *QualityRouter, loadBal *LoadBalanceRouter) *SmartRouter {
	return &SmartRouter{
		models:          models,
		providers:       providers,
		Aliases:         aliases,
		ModelStrategies: modelStrategies,
		Direct:          direct,
		Content:         content,
		Cost:            cost,
		Latency:         latency,
		Quality:         quality,
		LoadBal:         loadBal,
	}
}

// Route implements the five-step selection algorithm: resolve aliases,
// honour an explicit per-request strategy preference, try the direct
// mapping table, otherwise pick a strategy (model preference, then a
// heuristic default) and dispatch to it, and finally fall back to a raw
// registry lookup.
func (r *SmartRouter) Route(ctx context.Context, req *llmpkg.ChatRequest) RoutingResult {
	requested := req.Model
	if canon, ok := r.Aliases[requested]; ok {
		requested = canon
	}

	resolvedReq := req
	if requested != req.Model {
		clone := *req
		clone.Model = requested
		resolvedReq = &clone
	}

	if r.Direct != nil && r.Direct.Enabled {
		if res := r.Direct.Route(ctx, resolvedReq); res.Success {
			return res
		}
	}

	strategy := r.selectStrategy(resolvedReq, requested)

	if res, ok := r.dispatch(ctx, strategy, resolvedReq); ok {
		return res
	}

	info, err := r.models.Get(requested)
	if err != nil {
		return fail(StrategyDirect, fmt.Sprintf("no provider for model %q", requested))
	}
	return success(StrategyDirect, info.Provider, info.ID, info.ProviderModelID, "direct registry lookup")
}

// selectStrategy applies the preference precedence: explicit per-request
// metadata override, then a per-model configured strategy, then the
// heuristic default (low temperature favours quality, a generous
// max_tokens favours cost, otherwise spread load).
func (r *SmartRouter) selectStrategy(req *llmpkg.ChatRequest, modelID string) string {
	if req.Metadata != nil {
		if s, ok := req.Metadata[PreferredStrategyKey]; ok && s != "" {
			return s
		}
	}
	if s, ok := r.ModelStrategies[modelID]; ok && s != "" {
		return s
	}
	switch {
	case req.Temperature > 0 && req.Temperature < 0.3:
		return StrategyQualityOptimized
	case req.MaxTokens > 1000:
		return StrategyCostOptimized
	default:
		return StrategyLoadBalanced
	}
}

func (r *SmartRouter) dispatch(ctx context.Context, strategy string, req *llmpkg.ChatRequest) (RoutingResult, bool) {
	switch strategy {
	case StrategyContentBased:
		if r.Content != nil && r.Content.Enabled {
			if res := r.Content.Route(ctx, req); res.Success {
				return res, true
			}
		}
	case StrategyCostOptimized:
		if r.Cost != nil && r.Cost.Enabled {
			if res := r.Cost.Route(ctx, req); res.Success {
				return res, true
			}
		}
	case StrategyLatencyOptimized:
		if r.Latency != nil && r.Latency.Enabled {
			if res := r.Latency.Route(ctx, req); res.Success {
				return res, true
			}
		}
	case StrategyQualityOptimized:
		if r.Quality != nil && r.Quality.Enabled {
			if res := r.Quality.Route(ctx, req); res.Success {
				return res, true
			}
		}
	case StrategyLoadBalanced:
		if r.LoadBal != nil && r.LoadBal.Enabled {
			if res := r.LoadBal.Route(ctx, req); res.Success {
				return res, true
			}
		}
	}
	return RoutingResult{}, false
}

// Resolve implements llmpkg.ModelResolver: it routes modelID as a minimal
// completion request and turns the resulting provider name into a live
// Provider via the provider registry.
func (r *SmartRouter) Resolve(ctx context.Context, modelID string) (llmpkg.Provider, string, error) {
	res := r.Route(ctx, &llmpkg.ChatRequest{Model: modelID})
	if !res.Success {
		return nil, "", &llmpkg.Error{
			Code:       llmpkg.ErrModelNotFound,
			Message:    res.ErrorMessage,
			HTTPStatus: 404,
		}
	}
	provider, ok := r.providers.Get(res.Provider)
	if !ok {
		return nil, "", &llmpkg.Error{
			Code:       llmpkg.ErrProviderNotFound,
			Message:    fmt.Sprintf("provider %q not registered", res.Provider),
			HTTPStatus: 503,
		}
	}
	return provider, res.ProviderModelID, nil
}
