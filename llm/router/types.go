package router

import (
	"context"

	llmpkg "github.com/corvusgate/gateway/llm"
)

// RoutingResult is the outcome of a single routing decision, produced per
// request and never persisted beyond the request lifetime.
type RoutingResult struct {
	Provider         string
	ModelID          string // canonical model id
	ProviderModelID  string
	Strategy         string
	Reason           string
	Success          bool
	ErrorMessage     string
}

// Router selects a (provider, model) pair for a canonical completion
// request. Every sub-router in this package implements it; each is guarded
// by its own configuration toggle and returns Success:false (never an
// error) when it cannot make a selection, so the orchestrator can move on
// to the next strategy.
type Router interface {
	Route(ctx context.Context, req *llmpkg.ChatRequest) RoutingResult
}

func fail(strategy, reason string) RoutingResult {
	return RoutingResult{Strategy: strategy, Success: false, ErrorMessage: reason}
}

func success(strategy, provider, modelID, providerModelID, reason string) RoutingResult {
	return RoutingResult{
		Strategy:        strategy,
		Provider:        provider,
		ModelID:         modelID,
		ProviderModelID: providerModelID,
		Reason:          reason,
		Success:         true,
	}
}
