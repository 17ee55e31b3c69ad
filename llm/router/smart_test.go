package router

import (
	"context"
	"testing"

	llmpkg "github.com/corvusgate/gateway/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopProvider struct{ name string }

func (p *nopProvider) Completion(context.Context, *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
	return nil, nil
}
func (p *nopProvider) Stream(context.Context, *llmpkg.ChatRequest) (<-chan llmpkg.StreamChunk, error) {
	return nil, nil
}
func (p *nopProvider) CreateEmbedding(context.Context, *llmpkg.EmbeddingRequest) (*llmpkg.EmbeddingResponse, error) {
	return nil, nil
}
func (p *nopProvider) HealthCheck(context.Context) (*llmpkg.HealthStatus, error) {
	return &llmpkg.HealthStatus{Healthy: true}, nil
}
func (p *nopProvider) Name() string                               { return p.name }
func (p *nopProvider) SupportsNativeFunctionCalling() bool         { return false }
func (p *nopProvider) ListModels(context.Context) ([]llmpkg.Model, error) { return nil, nil }

func TestSmartRouter_AliasThenDirectMapping(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "gpt-4", Provider: "openai"})
	direct := NewDirectRouter(map[string]DirectTarget{"gpt-4": {Provider: "openai", ProviderModelID: "gpt-4-0613"}})
	aliases := map[string]string{"gpt4-latest": "gpt-4"}
	r := NewSmartRouter(reg, nil, aliases, nil, direct, nil, nil, nil, nil, nil)

	res := r.Route(context.Background(), modelReq("gpt4-latest"))
	require.True(t, res.Success)
	assert.Equal(t, "gpt-4-0613", res.ProviderModelID)
	assert.Equal(t, "DirectMapping", res.Strategy)
}

func TestSmartRouter_ExplicitMetadataOverridesHeuristic(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "claude-3-opus", Provider: "anthropic"})
	quality := NewQualityRouter(reg, []string{"claude-3-opus"})
	r := NewSmartRouter(reg, nil, nil, nil, nil, nil, nil, nil, quality, nil)

	req := &llmpkg.ChatRequest{
		Model:       "whatever",
		MaxTokens:   5000, // would normally select CostOptimized
		Temperature: 0.9,
		Metadata:    map[string]string{PreferredStrategyKey: StrategyQualityOptimized},
	}
	res := r.Route(context.Background(), req)
	require.True(t, res.Success)
	assert.Equal(t, StrategyQualityOptimized, res.Strategy)
}

func TestSmartRouter_HeuristicLowTemperaturePrefersQuality(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "claude-3-opus", Provider: "anthropic"})
	quality := NewQualityRouter(reg, []string{"claude-3-opus"})
	r := NewSmartRouter(reg, nil, nil, nil, nil, nil, nil, nil, quality, nil)

	res := r.Route(context.Background(), &llmpkg.ChatRequest{Model: "whatever", Temperature: 0.1})
	require.True(t, res.Success)
	assert.Equal(t, StrategyQualityOptimized, res.Strategy)
}

func TestSmartRouter_HeuristicHighMaxTokensPrefersCost(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "cheap", Provider: "openai", SupportsCompletion: true, InputCostPer1K: 0.001, OutputCostPer1K: 0.001})
	cost := NewCostRouter(reg)
	r := NewSmartRouter(reg, nil, nil, nil, nil, nil, cost, nil, nil, nil)

	res := r.Route(context.Background(), &llmpkg.ChatRequest{Model: "whatever", MaxTokens: 4000})
	require.True(t, res.Success)
	assert.Equal(t, StrategyCostOptimized, res.Strategy)
}

func TestSmartRouter_FallsThroughToRawRegistryLookup(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "gpt-4", Provider: "openai", ProviderModelID: "gpt-4"})
	r := NewSmartRouter(reg, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	res := r.Route(context.Background(), &llmpkg.ChatRequest{Model: "gpt-4"})
	require.True(t, res.Success)
	assert.Equal(t, StrategyDirect, res.Strategy)
}

func TestSmartRouter_UnknownModelFails(t *testing.T) {
	reg := newFakeRegistry()
	r := NewSmartRouter(reg, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	res := r.Route(context.Background(), &llmpkg.ChatRequest{Model: "ghost-model"})
	assert.False(t, res.Success)
}

func TestSmartRouter_Resolve_SatisfiesModelResolver(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "gpt-4", Provider: "openai", ProviderModelID: "gpt-4-0613"})
	providers := &fakeProviderRegistry{providers: map[string]llmpkg.Provider{"openai": &nopProvider{name: "openai"}}}
	r := NewSmartRouter(reg, providers, nil, nil, nil, nil, nil, nil, nil, nil)

	var resolver llmpkg.ModelResolver = r
	provider, nativeID, err := resolver.Resolve(context.Background(), "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())
	assert.Equal(t, "gpt-4-0613", nativeID)
}

func TestSmartRouter_Resolve_UnregisteredProvider(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "gpt-4", Provider: "openai", ProviderModelID: "gpt-4-0613"})
	providers := &fakeProviderRegistry{providers: map[string]llmpkg.Provider{}}
	r := NewSmartRouter(reg, providers, nil, nil, nil, nil, nil, nil, nil, nil)

	_, _, err := r.Resolve(context.Background(), "gpt-4")
	require.Error(t, err)
	assert.Equal(t, llmpkg.ErrProviderNotFound, llmpkg.GetErrorCode(err))
}
