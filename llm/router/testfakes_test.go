package router

import (
	llmpkg "github.com/corvusgate/gateway/llm"
)

type fakeRegistry struct {
	models map[string]llmpkg.ModelInfo
}

func newFakeRegistry(models ...llmpkg.ModelInfo) *fakeRegistry {
	r := &fakeRegistry{models: make(map[string]llmpkg.ModelInfo)}
	for _, m := range models {
		r.models[m.ID] = m
	}
	return r
}

func (r *fakeRegistry) Get(id string) (llmpkg.ModelInfo, error) {
	m, ok := r.models[id]
	if !ok {
		return llmpkg.ModelInfo{}, &llmpkg.Error{Code: llmpkg.ErrModelNotFound}
	}
	return m, nil
}

func (r *fakeRegistry) List() []llmpkg.ModelInfo {
	out := make([]llmpkg.ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}

type fakeLatencySource struct {
	metrics map[string]llmpkg.ModelPerformance
}

func (s *fakeLatencySource) GetMetrics(model string) llmpkg.ModelPerformance {
	return s.metrics[model]
}

type fakeProviderRegistry struct {
	providers map[string]llmpkg.Provider
}

func (r *fakeProviderRegistry) Get(name string) (llmpkg.Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func chatReq(userContent string) *llmpkg.ChatRequest {
	return &llmpkg.ChatRequest{Messages: []llmpkg.Message{{Role: llmpkg.RoleUser, Content: userContent}}}
}

func modelReq(model string) *llmpkg.ChatRequest {
	return &llmpkg.ChatRequest{Model: model}
}
