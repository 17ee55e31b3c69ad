package router

import (
	"context"
	"strings"
	"testing"

	llmpkg "github.com/corvusgate/gateway/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRouter_ClassifiesCodeBeforeGeneral(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "code-model", Provider: "openai", SupportsCompletion: true})
	r := NewContentRouter(reg, map[ContentFamily][]string{FamilyCode: {"code-model"}}, nil, 0, 0)

	res := r.Route(context.Background(), chatReq("```go\nfunc main() {}\n```"))
	require.True(t, res.Success)
	assert.Equal(t, "code-model", res.ModelID)
}

func TestContentRouter_LongFormByCharCount(t *testing.T) {
	reg := newFakeRegistry(
		llmpkg.ModelInfo{ID: "small-ctx", Provider: "openai", SupportsCompletion: true, ContextWindow: 8000},
		llmpkg.ModelInfo{ID: "big-ctx", Provider: "anthropic", SupportsCompletion: true, ContextWindow: 100000},
	)
	r := NewContentRouter(reg, nil, nil, 32000, 100)

	res := r.Route(context.Background(), chatReq(strings.Repeat("a", 200)))
	require.True(t, res.Success)
	assert.Equal(t, "big-ctx", res.ModelID, "longform picks the largest eligible context window")
}

func TestContentRouter_LongFormFallsBackToPreferredWhenNoContextFits(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "preferred", Provider: "openai", SupportsCompletion: true, ContextWindow: 4000})
	r := NewContentRouter(reg, map[ContentFamily][]string{FamilyLongForm: {"preferred"}}, nil, 32000, 100)

	res := r.Route(context.Background(), chatReq(strings.Repeat("a", 200)))
	require.True(t, res.Success)
	assert.Equal(t, "preferred", res.ModelID)
}

func TestContentRouter_GeneralIsTerminalCatchAll(t *testing.T) {
	reg := newFakeRegistry(llmpkg.ModelInfo{ID: "general-model", Provider: "openai", SupportsCompletion: true})
	r := NewContentRouter(reg, map[ContentFamily][]string{FamilyGeneral: {"general-model"}}, nil, 0, 0)

	res := r.Route(context.Background(), chatReq("what's the weather like today"))
	require.True(t, res.Success)
	assert.Equal(t, "general-model", res.ModelID)
}

func TestContentRouter_Disabled(t *testing.T) {
	reg := newFakeRegistry()
	r := NewContentRouter(reg, nil, nil, 0, 0)
	r.Enabled = false
	res := r.Route(context.Background(), chatReq("anything"))
	assert.False(t, res.Success)
}

