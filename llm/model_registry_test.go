package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRegistry_MergePrecedence(t *testing.T) {
	r := NewModelRegistry()

	r.LoadHardcoded([]ModelInfo{{ID: "gpt-4", Provider: "openai", ContextWindow: 8192}})
	r.LoadDynamic([]ModelInfo{{ID: "gpt-4", Provider: "openai", ContextWindow: 128000}})
	r.LoadHardcoded([]ModelInfo{{ID: "gpt-4", Provider: "openai", ContextWindow: 4096}})

	m, err := r.Get("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 128000, m.ContextWindow, "a later hardcoded load must not clobber a dynamic entry")

	r.LoadConfigured([]ModelInfo{{ID: "gpt-4", Provider: "openai", ContextWindow: 32000}})
	m, err = r.Get("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 32000, m.ContextWindow, "configured entries take precedence over dynamic ones")

	r.LoadDynamic([]ModelInfo{{ID: "gpt-4", Provider: "openai", ContextWindow: 200000}})
	m, err = r.Get("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 32000, m.ContextWindow, "dynamic loads must never overwrite a configured entry")
}

func TestModelRegistry_GetNotFound(t *testing.T) {
	r := NewModelRegistry()
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.Equal(t, ErrModelNotFound, GetErrorCode(err))
}

func TestModelRegistry_FilterByCapability(t *testing.T) {
	r := NewModelRegistry()
	r.LoadHardcoded([]ModelInfo{
		{ID: "a", SupportsEmbedding: true},
		{ID: "b", SupportsEmbedding: false},
		{ID: "c", SupportsEmbedding: true},
	})

	embedders := r.FilterByCapability(func(m ModelInfo) bool { return m.SupportsEmbedding })
	assert.Len(t, embedders, 2)
}

func TestModelRegistry_ListSortedAndRemove(t *testing.T) {
	r := NewModelRegistry()
	r.LoadHardcoded([]ModelInfo{{ID: "zeta"}, {ID: "alpha"}, {ID: "mu"}})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, []string{list[0].ID, list[1].ID, list[2].ID})

	r.Remove("mu")
	assert.Equal(t, 2, r.Len())
	_, err := r.Get("mu")
	assert.Error(t, err)
}
