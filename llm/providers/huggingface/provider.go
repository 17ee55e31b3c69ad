// Package huggingface implements the Hugging Face Inference Provider adapter.
//
// Hugging Face's router exposes an OpenAI-compatible chat completions
// endpoint (https://router.huggingface.co/v1), so this adapter is a thin
// configuration of openaicompat.Provider rather than a bespoke wire
// translation. Native function calling is not assumed to be supported
// across the full catalogue of hosted models, so it defaults to false.
package huggingface

import (
	"net/http"
	"time"

	"github.com/corvusgate/gateway/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Config holds Hugging Face provider configuration.
type Config struct {
	APIKey       string
	BaseURL      string // defaults to https://router.huggingface.co/v1
	DefaultModel string
	Timeout      time.Duration
}

// New creates a Hugging Face Inference provider.
func New(cfg Config, logger *zap.Logger) *openaicompat.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1"
	}
	supportsTools := false

	p := openaicompat.New(openaicompat.Config{
		ProviderName:       "huggingface",
		APIKey:             cfg.APIKey,
		BaseURL:            baseURL,
		DefaultModel:       cfg.DefaultModel,
		FallbackModel:      "meta-llama/Llama-3.3-70B-Instruct",
		Timeout:            cfg.Timeout,
		SupportsEmbeddings: false,
		SupportsTools:      &supportsTools,
	}, logger)

	p.SetBuildHeaders(func(req *http.Request, apiKey string) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")
	})

	return p
}
