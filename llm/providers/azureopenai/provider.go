// Package azureopenai implements the Azure OpenAI Service Provider adapter.
//
// Azure reuses the OpenAI chat-completions wire format entirely; what
// differs is transport: auth is an "api-key" header instead of a Bearer
// token, and the endpoint is addressed by deployment name plus a pinned
// api-version query parameter rather than a model name in the body.
package azureopenai

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corvusgate/gateway/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Config holds Azure OpenAI Service provider configuration.
type Config struct {
	APIKey     string
	Endpoint   string // https://<resource>.openai.azure.com
	Deployment string
	APIVersion string // defaults to 2024-10-21
	Timeout    time.Duration
}

// New creates an Azure OpenAI Service provider.
func New(cfg Config, logger *zap.Logger) *openaicompat.Provider {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "2024-10-21"
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	chatPath := fmt.Sprintf("/openai/deployments/%s/chat/completions?api-version=%s", cfg.Deployment, apiVersion)
	embeddingsPath := fmt.Sprintf("/openai/deployments/%s/embeddings?api-version=%s", cfg.Deployment, apiVersion)
	modelsPath := fmt.Sprintf("/openai/models?api-version=%s", apiVersion)

	p := openaicompat.New(openaicompat.Config{
		ProviderName:       "azure-openai",
		APIKey:             cfg.APIKey,
		BaseURL:            endpoint,
		DefaultModel:       cfg.Deployment,
		FallbackModel:      cfg.Deployment,
		Timeout:            cfg.Timeout,
		EndpointPath:       chatPath,
		EmbeddingsEndpoint: embeddingsPath,
		ModelsEndpoint:     modelsPath,
		SupportsEmbeddings: true,
	}, logger)

	p.SetBuildHeaders(func(req *http.Request, apiKey string) {
		req.Header.Set("api-key", apiKey)
		req.Header.Set("Content-Type", "application/json")
	})

	return p
}
