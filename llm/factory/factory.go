// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports all provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"time"

	"github.com/corvusgate/gateway/llm"
	oaiproviders "github.com/corvusgate/gateway/llm/providers"
	"github.com/corvusgate/gateway/llm/providers/azureopenai"
	"github.com/corvusgate/gateway/llm/providers/cohere"
	"github.com/corvusgate/gateway/llm/providers/huggingface"
	"github.com/corvusgate/gateway/llm/providers/openai"
	"github.com/corvusgate/gateway/llm/providers/openaicompat"
	"github.com/corvusgate/gateway/providers"
	claude "github.com/corvusgate/gateway/providers/anthropic"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory function.
// It uses a flat structure with an Extra map for provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewProviderFromConfig creates a Provider instance based on the provider name
// and a generic ProviderConfig. It maps the name to the appropriate constructor.
//
// Supported names: openai, anthropic (claude), cohere, huggingface, azure-openai.
// Any other name is treated as a generic OpenAI-compatible provider, requiring
// base_url in the configuration.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch name {
	case "openai":
		oc := oaiproviders.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["organization"].(string); ok {
				oc.Organization = v
			}
			if v, ok := cfg.Extra["use_responses_api"].(bool); ok {
				oc.UseResponsesAPI = v
			}
		}
		return openai.NewOpenAIProvider(oc, logger), nil

	case "anthropic", "claude":
		cc := providers.ClaudeConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}
		return claude.NewClaudeProvider(cc, logger), nil

	case "cohere":
		return cohere.New(cohere.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case "huggingface":
		return huggingface.New(huggingface.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil

	case "azure-openai", "azureopenai":
		ac := azureopenai.Config{
			APIKey:   cfg.APIKey,
			Endpoint: cfg.BaseURL,
			Timeout:  cfg.Timeout,
		}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["deployment"].(string); ok {
				ac.Deployment = v
			}
			if v, ok := cfg.Extra["api_version"].(string); ok {
				ac.APIVersion = v
			}
		}
		if ac.Deployment == "" {
			return nil, fmt.Errorf("azure-openai provider requires extra.deployment")
		}
		return azureopenai.New(ac, logger), nil

	default:
		// Generic OpenAI-compatible provider: any name + base_url is enough
		// to route to a self-hosted or third-party compatible endpoint.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q: not a built-in provider, and base_url is required for a generic OpenAI-compatible provider", name)
		}
		oc := openaicompat.Config{
			ProviderName: name,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["endpoint_path"].(string); ok {
				oc.EndpointPath = v
			}
			if v, ok := cfg.Extra["models_endpoint"].(string); ok {
				oc.ModelsEndpoint = v
			}
			if v, ok := cfg.Extra["embeddings_endpoint"].(string); ok {
				oc.EmbeddingsEndpoint = v
			}
			if v, ok := cfg.Extra["supports_tools"].(bool); ok {
				oc.SupportsTools = &v
			}
			if v, ok := cfg.Extra["supports_embeddings"].(bool); ok {
				oc.SupportsEmbeddings = v
			}
		}
		logger.Info("creating generic OpenAI-compatible provider",
			zap.String("provider", name),
			zap.String("base_url", cfg.BaseURL))
		return openaicompat.New(oc, logger), nil
	}
}

// SupportedProviders returns the list of built-in provider names. Any name
// not in this list is treated as a generic OpenAI-compatible provider,
// requiring base_url in the configuration.
func SupportedProviders() []string {
	return []string{"openai", "anthropic", "cohere", "huggingface", "azure-openai"}
}

// RegistryConfig describes multiple providers and which one is the default.
// Use this with NewRegistryFromConfig to build a ProviderRegistry in one call.
type RegistryConfig struct {
	// Default is the name of the default provider (must match a key in Providers).
	Default string `json:"default" yaml:"default"`
	// Providers maps provider names to their configurations.
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
}

// NewRegistryFromConfig creates a ProviderRegistry populated with all providers
// defined in the RegistryConfig. It sets the default provider if specified.
// Any provider that fails to initialize is logged as a warning and skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := llm.NewProviderRegistry()

	for name, pcfg := range cfg.Providers {
		p, err := NewProviderFromConfig(name, pcfg, logger)
		if err != nil {
			logger.Warn("skipping provider: initialization failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		reg.Register(name, p)
		logger.Info("provider registered", zap.String("provider", name))
	}

	if cfg.Default != "" {
		if err := reg.SetDefault(cfg.Default); err != nil {
			return reg, fmt.Errorf("failed to set default provider %q: %w", cfg.Default, err)
		}
	}

	return reg, nil
}
