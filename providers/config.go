package providers

import "time"

// OpenAIConfig OpenAI Provider 配置
type OpenAIConfig struct {
	APIKey          string        `json:"api_key" yaml:"api_key"`
	BaseURL         string        `json:"base_url" yaml:"base_url"`
	Organization    string        `json:"organization,omitempty" yaml:"organization,omitempty"`
	Model           string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UseResponsesAPI bool          `json:"use_responses_api,omitempty" yaml:"use_responses_api,omitempty"` // 启用新的 Responses API (2025)
}

// ClaudeConfig Claude Provider 配置
type ClaudeConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// CohereConfig Cohere Provider 配置
type CohereConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// HuggingFaceConfig Hugging Face Inference Provider 配置
type HuggingFaceConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AzureOpenAIConfig Azure OpenAI Service Provider 配置.
// 与 OpenAI 相比，认证使用 api-key 请求头，且需要部署名和 API 版本。
type AzureOpenAIConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	Endpoint     string        `json:"endpoint" yaml:"endpoint"` // https://<resource>.openai.azure.com
	Deployment   string        `json:"deployment" yaml:"deployment"`
	APIVersion   string        `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}
