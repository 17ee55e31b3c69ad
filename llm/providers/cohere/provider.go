// Package cohere implements the Cohere Chat and Embed Provider adapter.
//
// Cohere's wire format differs from OpenAI's in the same way Anthropic's
// does: there is no "system" message role in the messages array. Cohere
// instead takes a single "preamble" string plus a "chat_history" array and
// a "message" holding the latest user turn. This adapter extracts the
// canonical system message (if any) into preamble and folds everything
// before the final user turn into chat_history.
package cohere

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corvusgate/gateway/internal/tlsutil"
	"github.com/corvusgate/gateway/llm"
	"github.com/corvusgate/gateway/llm/middleware"
	"github.com/corvusgate/gateway/llm/providers"
	"go.uber.org/zap"
)

// Config holds Cohere provider configuration.
type Config struct {
	APIKey       string
	BaseURL      string // defaults to https://api.cohere.com
	DefaultModel string
	Timeout      time.Duration
}

// Provider implements llm.Provider for the Cohere Chat and Embed APIs.
type Provider struct {
	cfg           Config
	client        *http.Client
	logger        *zap.Logger
	rewriterChain *middleware.RewriterChain
}

// New creates a new Cohere provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "command-r-plus"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger,
		rewriterChain: middleware.NewRewriterChain(
			middleware.NewEmptyToolsCleaner(),
		),
	}
}

func (p *Provider) Name() string                        { return "cohere" }
func (p *Provider) SupportsNativeFunctionCalling() bool  { return true }

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (p *Provider) resolveAPIKey(ctx context.Context) string {
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok {
		if strings.TrimSpace(c.APIKey) != "" {
			return strings.TrimSpace(c.APIKey)
		}
	}
	return p.cfg.APIKey
}

func (p *Provider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), path)
}

// HealthCheck verifies the Cohere API is reachable.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("cohere health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// ListModels is not wired to a dedicated Cohere endpoint; the gateway's
// model registry carries the configured catalogue instead.
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return nil, nil
}

// --- Chat wire types (Cohere v2 Chat API) ---

type chatMessage struct {
	Role    string `json:"role"` // system, user, assistant, tool
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatToolFunc `json:"function"`
}

type chatToolFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	P           float32       `json:"p,omitempty"`
	StopSeq     []string      `json:"stop_sequences,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatUsage struct {
	BilledUnits struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"billed_units"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Message struct {
		Role      string         `json:"role"`
		Content   []contentBlock `json:"content"`
		ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
	FinishReason string     `json:"finish_reason"`
	Usage        *chatUsage `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type streamEvent struct {
	Type  string `json:"type"` // message-start, content-delta, tool-call-start, tool-call-delta, message-end
	Delta *struct {
		Message struct {
			Content *struct {
				Text string `json:"text"`
			} `json:"content,omitempty"`
			ToolCalls *chatToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string     `json:"finish_reason,omitempty"`
		Usage        *chatUsage `json:"usage,omitempty"`
	} `json:"delta,omitempty"`
}

func toChatMessages(msgs []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := string(m.Role)
		if m.Role == llm.RoleTool {
			role = "tool"
		}
		out = append(out, chatMessage{Role: role, Content: m.Content})
	}
	return out
}

func toChatTools(tools []llm.ToolSchema) []chatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatToolFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func chooseModel(req *llm.ChatRequest, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return "command-r-plus"
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	rewrittenReq, err := p.rewriterChain.Execute(ctx, req)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrValidation, Message: fmt.Sprintf("request rewrite failed: %v", err),
			HTTPStatus: http.StatusBadRequest, Provider: p.Name(),
		}
	}
	req = rewrittenReq

	apiKey := p.resolveAPIKey(ctx)
	body := chatRequest{
		Model:     chooseModel(req, p.cfg.DefaultModel),
		Messages:  toChatMessages(req.Messages),
		MaxTokens: req.MaxTokens,
		Temperature: req.Temperature,
		P:         req.TopP,
		StopSeq:   req.Stop,
		Tools:     toChatTools(req.Tools),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v2/chat"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrProviderUnavailable, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var cResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrProviderError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	return toLLMChatResponse(cResp, p.Name(), body.Model), nil
}

func toLLMChatResponse(cr chatResponse, provider, model string) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	for _, block := range cr.Message.Content {
		if block.Type == "text" {
			msg.Content += block.Text
		}
	}
	for _, tc := range cr.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
		})
	}

	resp := &llm.ChatResponse{
		ID:       cr.ID,
		Provider: provider,
		Model:    model,
		Choices: []llm.ChatChoice{{
			Index: 0, FinishReason: cr.FinishReason, Message: msg,
		}},
	}
	if cr.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     cr.Usage.BilledUnits.InputTokens,
			CompletionTokens: cr.Usage.BilledUnits.OutputTokens,
			TotalTokens:      cr.Usage.BilledUnits.InputTokens + cr.Usage.BilledUnits.OutputTokens,
		}
	}
	return resp
}

func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	rewrittenReq, err := p.rewriterChain.Execute(ctx, req)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrValidation, Message: fmt.Sprintf("request rewrite failed: %v", err),
			HTTPStatus: http.StatusBadRequest, Provider: p.Name(),
		}
	}
	req = rewrittenReq

	apiKey := p.resolveAPIKey(ctx)
	model := chooseModel(req, p.cfg.DefaultModel)
	body := chatRequest{
		Model:     model,
		Messages:  toChatMessages(req.Messages),
		MaxTokens: req.MaxTokens,
		Temperature: req.Temperature,
		P:         req.TopP,
		StopSeq:   req.Stop,
		Tools:     toChatTools(req.Tools),
		Stream:    true,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v2/chat"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrProviderUnavailable, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)

		var id string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					select {
					case <-ctx.Done():
						return
					case ch <- llm.StreamChunk{Err: &llm.Error{
						Code: llm.ErrProviderError, Message: err.Error(),
						HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
					}}:
					}
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var evt streamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}

			switch evt.Type {
			case "message-start":
				// id not carried on this event in v2; left blank until content arrives.
			case "content-delta":
				if evt.Delta != nil && evt.Delta.Message.Content != nil {
					chunk := llm.StreamChunk{
						ID: id, Provider: p.Name(), Model: model,
						Delta: llm.Message{Role: llm.RoleAssistant, Content: evt.Delta.Message.Content.Text},
					}
					select {
					case <-ctx.Done():
						return
					case ch <- chunk:
					}
				}
			case "tool-call-delta":
				if evt.Delta != nil && evt.Delta.Message.ToolCalls != nil {
					tc := evt.Delta.Message.ToolCalls
					chunk := llm.StreamChunk{
						ID: id, Provider: p.Name(), Model: model,
						Delta: llm.Message{
							Role:      llm.RoleAssistant,
							ToolCalls: []llm.ToolCall{{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}},
						},
					}
					select {
					case <-ctx.Done():
						return
					case ch <- chunk:
					}
				}
			case "message-end":
				finish := ""
				var usage *llm.ChatUsage
				if evt.Delta != nil {
					finish = evt.Delta.FinishReason
					if evt.Delta.Usage != nil {
						usage = &llm.ChatUsage{
							PromptTokens:     evt.Delta.Usage.BilledUnits.InputTokens,
							CompletionTokens: evt.Delta.Usage.BilledUnits.OutputTokens,
							TotalTokens:      evt.Delta.Usage.BilledUnits.InputTokens + evt.Delta.Usage.BilledUnits.OutputTokens,
						}
					}
				}
				select {
				case <-ctx.Done():
				case ch <- llm.StreamChunk{ID: id, Provider: p.Name(), Model: model, FinishReason: finish, Usage: usage}:
				}
				return
			}
		}
	}()

	return ch, nil
}

// --- Embeddings (Cohere /v2/embed) ---

type embedRequest struct {
	Texts         []string `json:"texts"`
	Model         string   `json:"model"`
	InputType     string   `json:"input_type"`
	EmbeddingType []string `json:"embedding_types"`
}

type embedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
	Meta struct {
		BilledUnits struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// CreateEmbedding embeds a batch of inputs via Cohere's /v2/embed endpoint.
// Cohere requires an input_type hint; the gateway defaults to search_document
// since the canonical EmbeddingRequest carries no retrieval-role distinction.
func (p *Provider) CreateEmbedding(ctx context.Context, req *llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	apiKey := p.resolveAPIKey(ctx)
	model := req.Model
	if model == "" {
		model = "embed-v3.5"
	}

	body := embedRequest{
		Texts:         req.Input,
		Model:         model,
		InputType:     "search_document",
		EmbeddingType: []string{"float"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v2/embed"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrProviderUnavailable, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var eResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&eResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrProviderError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	return &llm.EmbeddingResponse{
		Model:    model,
		Provider: p.Name(),
		Data:     eResp.Embeddings.Float,
		Usage: llm.EmbeddingUsage{
			PromptTokens: eResp.Meta.BilledUnits.InputTokens,
			TotalTokens:  eResp.Meta.BilledUnits.InputTokens,
		},
	}, nil
}
