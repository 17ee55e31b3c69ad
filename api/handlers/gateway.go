package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/corvusgate/gateway/api"
	"github.com/corvusgate/gateway/llm"
	"github.com/corvusgate/gateway/llm/router"
	"github.com/corvusgate/gateway/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🌐 网关接口 Handler — canonical completions/embeddings/models surface
// =============================================================================

// GatewayHandler serves the canonical, provider-agnostic completion,
// embedding, and model-listing endpoints: every request is routed through
// the Smart Router and executed through the Fallback Executor, rather than
// being pinned to one fixed Provider like ChatHandler.
type GatewayHandler struct {
	smartRouter *router.SmartRouter
	embedRouter *router.EmbeddingRouter
	executor    *llm.FallbackExecutor
	providers   *llm.ProviderRegistry
	models      *llm.ModelRegistry
	logger      *zap.Logger
}

// NewGatewayHandler wires a handler over the already-assembled routing and
// execution components.
func NewGatewayHandler(smartRouter *router.SmartRouter, embedRouter *router.EmbeddingRouter, executor *llm.FallbackExecutor, providers *llm.ProviderRegistry, models *llm.ModelRegistry, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{
		smartRouter: smartRouter,
		embedRouter: embedRouter,
		executor:    executor,
		providers:   providers,
		models:      models,
		logger:      logger,
	}
}

// HandleCompletion handles POST /v1/completions: route, execute through the
// fallback chain, and respond with the canonical completion shape.
// @Summary Create a completion
// @Description Routes a chat completion request across the configured providers
// @Tags gateway
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "completion request"
// @Success 200 {object} api.ChatResponse
// @Failure 400 {object} Response
// @Failure 503 {object} Response
// @Router /v1/completions [post]
func (h *GatewayHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateGatewayChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	llmReq := convertGatewayChatRequest(&req)

	ctx := r.Context()
	if llmReq.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, llmReq.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := h.executor.Execute(ctx, llmReq, h.smartRouter)
	duration := time.Since(start)
	if err != nil {
		h.handleGatewayError(w, err)
		return
	}

	h.logger.Info("gateway completion",
		zap.String("model", req.Model),
		zap.String("resolved_provider", resp.Provider),
		zap.Duration("duration", duration),
	)

	WriteSuccess(w, convertGatewayChatResponse(resp))
}

// HandleStream handles POST /v1/completions/stream over SSE, with the same
// routing and fallback semantics as HandleCompletion.
// @Summary Stream a completion
// @Tags gateway
// @Accept json
// @Produce text/event-stream
// @Param request body api.ChatRequest true "completion request"
// @Success 200 {string} string "SSE stream"
// @Router /v1/completions/stream [post]
func (h *GatewayHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateGatewayChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	llmReq := convertGatewayChatRequest(&req)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	stream, err := h.executor.ExecuteStream(r.Context(), llmReq, h.smartRouter)
	if err != nil {
		h.handleGatewayError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewError(types.ErrInternal, "streaming not supported"), h.logger)
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			h.logger.Error("gateway stream error", zap.Error(chunk.Err))
			errPayload, _ := json.Marshal(map[string]string{"error": chunk.Err.Message})
			w.Write([]byte("event: error\ndata: "))
			w.Write(errPayload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
			return
		}

		apiChunk := convertGatewayStreamChunk(&chunk)
		w.Write([]byte("data: "))
		if err := json.NewEncoder(w).Encode(apiChunk); err != nil {
			h.logger.Error("failed to write gateway stream chunk", zap.Error(err))
			return
		}
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// HandleEmbedding handles POST /v1/embeddings.
// @Summary Create embeddings
// @Tags gateway
// @Accept json
// @Produce json
// @Param request body api.EmbeddingRequest true "embedding request"
// @Success 200 {object} api.EmbeddingResponse
// @Failure 400 {object} Response
// @Router /v1/embeddings [post]
func (h *GatewayHandler) HandleEmbedding(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.EmbeddingRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Model == "" || len(req.Input) == 0 {
		WriteError(w, types.NewError(types.ErrValidation, "model and input are required"), h.logger)
		return
	}

	llmReq := &llm.EmbeddingRequest{Model: req.Model, Input: req.Input, User: req.User}

	result := h.embedRouter.Route(r.Context(), llmReq)
	if !result.Success {
		WriteError(w, types.NewError(types.ErrCapabilityNotSupported, result.ErrorMessage), h.logger)
		return
	}

	provider, ok := h.providers.Get(result.Provider)
	if !ok {
		WriteError(w, types.NewError(types.ErrProviderNotFound, "provider "+result.Provider+" not registered"), h.logger)
		return
	}

	providerReq := *llmReq
	providerReq.Model = result.ProviderModelID
	resp, err := provider.CreateEmbedding(r.Context(), &providerReq)
	if err != nil {
		h.handleGatewayError(w, err)
		return
	}
	if resp.Provider == "" {
		resp.Provider = provider.Name()
	}

	WriteSuccess(w, &api.EmbeddingResponse{
		Model:    resp.Model,
		Provider: resp.Provider,
		Data:     resp.Data,
		Usage:    api.EmbeddingUsage{PromptTokens: resp.Usage.PromptTokens, TotalTokens: resp.Usage.TotalTokens},
	})
}

// HandleListModels handles GET /v1/models, listing every model known to
// the registry regardless of which source (hard-coded, dynamic,
// configured) contributed it.
// @Summary List models
// @Tags gateway
// @Produce json
// @Success 200 {object} api.GatewayModelListResponse
// @Router /v1/models [get]
func (h *GatewayHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	entries := h.models.List()
	out := make([]api.GatewayModel, len(entries))
	for i, m := range entries {
		out[i] = api.GatewayModel{
			ID:                 m.ID,
			Provider:           m.Provider,
			DisplayName:        m.DisplayName,
			ContextWindow:      m.ContextWindow,
			SupportsCompletion: m.SupportsCompletion,
			SupportsEmbedding:  m.SupportsEmbedding,
			SupportsStreaming:  m.SupportsStreaming,
			SupportsTools:      m.SupportsTools,
			SupportsVision:     m.SupportsVision,
			InputCostPer1K:     m.InputCostPer1K,
			OutputCostPer1K:    m.OutputCostPer1K,
		}
	}
	WriteSuccess(w, &api.GatewayModelListResponse{Models: out})
}

// =============================================================================
// 🔧 helpers
// =============================================================================

// Note: api.ToolCall is a type alias for types.ToolCall, so ToolCalls
// slices pass through the llm <-> api boundary with no conversion.

func validateGatewayChatRequest(req *api.ChatRequest) *types.Error {
	if req.Model == "" {
		return types.NewError(types.ErrValidation, "model is required")
	}
	if len(req.Messages) == 0 {
		return types.NewError(types.ErrValidation, "messages cannot be empty")
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return types.NewError(types.ErrValidation, "temperature must be between 0 and 2")
	}
	if req.TopP < 0 || req.TopP > 1 {
		return types.NewError(types.ErrValidation, "top_p must be between 0 and 1")
	}
	return nil
}

func convertGatewayChatRequest(req *api.ChatRequest) *llm.ChatRequest {
	timeout := 30 * time.Second
	if req.Timeout != "" {
		if d, err := time.ParseDuration(req.Timeout); err == nil {
			timeout = d
		}
	}

	messages := make([]llm.Message, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = llm.Message{
			Role:       llm.Role(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
	}

	tools := make([]llm.ToolSchema, len(req.Tools))
	for i, tool := range req.Tools {
		tools[i] = llm.ToolSchema{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters}
	}

	return &llm.ChatRequest{
		TraceID:     req.TraceID,
		TenantID:    req.TenantID,
		UserID:      req.UserID,
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Tools:       tools,
		ToolChoice:  req.ToolChoice,
		Timeout:     timeout,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
	}
}

func convertGatewayChatResponse(resp *llm.ChatResponse) *api.ChatResponse {
	choices := make([]api.ChatChoice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = api.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message: api.Message{
				Role:       string(c.Message.Role),
				Content:    c.Message.Content,
				Name:       c.Message.Name,
				ToolCalls:  c.Message.ToolCalls,
				ToolCallID: c.Message.ToolCallID,
			},
		}
	}
	return &api.ChatResponse{
		ID:        resp.ID,
		Provider:  resp.Provider,
		Model:     resp.Model,
		Choices:   choices,
		Usage:     api.ChatUsage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens, TotalTokens: resp.Usage.TotalTokens},
		CreatedAt: resp.CreatedAt,
	}
}

func convertGatewayStreamChunk(chunk *llm.StreamChunk) *api.StreamChunk {
	var usage *api.ChatUsage
	if chunk.Usage != nil {
		usage = &api.ChatUsage{PromptTokens: chunk.Usage.PromptTokens, CompletionTokens: chunk.Usage.CompletionTokens, TotalTokens: chunk.Usage.TotalTokens}
	}
	return &api.StreamChunk{
		ID:       chunk.ID,
		Provider: chunk.Provider,
		Model:    chunk.Model,
		Index:    chunk.Index,
		Delta: api.Message{
			Role:       string(chunk.Delta.Role),
			Content:    chunk.Delta.Content,
			Name:       chunk.Delta.Name,
			ToolCalls:  chunk.Delta.ToolCalls,
			ToolCallID: chunk.Delta.ToolCallID,
		},
		FinishReason: chunk.FinishReason,
		Usage:        usage,
	}
}

func (h *GatewayHandler) handleGatewayError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternal, "gateway error").WithCause(err), h.logger)
}
