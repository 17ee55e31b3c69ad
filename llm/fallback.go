package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FallbackRule describes the ordered substitutes tried when requests for
// ModelID fail. When ErrorCodes is non-empty, a substitute is only
// attempted if the triggering failure's code is in the set; an empty set
// matches any error.
type FallbackRule struct {
	ModelID        string
	FallbackModels []string
	ErrorCodes     []ErrorCode
}

func (r FallbackRule) matches(code ErrorCode) bool {
	if len(r.ErrorCodes) == 0 {
		return true
	}
	for _, c := range r.ErrorCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ModelResolver resolves a canonical model id to a Provider and the
// provider's native model id. Implemented by the Smart Router; the
// Fallback Executor depends only on this narrow interface so that it
// doesn't need to import the router package (which itself imports llm).
type ModelResolver interface {
	Resolve(ctx context.Context, modelID string) (provider Provider, providerModelID string, err error)
}

// FallbackExecutorConfig configures retry/fallback limits.
type FallbackExecutorConfig struct {
	// MaxAttempts caps total attempts (primary + substitutes) regardless
	// of fallback chain length. Defaults to 4.
	MaxAttempts int
	// PerAttemptTimeout bounds each individual provider call so a slow
	// backend cannot starve the rest of the chain. Defaults to 30s.
	PerAttemptTimeout time.Duration
}

func (c FallbackExecutorConfig) withDefaults() FallbackExecutorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.PerAttemptTimeout <= 0 {
		c.PerAttemptTimeout = 30 * time.Second
	}
	return c
}

// FallbackExecutor orchestrates an ordered chain of models when a backend
// fails, filtering by error code, re-resolving every substitute through a
// ModelResolver, and enforcing a total-attempt cap and per-attempt timeout.
type FallbackExecutor struct {
	rules     map[string]FallbackRule
	cfg       FallbackExecutorConfig
	logger    *zap.Logger
	perf      *PerformanceMonitor
	alertSink AlertSink
}

// NewFallbackExecutor creates an executor. perf and alertSink may be nil.
func NewFallbackExecutor(rules map[string]FallbackRule, cfg FallbackExecutorConfig, perf *PerformanceMonitor, alertSink AlertSink, logger *zap.Logger) *FallbackExecutor {
	return &FallbackExecutor{
		rules:     rules,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		perf:      perf,
		alertSink: alertSink,
	}
}

// Execute runs req against its routed model, falling back through the
// configured chain on eligible failures. req.Model must already have been
// resolved by the router to its initial target; resolver re-resolves each
// substitute model id in turn.
func (e *FallbackExecutor) Execute(ctx context.Context, req *ChatRequest, resolver ModelResolver) (*ChatResponse, error) {
	attempt := 0
	currentModel := req.Model
	var lastErr error

	for {
		attempt++
		if attempt > e.cfg.MaxAttempts {
			return nil, &Error{
				Code:       ErrFallbackExhausted,
				Message:    fmt.Sprintf("exhausted fallback chain after %d attempts", attempt-1),
				HTTPStatus: 503,
				Cause:      lastErr,
			}
		}

		provider, providerModelID, resolveErr := resolver.Resolve(ctx, currentModel)
		if resolveErr != nil {
			if lastErr == nil {
				lastErr = resolveErr
			}
			next, code, ok := e.nextSubstitute(req.Model, currentModel, lastErr)
			if !ok {
				return nil, &Error{
					Code:       ErrFallbackExhausted,
					Message:    "no provider for model",
					HTTPStatus: 503,
					Cause:      resolveErr,
				}
			}
			e.logFallback(currentModel, next, code)
			currentModel = next
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.PerAttemptTimeout)
		attemptReq := *req
		attemptReq.Model = providerModelID
		start := time.Now()
		resp, err := provider.Completion(attemptCtx, &attemptReq)
		cancel()
		latency := time.Since(start)

		if e.perf != nil {
			e.perf.RecordResult(currentModel, err == nil, latency)
		}

		if err == nil {
			if resp.Provider == "" {
				resp.Provider = provider.Name()
			}
			return resp, nil
		}

		lastErr = err

		// Cancellation is never retried or fallen back from.
		if ctx.Err() != nil {
			return nil, err
		}

		next, ruleCode, ok := e.nextSubstitute(req.Model, currentModel, err)
		if !ok {
			return nil, err
		}
		e.logFallback(currentModel, next, ruleCode)
		currentModel = next
	}
}

func (e *FallbackExecutor) nextSubstitute(primaryModel, failedModel string, failureErr error) (string, ErrorCode, bool) {
	rule, ok := e.rules[primaryModel]
	if !ok || len(rule.FallbackModels) == 0 {
		return "", "", false
	}

	code := GetErrorCode(failureErr)
	if !rule.matches(code) {
		return "", "", false
	}

	// Walk the chain: find failedModel's position (primary = index -1) and
	// take the next entry.
	if failedModel == primaryModel {
		return rule.FallbackModels[0], code, true
	}
	for i, m := range rule.FallbackModels {
		if m == failedModel && i+1 < len(rule.FallbackModels) {
			return rule.FallbackModels[i+1], code, true
		}
	}
	return "", "", false
}

func (e *FallbackExecutor) logFallback(from, to string, code ErrorCode) {
	if e.logger == nil {
		return
	}
	e.logger.Warn("falling back to substitute model",
		zap.String("from_model", from),
		zap.String("to_model", to),
		zap.String("error_code", string(code)),
	)
}

// ExecuteStream runs a streaming request with the same fallback semantics,
// with one restriction: once any chunk has been forwarded to the caller,
// the stream is committed to that backend and subsequent failures surface
// as a terminal error chunk rather than triggering another fallback
// attempt.
func (e *FallbackExecutor) ExecuteStream(ctx context.Context, req *ChatRequest, resolver ModelResolver) (<-chan StreamChunk, error) {
	attempt := 0
	currentModel := req.Model
	var lastErr error

	for {
		attempt++
		if attempt > e.cfg.MaxAttempts {
			return nil, &Error{
				Code:       ErrFallbackExhausted,
				Message:    fmt.Sprintf("exhausted fallback chain after %d attempts", attempt-1),
				HTTPStatus: 503,
				Cause:      lastErr,
			}
		}

		provider, providerModelID, resolveErr := resolver.Resolve(ctx, currentModel)
		if resolveErr != nil {
			next, code, ok := e.nextSubstitute(req.Model, currentModel, resolveErr)
			if !ok {
				return nil, &Error{Code: ErrFallbackExhausted, Message: "no provider for model", HTTPStatus: 503, Cause: resolveErr}
			}
			e.logFallback(currentModel, next, code)
			currentModel = next
			lastErr = resolveErr
			continue
		}

		streamReq := *req
		streamReq.Model = providerModelID
		upstream, err := provider.Stream(ctx, &streamReq)
		if err != nil {
			lastErr = err
			next, code, ok := e.nextSubstitute(req.Model, currentModel, err)
			if !ok {
				return nil, err
			}
			e.logFallback(currentModel, next, code)
			currentModel = next
			continue
		}

		// Connection established; wrap to surface any mid-stream error as a
		// terminal chunk instead of retrying, per the commit-after-first-byte
		// rule.
		return e.commitStream(provider.Name(), upstream), nil
	}
}

func (e *FallbackExecutor) commitStream(providerName string, upstream <-chan StreamChunk) <-chan StreamChunk {
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for chunk := range upstream {
			if chunk.Provider == "" {
				chunk.Provider = providerName
			}
			out <- chunk
		}
	}()
	return out
}
