package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AlertKind identifies the category of an alert raised by the Health
// Monitor or Performance Monitor.
type AlertKind string

const (
	AlertKindProviderUnavailable AlertKind = "provider_unavailable"
	AlertKindModelPerformance    AlertKind = "model_performance"
	AlertKindTokenUsage          AlertKind = "token_usage"
)

// AlertPayload carries the details of one alert. Fields not relevant to a
// given AlertKind are left zero.
type AlertPayload struct {
	Provider    string        `json:"provider,omitempty"`
	Model       string        `json:"model,omitempty"`
	SuccessRate float64       `json:"success_rate,omitempty"`
	AvgLatency  time.Duration `json:"avg_latency,omitempty"`
	Message     string        `json:"message"`
}

// AlertSink delivers alerts raised by the gateway's monitors. Sends are
// best-effort: a sink must not block the caller beyond a short timeout and
// must not propagate delivery failures as request errors.
type AlertSink interface {
	Send(kind AlertKind, payload AlertPayload)
}

// LogAlertSink logs every alert structurally via zap. It never fails and
// never blocks.
type LogAlertSink struct {
	logger *zap.Logger
}

// NewLogAlertSink creates a sink that only logs.
func NewLogAlertSink(logger *zap.Logger) *LogAlertSink {
	return &LogAlertSink{logger: logger}
}

func (s *LogAlertSink) Send(kind AlertKind, payload AlertPayload) {
	s.logger.Warn("gateway alert",
		zap.String("kind", string(kind)),
		zap.String("provider", payload.Provider),
		zap.String("model", payload.Model),
		zap.Float64("success_rate", payload.SuccessRate),
		zap.Duration("avg_latency", payload.AvgLatency),
		zap.String("message", payload.Message),
	)
}

// WebhookAlertSink logs every alert and additionally POSTs it as JSON to a
// configured webhook URL, on its own goroutine with a bounded timeout, so a
// slow or unreachable webhook never delays the caller.
type WebhookAlertSink struct {
	logger  *zap.Logger
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewWebhookAlertSink creates a sink that forwards alerts to url in
// addition to logging them. timeout bounds the webhook POST; it defaults
// to 5s when zero or negative.
func NewWebhookAlertSink(logger *zap.Logger, client *http.Client, url string, timeout time.Duration) *WebhookAlertSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookAlertSink{logger: logger, client: client, url: url, timeout: timeout}
}

func (s *WebhookAlertSink) Send(kind AlertKind, payload AlertPayload) {
	s.logger.Warn("gateway alert",
		zap.String("kind", string(kind)),
		zap.String("provider", payload.Provider),
		zap.String("model", payload.Model),
		zap.Float64("success_rate", payload.SuccessRate),
		zap.Duration("avg_latency", payload.AvgLatency),
		zap.String("message", payload.Message),
	)

	go s.deliver(kind, payload)
}

func (s *WebhookAlertSink) deliver(kind AlertKind, payload AlertPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	body, err := json.Marshal(struct {
		Kind    AlertKind    `json:"kind"`
		Payload AlertPayload `json:"payload"`
	}{Kind: kind, Payload: payload})
	if err != nil {
		s.logger.Warn("alert webhook marshal failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("alert webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("alert webhook delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("alert webhook returned non-2xx", zap.Int("status", resp.StatusCode))
	}
}

// NopAlertSink discards every alert. Useful in tests or when alerting is
// disabled via configuration.
type NopAlertSink struct{}

func (NopAlertSink) Send(AlertKind, AlertPayload) {}
