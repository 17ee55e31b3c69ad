package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogAlertSink_DoesNotPanic(t *testing.T) {
	sink := NewLogAlertSink(zap.NewNop())
	assert.NotPanics(t, func() {
		sink.Send(AlertKindModelPerformance, AlertPayload{Model: "gpt-4", Message: "degraded"})
	})
}

func TestNopAlertSink_Discards(t *testing.T) {
	var sink NopAlertSink
	assert.NotPanics(t, func() {
		sink.Send(AlertKindTokenUsage, AlertPayload{Message: "ignored"})
	})
}

func TestWebhookAlertSink_DeliversAsync(t *testing.T) {
	var received atomic.Bool
	var gotKind string
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind    string       `json:"kind"`
			Payload AlertPayload `json:"payload"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotKind = body.Kind
		received.Store(true)
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	sink := NewWebhookAlertSink(zap.NewNop(), srv.Client(), srv.URL, time.Second)
	sink.Send(AlertKindProviderUnavailable, AlertPayload{Provider: "openai", Message: "down"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received the alert")
	}

	assert.True(t, received.Load())
	assert.Equal(t, string(AlertKindProviderUnavailable), gotKind)
}

func TestWebhookAlertSink_DefaultsTimeoutAndClient(t *testing.T) {
	sink := NewWebhookAlertSink(zap.NewNop(), nil, "http://example.invalid", 0)
	assert.Equal(t, 5*time.Second, sink.timeout)
	assert.NotNil(t, sink.client)
}
