package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
)

func TestAnthropicComplete(t *testing.T) {
	var rawBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/messages") {
			t.Errorf("path = %s, want a /messages endpoint", r.URL.Path)
		}
		if r.Header.Get("x-api-key") == "" {
			t.Error("missing x-api-key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&rawBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_0123",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-20241022",
			"content": [{"type": "text", "text": "Paris"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	if !provider.Available() {
		t.Fatal("Available() should be true with a key")
	}

	result, err := provider.Complete(context.Background(), &models.CompletionRequest{
		Provider: "anthropic",
		Model:    "claude-3-5-haiku-20241022",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "answer with the city only"},
			{Role: models.RoleUser, Content: "capital of France?"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if result.Text != "Paris" {
		t.Errorf("Text = %q, want %q", result.Text, "Paris")
	}
	if result.Usage.PromptTokens != 12 || result.Usage.CompletionTokens != 3 || result.Usage.TotalTokens != 15 {
		t.Errorf("Usage = %+v, want 12/3/15", result.Usage)
	}

	// System prompt moves out of the messages array for Anthropic.
	if _, ok := rawBody["system"]; !ok {
		t.Error("system prompt missing from wire request")
	}
	msgs, ok := rawBody["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("wire messages = %v, want 1 entry", rawBody["messages"])
	}
	// max_tokens is mandatory for the Messages API.
	if rawBody["max_tokens"] == nil {
		t.Error("max_tokens missing from wire request")
	}
}

func TestAnthropicCompleteRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("request-id", "req_abc")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Number of request tokens has exceeded your per-minute rate limit"},"request_id":"req_abc"}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	_, err := provider.Complete(context.Background(), &models.CompletionRequest{
		Model:    "claude-3-5-haiku-20241022",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should error on 429")
	}

	providerErr, ok := GetProviderError(err)
	if !ok {
		t.Fatalf("error should be a ProviderError, got %T", err)
	}
	if providerErr.Reason != ReasonRateLimit {
		t.Errorf("Reason = %v, want %v", providerErr.Reason, ReasonRateLimit)
	}
	if providerErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", providerErr.Status)
	}
	if !IsRetryable(err) {
		t.Error("rate limit errors must be retryable")
	}
}

func TestAnthropicCompleteWithoutKey(t *testing.T) {
	provider := NewAnthropicProvider(AnthropicConfig{})
	if provider.Available() {
		t.Error("Available() should be false without a key")
	}

	_, err := provider.Complete(context.Background(), &models.CompletionRequest{
		Model:    "claude-3-5-haiku-20241022",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() without a key should error")
	}
	providerErr, ok := GetProviderError(err)
	if !ok || providerErr.Reason != ReasonAuth {
		t.Errorf("want auth ProviderError, got %v", err)
	}
}
