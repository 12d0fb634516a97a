package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIProvider(serverURL string) *OpenAIProvider {
	return NewOpenAIProvider(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: serverURL + "/v1",
	})
}

func TestOpenAIComplete(t *testing.T) {
	var rawBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&rawBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  "gpt-4o",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "pong"}},
			},
			Usage: openai.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
		})
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)
	temp := 0.0
	result, err := provider.Complete(context.Background(), &models.CompletionRequest{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "reply with pong"},
			{Role: models.RoleUser, Content: "ping"},
		},
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if result.Text != "pong" {
		t.Errorf("Text = %q, want %q", result.Text, "pong")
	}
	if result.Usage.TotalTokens != 8 {
		t.Errorf("TotalTokens = %d, want 8", result.Usage.TotalTokens)
	}
	if result.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", result.Provider)
	}

	// System messages stay inline for OpenAI-style APIs.
	msgs, ok := rawBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("wire messages = %v, want 2 entries", rawBody["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first wire role = %v, want system", first["role"])
	}

	// Temperature zero must survive the SDK's omitempty as a tiny nonzero.
	wireTemp, ok := rawBody["temperature"].(float64)
	if !ok {
		t.Fatal("temperature missing from wire request")
	}
	if wireTemp <= 0 || wireTemp > 1e-30 {
		t.Errorf("wire temperature = %g, want tiny positive value", wireTemp)
	}
}

func TestOpenAICompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)
	_, err := provider.Complete(context.Background(), &models.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should error on 401")
	}

	providerErr, ok := GetProviderError(err)
	if !ok {
		t.Fatalf("error should be a ProviderError, got %T", err)
	}
	if providerErr.Reason != ReasonAuth {
		t.Errorf("Reason = %v, want %v", providerErr.Reason, ReasonAuth)
	}
	if providerErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", providerErr.Status)
	}
	if IsRetryable(err) {
		t.Error("auth errors must not be retryable")
	}
}

func TestOpenAICompleteWithoutKey(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{})
	if provider.Available() {
		t.Error("Available() should be false without a key")
	}

	_, err := provider.Complete(context.Background(), &models.CompletionRequest{
		Model:    "gpt-4o",
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

func TestOpenAIEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s, want /v1/embeddings", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		// Out-of-order data exercises the index-based reordering.
		w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.4, 0.5]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}
			],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)
	embeddings, err := provider.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("embeddings = %d, want 2", len(embeddings))
	}
	if embeddings[0][0] != 0.1 || embeddings[1][0] != 0.4 {
		t.Errorf("embeddings not reordered by index: %v", embeddings)
	}

	empty, err := provider.EmbedBatch(context.Background(), nil)
	if err != nil || empty != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v, want nil, nil", empty, err)
	}
}
