package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/haasonsaas/crucible/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// defaultEmbeddingModel is used for semantic similarity scoring.
const defaultEmbeddingModel = "text-embedding-3-small"

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Empty means the provider is
	// registered but unavailable.
	APIKey string

	// BaseURL overrides the API endpoint (optional). Any OpenAI-compatible
	// endpoint works: OpenRouter, Azure gateways, local inference servers.
	BaseURL string

	// EmbeddingModel selects the model for EmbedBatch
	// (default: text-embedding-3-small).
	EmbeddingModel string
}

// OpenAIProvider implements Provider for OpenAI's GPT models and any
// OpenAI-compatible endpoint. It also implements Embedder, which the semantic
// similarity evaluator uses for response scoring.
//
// OpenAIProvider is safe for concurrent use.
type OpenAIProvider struct {
	client         *openai.Client
	apiKey         string
	embeddingModel string
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Embedder = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider creates an OpenAI provider. An empty API key is allowed so
// the registry can report the provider as unavailable instead of failing at
// startup.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientCfg),
		apiKey:         cfg.APIKey,
		embeddingModel: embeddingModel,
	}
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Available reports whether an API key is configured.
func (p *OpenAIProvider) Available() bool {
	return p.apiKey != ""
}

// Models returns the GPT models this provider knows about.
func (p *OpenAIProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000},
		{ID: "gpt-4", Name: "GPT-4", ContextSize: 8192},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385},
	}
}

// Complete sends a blocking chat completion request and returns the full
// response with token usage and latency.
func (p *OpenAIProvider) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	if p.apiKey == "" {
		return nil, &ProviderError{
			Reason:   ReasonAuth,
			Provider: "openai",
			Model:    req.Model,
			Message:  "API key not configured",
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		if temp == 0 {
			// The SDK omits zero temperatures from the wire request, so
			// send the smallest nonzero value instead.
			temp = math.SmallestNonzeroFloat32
		}
		chatReq.Temperature = temp
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.wrapError(err, req.Model)
	}

	if len(resp.Choices) == 0 {
		return nil, NewProviderError("openai", req.Model, errors.New("response contained no choices"))
	}

	return &models.CompletionResult{
		Text: resp.Choices[0].Message.Content,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
		Model:     req.Model,
		Provider:  "openai",
	}, nil
}

// EmbedBatch generates embeddings for multiple texts. Results are returned in
// input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if p.apiKey == "" {
		return nil, &ProviderError{
			Reason:   ReasonAuth,
			Provider: "openai",
			Message:  "API key not configured",
		}
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, p.wrapError(err, p.embeddingModel)
	}

	results := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		results[data.Index] = data.Embedding
	}
	return results, nil
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := &ProviderError{
			Provider: "openai",
			Model:    model,
			Cause:    err,
			Reason:   ReasonUnknown,
			Message:  apiErr.Message,
		}
		if apiErr.HTTPStatusCode != 0 {
			providerErr = providerErr.WithStatus(apiErr.HTTPStatusCode)
		}
		if code, ok := apiErr.Code.(string); ok && code != "" {
			providerErr = providerErr.WithCode(code)
		} else if apiErr.Type != "" {
			providerErr = providerErr.WithCode(apiErr.Type)
		}
		return providerErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		providerErr := NewProviderError("openai", model, err)
		if reqErr.HTTPStatusCode != 0 {
			providerErr = providerErr.WithStatus(reqErr.HTTPStatusCode)
		}
		providerErr.Message = fmt.Sprintf("request failed: %v", reqErr.Err)
		return providerErr
	}

	return NewProviderError("openai", model, err)
}
