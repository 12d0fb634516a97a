package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/crucible/pkg/models"
	"google.golang.org/genai"
)

// GoogleConfig holds configuration for the Google Gemini provider.
type GoogleConfig struct {
	// APIKey is the Google AI API key. Empty means the provider is
	// registered but unavailable.
	APIKey string
}

// GoogleProvider implements Provider for Google's Gemini models using the
// Google Gen AI SDK.
//
// GoogleProvider is safe for concurrent use.
type GoogleProvider struct {
	client *genai.Client
	apiKey string
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a Google provider. An empty API key skips client
// construction and leaves the provider unavailable; the SDK refuses to build
// a client without credentials.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return &GoogleProvider{}, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &GoogleProvider{
		client: client,
		apiKey: cfg.APIKey,
	}, nil
}

// Name returns "google".
func (p *GoogleProvider) Name() string {
	return "google"
}

// Available reports whether an API key is configured.
func (p *GoogleProvider) Available() bool {
	return p.apiKey != "" && p.client != nil
}

// Models returns the Gemini models this provider knows about.
func (p *GoogleProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1048576},
		{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", ContextSize: 1048576},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextSize: 2097152},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextSize: 1048576},
	}
}

// Complete sends a blocking GenerateContent request and returns the full
// response with token usage and latency.
func (p *GoogleProvider) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	if !p.Available() {
		return nil, &ProviderError{
			Reason:   ReasonAuth,
			Provider: "google",
			Model:    req.Model,
			Message:  "API key not configured",
		}
	}

	system, rest := splitSystem(req.Messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, NewProviderError("google", req.Model, err)
	}

	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		// Only the first candidate counts; the API returns one by default.
		break
	}

	result := &models.CompletionResult{
		Text:      text.String(),
		LatencyMs: time.Since(start).Milliseconds(),
		Model:     req.Model,
		Provider:  "google",
	}
	if resp.UsageMetadata != nil {
		result.Usage = models.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}
