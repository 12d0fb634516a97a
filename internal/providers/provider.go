// Package providers implements LLM provider integrations for the crucible
// evaluation harness.
//
// Every provider exposes the same blocking Complete call: one request in, one
// CompletionResult out. Streaming is deliberately absent since evaluators need
// the full response text before they can score anything.
package providers

import (
	"context"

	"github.com/haasonsaas/crucible/pkg/models"
)

// Provider is the interface every LLM backend implements.
//
// Complete must return either a non-nil result or an error, never both nil.
// Errors should be wrapped in *ProviderError so the retry layer can classify
// them.
type Provider interface {
	// Name returns the stable lowercase provider identifier
	// (e.g., "anthropic", "openai").
	Name() string

	// Complete sends a completion request and blocks until the full
	// response is available.
	Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error)

	// Models returns the models this provider knows about. The list is
	// informational; Complete accepts any model ID the backend recognizes.
	Models() []ModelInfo

	// Available reports whether the provider has the credentials or
	// endpoint configuration it needs. It must not perform network I/O.
	Available() bool
}

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	// ID is the model identifier used in API requests.
	ID string

	// Name is the human-readable model name.
	Name string

	// ContextSize is the context window in tokens.
	ContextSize int
}

// Embedder is implemented by providers that can produce text embeddings.
// The semantic similarity evaluator uses it when available.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EstimateTokens approximates the token count of a request using ~4 characters
// per token. The estimate feeds rate limit admission; actual usage reported by
// the provider replaces it after the call completes.
func EstimateTokens(req *models.CompletionRequest) int {
	if req == nil {
		return 0
	}
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
		total += len(msg.Role) / 4
	}
	if total < 1 {
		total = 1
	}
	return total
}
