package providers

import (
	"errors"
	"testing"
)

func TestBedrockWrapError(t *testing.T) {
	p := &BedrockProvider{}

	tests := []struct {
		name     string
		err      error
		expected ErrorReason
	}{
		{"throttling", errors.New("operation error Bedrock Runtime: Converse, ThrottlingException: Too many requests"), ReasonRateLimit},
		{"service unavailable", errors.New("ServiceUnavailableException: try again later"), ReasonServerError},
		{"model error", errors.New("ModelErrorException: the model failed"), ReasonServerError},
		{"model timeout", errors.New("ModelTimeoutException: took too long"), ReasonTimeout},
		{"access denied", errors.New("AccessDeniedException: not authorized to invoke"), ReasonAuth},
		{"expired token", errors.New("ExpiredTokenException: security token expired"), ReasonAuth},
		{"not found", errors.New("ResourceNotFoundException: model does not exist"), ReasonModelUnavailable},
		{"validation", errors.New("ValidationException: malformed input"), ReasonInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := p.wrapError(tt.err, "anthropic.claude-3-haiku-20240307-v1:0")
			providerErr, ok := GetProviderError(wrapped)
			if !ok {
				t.Fatalf("wrapError returned %T, want *ProviderError", wrapped)
			}
			if providerErr.Reason != tt.expected {
				t.Errorf("Reason = %v, want %v", providerErr.Reason, tt.expected)
			}
			if providerErr.Provider != "bedrock" {
				t.Errorf("Provider = %q, want bedrock", providerErr.Provider)
			}
		})
	}

	if p.wrapError(nil, "m") != nil {
		t.Error("wrapError(nil) should be nil")
	}

	already := NewProviderError("bedrock", "m", errors.New("x"))
	if got := p.wrapError(already, "m"); got != already {
		t.Error("wrapError should pass existing ProviderErrors through")
	}
}
