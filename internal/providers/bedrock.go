package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/haasonsaas/crucible/pkg/models"
)

// BedrockConfig holds configuration for the Bedrock provider.
type BedrockConfig struct {
	// Region is the AWS region (default: us-east-1)
	Region string

	// AccessKeyID for explicit credentials (optional, uses default chain if empty)
	AccessKeyID string

	// SecretAccessKey for explicit credentials (optional)
	SecretAccessKey string

	// SessionToken for temporary credentials (optional)
	SessionToken string
}

// BedrockProvider implements Provider for AWS Bedrock foundation models via
// the Converse API. Authentication goes through AWS credentials (environment,
// IAM role, or explicit keys).
//
// BedrockProvider is safe for concurrent use.
type BedrockProvider struct {
	client *bedrockruntime.Client
	region string
}

var _ Provider = (*BedrockProvider)(nil)

// NewBedrockProvider creates a new AWS Bedrock provider instance.
func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	// The harness retry layer owns retries; the SDK must not add its own.
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		region: cfg.Region,
	}, nil
}

// Name returns the provider identifier.
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// Available reports whether the AWS client was initialized. Whether the
// account can actually invoke a given model is only known at request time.
func (p *BedrockProvider) Available() bool {
	return p.client != nil
}

// Models returns commonly available Bedrock models. Actual availability
// depends on the AWS account's model access; see the bedrock discovery
// package for live listing.
func (p *BedrockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet (Bedrock)", ContextSize: 200000},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextSize: 200000},
		{ID: "amazon.titan-text-express-v1", Name: "Titan Text Express", ContextSize: 8192},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextSize: 8192},
		{ID: "mistral.mistral-7b-instruct-v0:2", Name: "Mistral 7B (Bedrock)", ContextSize: 32768},
		{ID: "cohere.command-r-plus-v1:0", Name: "Command R+ (Bedrock)", ContextSize: 128000},
	}
}

// Complete sends a blocking Converse request to Bedrock.
func (p *BedrockProvider) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	if p.client == nil {
		return nil, NewProviderError("bedrock", req.Model, errors.New("Bedrock client not initialized"))
	}

	system, rest := splitSystem(req.Messages)

	messages := make([]types.Message, 0, len(rest))
	for _, msg := range rest {
		role := types.ConversationRoleUser
		if msg.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.Model),
		Messages: messages,
	}
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}

	inference := &types.InferenceConfiguration{}
	configured := false
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(req.MaxTokens))
		configured = true
	}
	if req.Temperature != nil {
		inference.Temperature = aws.Float32(float32(*req.Temperature))
		configured = true
	}
	if configured {
		input.InferenceConfig = inference
	}

	start := time.Now()
	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, p.wrapError(err, req.Model)
	}

	var text strings.Builder
	if outMsg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			if textBlock, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(textBlock.Value)
			}
		}
	}

	result := &models.CompletionResult{
		Text:      text.String(),
		LatencyMs: time.Since(start).Milliseconds(),
		Model:     req.Model,
		Provider:  "bedrock",
	}
	if out.Usage != nil {
		result.Usage = models.Usage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return result, nil
}

func (p *BedrockProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	providerErr := NewProviderError("bedrock", model, err)

	// AWS exception names carry the classification.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ThrottlingException"),
		strings.Contains(msg, "TooManyRequestsException"):
		providerErr.Reason = ReasonRateLimit
	case strings.Contains(msg, "ServiceUnavailableException"),
		strings.Contains(msg, "InternalServerException"),
		strings.Contains(msg, "ModelErrorException"):
		providerErr.Reason = ReasonServerError
	case strings.Contains(msg, "ModelTimeoutException"):
		providerErr.Reason = ReasonTimeout
	case strings.Contains(msg, "AccessDeniedException"),
		strings.Contains(msg, "UnrecognizedClientException"),
		strings.Contains(msg, "ExpiredTokenException"):
		providerErr.Reason = ReasonAuth
	case strings.Contains(msg, "ResourceNotFoundException"),
		strings.Contains(msg, "ModelNotReadyException"):
		providerErr.Reason = ReasonModelUnavailable
	case strings.Contains(msg, "ValidationException"):
		providerErr.Reason = ReasonInvalidRequest
	}
	return providerErr
}
