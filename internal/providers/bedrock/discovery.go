// Package bedrock lists the foundation models an AWS account can invoke.
// The run command uses it to surface access problems before an evaluation
// spends tokens on a model the account cannot reach.
package bedrock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"
)

// ModelDefinition describes one Bedrock foundation model.
type ModelDefinition struct {
	ID            string   // Model identifier (e.g., "anthropic.claude-3-5-sonnet-20241022-v2:0")
	Name          string   // Human-readable model name
	Provider      string   // Upstream vendor (e.g., "Anthropic", "Meta")
	Input         []string // Supported input modalities: "text", "image"
	Output        []string // Supported output modalities
	ContextWindow int      // Context window size in tokens
	Streaming     bool     // Whether the model supports streaming responses
	Status        string   // Lifecycle status (e.g., "ACTIVE")
}

// DiscoveryConfig holds configuration for model discovery.
type DiscoveryConfig struct {
	// Region is the AWS region to query (default: us-east-1)
	Region string

	// RefreshInterval is how long to cache discovered models (default: 1 hour)
	RefreshInterval time.Duration

	// ProviderFilter limits discovery to specific vendors (e.g., ["anthropic"]).
	// Empty means all vendors.
	ProviderFilter []string

	// DefaultContextWindow is used when a model's family is unknown
	DefaultContextWindow int

	// AccessKeyID for explicit AWS credentials (optional)
	AccessKeyID string

	// SecretAccessKey for explicit AWS credentials (optional)
	SecretAccessKey string

	// SessionToken for temporary credentials (optional)
	SessionToken string
}

// discoveryCache holds cached results with thread-safe access.
type discoveryCache struct {
	mu        sync.RWMutex
	models    []ModelDefinition
	expiresAt time.Time
	inFlight  chan struct{} // request deduplication
}

var globalCache = &discoveryCache{}

// ListModelsAPI is the slice of the Bedrock control plane the discovery uses.
// It exists so tests can substitute a fake client.
type ListModelsAPI interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

var clientFactory func(cfg aws.Config) ListModelsAPI

func init() {
	clientFactory = func(cfg aws.Config) ListModelsAPI {
		return bedrock.NewFromConfig(cfg)
	}
}

// DiscoverModels fetches available Bedrock models with caching and request
// deduplication. Concurrent calls during a refresh wait for the in-flight
// request instead of issuing duplicates.
func DiscoverModels(ctx context.Context, cfg *DiscoveryConfig) ([]ModelDefinition, error) {
	if cfg == nil {
		cfg = &DiscoveryConfig{}
	}
	applyDefaults(cfg)

	globalCache.mu.RLock()
	if time.Now().Before(globalCache.expiresAt) && len(globalCache.models) > 0 {
		models := filterByProvider(globalCache.models, cfg.ProviderFilter)
		globalCache.mu.RUnlock()
		return models, nil
	}
	globalCache.mu.RUnlock()

	globalCache.mu.Lock()

	// Double-check after acquiring the write lock
	if time.Now().Before(globalCache.expiresAt) && len(globalCache.models) > 0 {
		models := filterByProvider(globalCache.models, cfg.ProviderFilter)
		globalCache.mu.Unlock()
		return models, nil
	}

	if globalCache.inFlight != nil {
		inFlight := globalCache.inFlight
		globalCache.mu.Unlock()

		select {
		case <-inFlight:
			globalCache.mu.RLock()
			models := filterByProvider(globalCache.models, cfg.ProviderFilter)
			globalCache.mu.RUnlock()
			return models, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	globalCache.inFlight = make(chan struct{})
	globalCache.mu.Unlock()

	models, err := fetchModels(ctx, cfg)

	globalCache.mu.Lock()
	if err == nil {
		globalCache.models = models
		globalCache.expiresAt = time.Now().Add(cfg.RefreshInterval)
	}
	close(globalCache.inFlight)
	globalCache.inFlight = nil
	globalCache.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return filterByProvider(models, cfg.ProviderFilter), nil
}

// ClearCache clears the discovery cache, forcing a refresh on the next call.
func ClearCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.models = nil
	globalCache.expiresAt = time.Time{}
}

func fetchModels(ctx context.Context, cfg *DiscoveryConfig) ([]ModelDefinition, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := clientFactory(awsCfg)

	output, err := client.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, err
	}

	models := make([]ModelDefinition, 0, len(output.ModelSummaries))
	for _, summary := range output.ModelSummaries {
		if !shouldIncludeModel(&summary, cfg.ProviderFilter) {
			continue
		}
		models = append(models, toModelDefinition(&summary, *cfg))
	}

	return models, nil
}

// shouldIncludeModel keeps ACTIVE models that match the vendor filter.
func shouldIncludeModel(summary *types.FoundationModelSummary, filter []string) bool {
	if summary == nil {
		return false
	}

	if summary.ModelLifecycle != nil {
		status := string(summary.ModelLifecycle.Status)
		if status != "ACTIVE" && status != "" {
			return false
		}
	}

	if len(filter) == 0 {
		return true
	}

	providerName := strings.ToLower(aws.ToString(summary.ProviderName))
	modelID := strings.ToLower(aws.ToString(summary.ModelId))
	for _, f := range filter {
		fLower := strings.ToLower(f)
		if fLower == providerName || strings.HasPrefix(modelID, fLower+".") {
			return true
		}
	}

	return false
}

func toModelDefinition(summary *types.FoundationModelSummary, defaults DiscoveryConfig) ModelDefinition {
	def := ModelDefinition{
		ID:        aws.ToString(summary.ModelId),
		Name:      aws.ToString(summary.ModelName),
		Provider:  aws.ToString(summary.ProviderName),
		Streaming: aws.ToBool(summary.ResponseStreamingSupported),
	}

	for _, m := range summary.InputModalities {
		def.Input = append(def.Input, strings.ToLower(string(m)))
	}
	for _, m := range summary.OutputModalities {
		def.Output = append(def.Output, strings.ToLower(string(m)))
	}

	if summary.ModelLifecycle != nil {
		def.Status = string(summary.ModelLifecycle.Status)
	}

	def.ContextWindow = contextWindowFor(strings.ToLower(def.ID), defaults.DefaultContextWindow)

	return def
}

// contextWindowFor returns the context window for known model families. The
// control plane API does not report it.
func contextWindowFor(modelID string, defaultSize int) int {
	switch {
	case strings.Contains(modelID, "claude"):
		return 200000
	case strings.Contains(modelID, "llama3"):
		if strings.Contains(modelID, "405b") {
			return 128000
		}
		return 8192
	case strings.Contains(modelID, "mistral"), strings.Contains(modelID, "mixtral"):
		return 32768
	case strings.Contains(modelID, "command-r"):
		return 128000
	case strings.Contains(modelID, "titan-text-lite"):
		return 4096
	case strings.Contains(modelID, "titan"):
		return 8192
	case strings.Contains(modelID, "jamba"):
		return 256000
	default:
		return defaultSize
	}
}

func filterByProvider(models []ModelDefinition, filter []string) []ModelDefinition {
	if len(filter) == 0 {
		return models
	}

	result := make([]ModelDefinition, 0, len(models))
	for _, m := range models {
		providerLower := strings.ToLower(m.Provider)
		idLower := strings.ToLower(m.ID)
		for _, f := range filter {
			fLower := strings.ToLower(f)
			if providerLower == fLower || strings.HasPrefix(idLower, fLower+".") {
				result = append(result, m)
				break
			}
		}
	}
	return result
}

func applyDefaults(cfg *DiscoveryConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.DefaultContextWindow == 0 {
		cfg.DefaultContextWindow = 4096
	}
}
