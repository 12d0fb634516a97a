// Package config loads and validates the harness configuration: provider
// credentials, run parameters, retry and cache policy, rate-limit ceilings,
// and observability settings. Configuration resolves once at startup from an
// optional YAML/JSON5 file overlaid with well-known environment variables;
// components receive plain values, never this package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/crucible/pkg/models"
)

// Config is the root configuration for a crucible invocation.
type Config struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Run        RunConfig                 `yaml:"run"`
	Retry      RetryConfig               `yaml:"retry"`
	Cache      CacheConfig               `yaml:"cache"`
	RateLimits RateLimitsConfig          `yaml:"rate_limits"`
	Judge      JudgeConfig               `yaml:"judge"`
	History    HistoryConfig             `yaml:"history"`
	Logging    LoggingConfig             `yaml:"logging"`
	Metrics    MetricsConfig             `yaml:"metrics"`
	Tracing    TracingConfig             `yaml:"tracing"`
}

// ProviderConfig holds one provider's credentials and ceilings. Fields that
// do not apply to a given provider are ignored by its constructor.
type ProviderConfig struct {
	// APIKey authenticates against the provider. ${ENV} references in the
	// config file are expanded at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider endpoint. For openai this selects any
	// OpenAI-compatible server; for ollama it points at the local daemon.
	BaseURL string `yaml:"base_url"`

	// EmbeddingModel selects the model EmbedBatch uses (openai only).
	EmbeddingModel string `yaml:"embedding_model"`

	// Region, AccessKeyID, SecretAccessKey, SessionToken configure bedrock.
	// When the key fields are empty the AWS default credential chain applies.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`

	// RequestsPerMinute and TokensPerMinute cap this provider's admission.
	// Zero falls back to the rate_limits defaults.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TokensPerMinute   float64 `yaml:"tokens_per_minute"`
}

// RunConfig sets execution parameters shared by every run.
type RunConfig struct {
	// Models are default "provider/model" targets used when the command line
	// names none.
	Models []string `yaml:"models"`

	// Concurrency is the window size for parallel execution. 1 runs cases
	// sequentially.
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds each provider call.
	Timeout time.Duration `yaml:"timeout"`

	// Temperature and MaxTokens are sampling defaults; test cases and model
	// targets may override them.
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// RetryConfig sets the retry schedule for transient provider failures.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the wait after the first failure; attempt n waits n times
	// this. MaxDelay caps the per-attempt wait.
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// Enabled defaults to true; the pointer distinguishes "unset" from an
	// explicit false.
	Enabled *bool `yaml:"enabled"`

	// Dir is the cache directory.
	Dir string `yaml:"dir"`

	// TTL bounds entry age.
	TTL time.Duration `yaml:"ttl"`
}

// On reports whether the cache is enabled.
func (c CacheConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// RateLimitsConfig sets default admission ceilings; per-provider fields in
// ProviderConfig override them.
type RateLimitsConfig struct {
	Enabled           *bool   `yaml:"enabled"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TokensPerMinute   float64 `yaml:"tokens_per_minute"`
}

// On reports whether rate limiting is enabled.
func (c RateLimitsConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// JudgeConfig names the model used by the llm_judge evaluator. When empty,
// judge-based cases fail with a descriptive verdict instead of running.
type JudgeConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

// Configured reports whether a judge target is set.
func (c JudgeConfig) Configured() bool {
	return c.Provider != "" && c.Model != ""
}

// HistoryConfig locates the trace store and its index.
type HistoryConfig struct {
	// Dir holds one JSON trace file per run.
	Dir string `yaml:"dir"`

	// Index is the sqlite run index path. Empty derives <dir>/index.db.
	Index string `yaml:"index"`
}

// IndexPath returns the configured index path or its derived default.
func (c HistoryConfig) IndexPath() string {
	if c.Index != "" {
		return c.Index
	}
	return filepath.Join(c.Dir, "index.db")
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig controls the optional Prometheus listener. Metrics are
// always recorded; Listen exposes them over HTTP for the duration of a run.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// TracingConfig controls OTLP trace export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// knownProviders is the set of provider keys the registry can construct.
var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"google":    true,
	"bedrock":   true,
	"ollama":    true,
}

// Load resolves configuration from an optional file path. An empty path
// yields defaults plus the environment overlay, so the CLI works with no
// config file at all.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := loadRaw(path, map[string]bool{})
		if err != nil {
			return nil, err
		}
		cfg, err = decodeRaw(raw)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverlay(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverlay fills empty credential fields from the conventional
// environment variables. File values always win.
func applyEnvOverlay(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	overlay := func(name string, fill func(*ProviderConfig)) {
		pc := cfg.Providers[name]
		fill(&pc)
		cfg.Providers[name] = pc
	}

	overlay("anthropic", func(pc *ProviderConfig) {
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	})
	overlay("openai", func(pc *ProviderConfig) {
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if pc.BaseURL == "" {
			pc.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
	})
	overlay("google", func(pc *ProviderConfig) {
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	})
	overlay("bedrock", func(pc *ProviderConfig) {
		if pc.Region == "" {
			pc.Region = os.Getenv("AWS_REGION")
		}
	})
	overlay("ollama", func(pc *ProviderConfig) {
		if pc.BaseURL == "" {
			pc.BaseURL = os.Getenv("OLLAMA_HOST")
		}
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Run.Concurrency == 0 {
		cfg.Run.Concurrency = 1
	}
	if cfg.Run.Timeout == 0 {
		cfg.Run.Timeout = 2 * time.Minute
	}
	if cfg.Run.MaxTokens == 0 {
		cfg.Run.MaxTokens = 1024
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".crucible/cache"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.RateLimits.RequestsPerMinute == 0 {
		cfg.RateLimits.RequestsPerMinute = 60
	}
	if cfg.RateLimits.TokensPerMinute == 0 {
		cfg.RateLimits.TokensPerMinute = 90000
	}
	if cfg.History.Dir == "" {
		cfg.History.Dir = ".crucible/history"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
}

// Validate rejects configurations the run would only trip over later.
func (c *Config) Validate() error {
	for name := range c.Providers {
		if !knownProviders[name] {
			return fmt.Errorf("providers.%s: unknown provider (known: anthropic, openai, google, bedrock, ollama)", name)
		}
	}

	for i, spec := range c.Run.Models {
		mc, err := models.ParseModelConfig(spec)
		if err != nil {
			return fmt.Errorf("run.models[%d]: %w", i, err)
		}
		if !knownProviders[mc.Provider] {
			return fmt.Errorf("run.models[%d]: unknown provider %q", i, mc.Provider)
		}
	}

	if c.Run.Concurrency < 1 {
		return fmt.Errorf("run.concurrency must be at least 1, got %d", c.Run.Concurrency)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: want debug, info, warn, or error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}

	if c.Judge.Provider != "" && !knownProviders[c.Judge.Provider] {
		return fmt.Errorf("judge.provider %q: unknown provider", c.Judge.Provider)
	}
	if (c.Judge.Provider == "") != (c.Judge.Model == "") {
		return fmt.Errorf("judge: provider and model must be set together")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate must be within [0, 1], got %v", c.Tracing.SamplingRate)
	}

	return nil
}
