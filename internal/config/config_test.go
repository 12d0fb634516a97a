package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Run.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Run.Concurrency)
	}
	if cfg.Run.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Run.Timeout)
	}
	if cfg.Retry.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.Retry.BaseDelay)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("TTL = %v, want 24h", cfg.Cache.TTL)
	}
	if !cfg.Cache.On() {
		t.Error("cache should default to enabled")
	}
	if !cfg.RateLimits.On() {
		t.Error("rate limits should default to enabled")
	}
	if cfg.RateLimits.RequestsPerMinute != 60 || cfg.RateLimits.TokensPerMinute != 90000 {
		t.Errorf("rate limit defaults = %v/%v", cfg.RateLimits.RequestsPerMinute, cfg.RateLimits.TokensPerMinute)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.History.Dir != ".crucible/history" {
		t.Errorf("History.Dir = %s", cfg.History.Dir)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "crucible.yaml", `
providers:
  anthropic:
    api_key: sk-test
  ollama:
    base_url: http://localhost:11434
run:
  models: [anthropic/claude-3-5-haiku-20241022]
  concurrency: 4
  max_tokens: 512
retry:
  max_retries: 3
  base_delay: 500ms
cache:
  enabled: false
  ttl: 1h
judge:
  provider: anthropic
  model: claude-3-5-sonnet-20241022
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Providers["anthropic"].APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Providers["anthropic"].APIKey)
	}
	if cfg.Run.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Run.Concurrency)
	}
	if cfg.Run.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", cfg.Run.MaxTokens)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v", cfg.Retry.BaseDelay)
	}
	if cfg.Cache.On() {
		t.Error("cache explicitly disabled, On() = true")
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", cfg.Cache.TTL)
	}
	if !cfg.Judge.Configured() {
		t.Error("judge should be configured")
	}
	// Defaults still fill what the file left out.
	if cfg.Run.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want default 2m", cfg.Run.Timeout)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "crucible.yaml", `
run:
  concurrency: 2
  paralellism: 8
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadValidatesProviderNames(t *testing.T) {
	path := writeConfig(t, "crucible.yaml", `
providers:
  anthropicc:
    api_key: oops
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "anthropicc") {
		t.Errorf("error should name the bad provider: %v", err)
	}
}

func TestLoadValidatesModelSpecs(t *testing.T) {
	path := writeConfig(t, "crucible.yaml", `
run:
  models: [claude-without-provider]
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "run.models[0]") {
		t.Errorf("error should locate the bad spec: %v", err)
	}
}

func TestLoadValidatesJudgePairing(t *testing.T) {
	path := writeConfig(t, "crucible.yaml", `
judge:
  provider: anthropic
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for judge without model")
	}
	if !strings.Contains(err.Error(), "judge") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadValidatesLoggingLevel(t *testing.T) {
	path := writeConfig(t, "crucible.yaml", `
logging:
  level: verbose
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad level")
	}
}

func TestEnvOverlayFillsCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	t.Setenv("OLLAMA_HOST", "http://envhost:11434")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Providers["anthropic"].APIKey; got != "sk-from-env" {
		t.Errorf("anthropic key = %q, want sk-from-env", got)
	}
	if got := cfg.Providers["ollama"].BaseURL; got != "http://envhost:11434" {
		t.Errorf("ollama base url = %q", got)
	}
}

func TestEnvOverlayFileWins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	path := writeConfig(t, "crucible.yaml", `
providers:
  anthropic:
    api_key: sk-from-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Providers["anthropic"].APIKey; got != "sk-from-file" {
		t.Errorf("APIKey = %q, file value should win", got)
	}
}

func TestHistoryIndexPath(t *testing.T) {
	h := HistoryConfig{Dir: "/tmp/runs"}
	if got := h.IndexPath(); got != filepath.Join("/tmp/runs", "index.db") {
		t.Errorf("IndexPath = %q", got)
	}
	h.Index = "/elsewhere/idx.db"
	if got := h.IndexPath(); got != "/elsewhere/idx.db" {
		t.Errorf("IndexPath = %q, explicit path should win", got)
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	for _, key := range []string{"providers", "rate_limits", "max_retries"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("schema missing %q", key)
		}
	}
}
