// Package main provides the CLI entry point for the crucible evaluation harness.
//
// Crucible runs declarative test suites against LLM providers (Anthropic,
// OpenAI, Google, Bedrock, Ollama), scores every response with deterministic
// or judge-based evaluators, and records each run as an immutable trace that
// later runs can be compared against.
//
// # Basic Usage
//
// Run a suite against one or more models:
//
//	crucible run evals/smoke.yaml --model anthropic/claude-sonnet-4-5
//
// Diff two recorded runs:
//
//	crucible compare 20260824T101502 20260825T093011
//
// Inspect past runs:
//
//	crucible history list
//	crucible history show 20260825T093011
//
// # Environment Variables
//
// Configuration can be provided via environment variables:
//
//   - CRUCIBLE_CONFIG: Path to configuration file (default: crucible.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - GOOGLE_API_KEY / GEMINI_API_KEY: Google AI API key for Gemini models
//   - AWS_REGION: AWS region for Bedrock models
//   - OLLAMA_HOST: Base URL of a local Ollama server
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

func main() {
	// Logs go to stderr so report output on stdout stays parseable. Handlers
	// replace this with the configured logger once the config is loaded.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crucible",
		Short: "Crucible - LLM evaluation harness",
		Long: `Crucible runs evaluation suites against LLM providers and scores the responses.

Supported providers: Anthropic, OpenAI, Google, AWS Bedrock, Ollama
Evaluators: exact/contains/regex match, tool call, JSON match, JSON schema,
semantic similarity, safety refusal, LLM judge

Documentation: https://github.com/haasonsaas/crucible`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage: true,
	}

	// Attach all subcommands.
	rootCmd.AddCommand(
		buildRunCmd(),
		buildCompareCmd(),
		buildHistoryCmd(),
		buildCacheCmd(),
		buildConfigCmd(),
		buildModelsCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}

// resolveConfigPath picks the config file for a command: the explicit flag,
// then CRUCIBLE_CONFIG, then crucible.yaml when one exists in the working
// directory. An empty result runs on built-in defaults plus the environment.
func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("CRUCIBLE_CONFIG")); env != "" {
		return env
	}
	if _, err := os.Stat("crucible.yaml"); err == nil {
		return "crucible.yaml"
	}
	return ""
}
