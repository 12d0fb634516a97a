// Package main provides the CLI entry point for the crucible evaluation harness.
//
// commands.go contains the cobra command definitions and their flag
// configurations. Each command builder creates a command and wires it to its
// handler.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// Run Command
// =============================================================================

// buildRunCmd creates the "run" command that executes an evaluation suite.
// This is the primary command of the harness.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		overrides  runOverrides
	)

	cmd := &cobra.Command{
		Use:   "run <suite>",
		Short: "Run an evaluation suite against one or more models",
		Long: `Run an evaluation suite against one or more models.

The run will:
1. Load configuration from the specified file (or crucible.yaml)
2. Load and validate the suite (YAML, JSON, JSONL, or CSV)
3. Execute every (case, model) pair through the cache, rate limit, and retry layers
4. Score each response with the case's evaluator
5. Seal the run as an immutable trace under the history directory
6. Print the report to stdout

The run always completes: provider failures become failing records, not aborts.`,
		Example: `  # Run against the configured default models
  crucible run evals/smoke.yaml

  # Run against two models with four cases in flight
  crucible run evals/smoke.yaml -m anthropic/claude-sonnet-4-5 -m openai/gpt-4o --concurrency 4

  # Bypass the response cache and emit JSON
  crucible run evals/smoke.yaml --no-cache --output json

  # Run and diff against a prior run in one step
  crucible run evals/smoke.yaml --compare 20260824T101502`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runRun(cmd, configPath, args[0], overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to configuration file (default: crucible.yaml)")
	cmd.Flags().StringSliceVarP(&overrides.models, "model", "m", nil,
		"Model target as provider/model (repeatable; overrides run.models)")
	cmd.Flags().IntVar(&overrides.concurrency, "concurrency", 0,
		"Cases in flight at once (overrides run.concurrency)")
	cmd.Flags().BoolVar(&overrides.noCache, "no-cache", false,
		"Bypass the response cache for this run")
	cmd.Flags().StringVar(&overrides.judge, "judge", "",
		"Judge model as provider/model (overrides judge.provider/judge.model)")
	cmd.Flags().StringVarP(&overrides.output, "output", "o", "",
		"Report format: markdown, csv, or json (default: markdown)")
	cmd.Flags().StringVar(&overrides.compareTo, "compare", "",
		"Run id (or unique prefix) to diff this run against after it seals")

	return cmd
}

// =============================================================================
// Compare Command
// =============================================================================

func buildCompareCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "compare <old> <new>",
		Short: "Diff two recorded runs for regressions and improvements",
		Long: `Diff two recorded runs for regressions and improvements.

Records are matched by (case, provider/model). A pass that became a fail is a
regression; a fail that became a pass is an improvement. Pairs present in only
one run are ignored. Run ids may be abbreviated to any unique prefix.`,
		Example: `  crucible compare 20260824T101502 20260825T093011
  crucible compare 20260824 20260825 --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runCompare(cmd, configPath, args[0], args[1], output)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to configuration file (default: crucible.yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "",
		"Report format: markdown, csv, or json (default: markdown)")

	return cmd
}

// =============================================================================
// Cache Commands
// =============================================================================

// buildCacheCmd creates the "cache" command group.
func buildCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the response cache",
	}
	cmd.AddCommand(buildCacheStatsCmd(), buildCacheClearCmd())
	return cmd
}

func buildCacheStatsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runCacheStats(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: crucible.yaml)")
	return cmd
}

func buildCacheClearCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached response",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runCacheClear(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: crucible.yaml)")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with the crucible configuration file",
	}
	cmd.AddCommand(buildConfigSchemaCmd())
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for crucible.yaml",
		Long: `Print the JSON Schema for crucible.yaml.

Point an editor or CI validator at the output to get completion and validation
for config files.`,
		Example: `  crucible config schema > crucible.schema.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}
}

// =============================================================================
// Models Command
// =============================================================================

func buildModelsCmd() *cobra.Command {
	var (
		configPath string
		provider   string
		remote     bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known models and provider availability",
		Long: `List known models and provider availability.

The catalog lists models crucible can price and warn about. Providers accept
any model id their backend recognizes, so absence from the catalog only means
cost and deprecation metadata are unavailable.`,
		Example: `  # List the full catalog
  crucible models

  # List one provider's models
  crucible models --provider anthropic

  # Discover live Bedrock foundation models (network call)
  crucible models --provider bedrock --remote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runModels(cmd, configPath, provider, remote)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Path to configuration file (default: crucible.yaml)")
	cmd.Flags().StringVarP(&provider, "provider", "p", "",
		"Limit the listing to one provider")
	cmd.Flags().BoolVar(&remote, "remote", false,
		"Query AWS Bedrock for live foundation models instead of the built-in catalog")

	return cmd
}

// =============================================================================
// Version Command
// =============================================================================

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "crucible %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
