package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// History Commands
// =============================================================================

// buildHistoryCmd creates the "history" command group.
func buildHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and inspect recorded runs",
	}
	cmd.AddCommand(buildHistoryListCmd(), buildHistoryShowCmd())
	return cmd
}

func buildHistoryListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runHistoryList(cmd, configPath, limit)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: crucible.yaml)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func buildHistoryShowCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Render the report for one recorded run",
		Long: `Render the report for one recorded run.

The run id may be abbreviated to any unique prefix, as printed by
"crucible history list".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runHistoryShow(cmd, configPath, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: crucible.yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report format: markdown, csv, or json (default: markdown)")
	return cmd
}
