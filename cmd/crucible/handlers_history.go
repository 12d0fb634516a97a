package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/crucible/internal/config"
	"github.com/haasonsaas/crucible/internal/history"
	"github.com/haasonsaas/crucible/internal/observability"
	"github.com/haasonsaas/crucible/internal/report"
)

// =============================================================================
// Compare Command Handler
// =============================================================================

func runCompare(cmd *cobra.Command, configPath, oldRef, newRef, output string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	format, err := report.ParseFormat(output)
	if err != nil {
		return err
	}

	store := history.NewFileStore(cfg.History.Dir)
	oldID, err := store.Resolve(oldRef)
	if err != nil {
		return err
	}
	newID, err := store.Resolve(newRef)
	if err != nil {
		return err
	}

	cmp, err := history.Compare(store, oldID, newID)
	if err != nil {
		return err
	}
	return report.RenderComparison(cmd.OutOrStdout(), cmp, format)
}

// =============================================================================
// History Command Handlers
// =============================================================================

func runHistoryList(cmd *cobra.Command, configPath string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rows := indexRows(cfg, limit)
	if len(rows) == 0 {
		rows, err = scanRows(cfg, limit)
		if err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tEVAL\tSTARTED\tPASS\tFAIL\tERR\tTOTAL")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			row.ID, row.EvalName, row.StartedAt.Format(time.RFC3339),
			row.Summary.Passed, row.Summary.Failed, row.Summary.Errors, row.Summary.Total)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, configPath, ref, output string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	format, err := report.ParseFormat(output)
	if err != nil {
		return err
	}

	store := history.NewFileStore(cfg.History.Dir)
	id, err := store.Resolve(ref)
	if err != nil {
		return err
	}
	trace, err := store.Load(id)
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), trace, format)
}

// openIndex opens the run index for writing, creating the history directory
// on first use. A broken index degrades runs to artifact-only recording.
func openIndex(cfg *config.Config, logger *observability.Logger) *history.Index {
	if err := os.MkdirAll(cfg.History.Dir, 0o755); err != nil {
		logger.Warn(context.Background(), "create history dir failed", "dir", cfg.History.Dir, "error", err)
		return nil
	}
	ix, err := history.OpenIndex(cfg.History.IndexPath())
	if err != nil {
		logger.Warn(context.Background(), "run index unavailable", "path", cfg.History.IndexPath(), "error", err)
		return nil
	}
	return ix
}

// indexRows reads the listing from the sqlite index. Any failure, or an index
// that has never been created, yields nil so the caller falls back to
// scanning the artifacts.
func indexRows(cfg *config.Config, limit int) []history.RunInfo {
	path := cfg.History.IndexPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ix, err := history.OpenIndex(path)
	if err != nil {
		return nil
	}
	defer ix.Close()
	rows, err := ix.List(limit)
	if err != nil {
		return nil
	}
	return rows
}

// scanRows rebuilds the listing straight from the trace artifacts, newest
// first. Unreadable artifacts are skipped rather than failing the listing.
func scanRows(cfg *config.Config, limit int) ([]history.RunInfo, error) {
	store := history.NewFileStore(cfg.History.Dir)
	ids, err := store.List()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []history.RunInfo
	for _, id := range ids {
		if len(rows) == limit {
			break
		}
		trace, err := store.Load(id)
		if err != nil {
			continue
		}
		rows = append(rows, history.RunInfo{
			ID:          trace.ID,
			EvalName:    trace.EvalName,
			StartedAt:   trace.StartedAt,
			CompletedAt: trace.CompletedAt,
			Summary:     trace.Summary,
			Path:        store.Path(id),
		})
	}
	return rows, nil
}
