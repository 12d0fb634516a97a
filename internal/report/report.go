// Package report renders a completed run for humans and machines: a summary
// header plus per-record lines as Markdown, CSV, or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/haasonsaas/crucible/internal/format"
	"github.com/haasonsaas/crucible/internal/history"
	"github.com/haasonsaas/crucible/internal/markdown"
	"github.com/haasonsaas/crucible/pkg/models"
)

// Format selects a report encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat normalizes a format flag. Empty selects Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want markdown, csv, or json)", s)
	}
}

// Render writes one sealed run in the requested format.
func Render(w io.Writer, trace *models.Trace, f Format) error {
	switch f {
	case FormatCSV:
		return renderCSV(w, trace)
	case FormatJSON:
		return renderJSONValue(w, trace)
	default:
		return renderMarkdown(w, trace)
	}
}

// RenderComparison writes the diff of two runs in the requested format.
func RenderComparison(w io.Writer, cmp *history.Comparison, f Format) error {
	switch f {
	case FormatCSV:
		return renderComparisonCSV(w, cmp)
	case FormatJSON:
		return renderJSONValue(w, cmp)
	default:
		return renderComparisonMarkdown(w, cmp)
	}
}

func renderMarkdown(w io.Writer, trace *models.Trace) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", trace.EvalName)
	fmt.Fprintf(&b, "- Run: %s\n", trace.ID)
	if len(trace.Config.Models) > 0 {
		keys := make([]string, len(trace.Config.Models))
		for i, m := range trace.Config.Models {
			keys[i] = m.Key()
		}
		fmt.Fprintf(&b, "- Models: %s\n", strings.Join(keys, ", "))
	}
	if !trace.StartedAt.IsZero() && !trace.CompletedAt.IsZero() {
		elapsed := trace.CompletedAt.Sub(trace.StartedAt)
		fmt.Fprintf(&b, "- Duration: %s\n", format.Latency(elapsed.Milliseconds()))
	}
	s := trace.Summary
	fmt.Fprintf(&b, "- Passed: %d/%d (%s)", s.Passed, s.Total, format.Percent(s.Passed, s.Total))
	if s.Errors > 0 {
		fmt.Fprintf(&b, ", errors: %d", s.Errors)
	}
	b.WriteString("\n")
	if hits := cacheHits(trace.Results); hits > 0 {
		fmt.Fprintf(&b, "- Cache hits: %d\n", hits)
	}
	if cost, priced := totalCost(trace.Results); priced {
		fmt.Fprintf(&b, "- Cost: %s\n", format.Cost(&cost))
	}
	b.WriteString("\n")

	table := markdown.NewTable("Case", "Model", "Status", "Score", "Latency", "Cost", "Details")
	for i := range trace.Results {
		rec := &trace.Results[i]
		table.Append(
			rec.Case,
			rec.ModelKey(),
			status(rec),
			format.Score(recordScore(rec)),
			recordLatency(rec),
			recordCost(rec),
			markdown.Truncate(details(rec), 80),
		)
	}
	b.WriteString(table.String())

	_, err := io.WriteString(w, b.String())
	return err
}

func renderCSV(w io.Writer, trace *models.Trace) error {
	cw := csv.NewWriter(w)
	header := []string{"case", "provider", "model", "status", "score", "latency_ms", "retries", "cache_hit", "cost", "details"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range trace.Results {
		rec := &trace.Results[i]
		var latency, cost string
		if rec.Result != nil {
			latency = strconv.FormatInt(rec.Result.LatencyMs, 10)
			if rec.Result.Cost != nil {
				cost = strconv.FormatFloat(*rec.Result.Cost, 'f', -1, 64)
			}
		}
		row := []string{
			rec.Case,
			rec.Provider,
			rec.Model,
			status(rec),
			strconv.FormatFloat(recordScore(rec), 'f', -1, 64),
			latency,
			strconv.Itoa(rec.Retries),
			strconv.FormatBool(rec.CacheHit),
			cost,
			details(rec),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func renderComparisonMarkdown(w io.Writer, cmp *history.Comparison) error {
	var b strings.Builder

	b.WriteString("# Comparison\n\n")
	fmt.Fprintf(&b, "- Baseline: %s\n", cmp.OldID)
	fmt.Fprintf(&b, "- Candidate: %s\n", cmp.NewID)
	fmt.Fprintf(&b, "- Regressions: %d, improvements: %d, unchanged: %d\n\n",
		len(cmp.Regressions), len(cmp.Improvements), cmp.Unchanged)

	writeChanges := func(title string, changes []history.Change) {
		if len(changes) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		table := markdown.NewTable("Case", "Model", "Old", "New", "Reason")
		for _, ch := range changes {
			table.Append(ch.Case, ch.Model,
				format.Score(ch.OldScore), format.Score(ch.NewScore),
				markdown.Truncate(ch.Reason, 80))
		}
		b.WriteString(table.String())
		b.WriteString("\n")
	}
	writeChanges("Regressions", cmp.Regressions)
	writeChanges("Improvements", cmp.Improvements)
	if len(cmp.Regressions) == 0 && len(cmp.Improvements) == 0 {
		b.WriteString("No outcome changes between the matched pairs.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderComparisonCSV(w io.Writer, cmp *history.Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "case", "model", "old_score", "new_score", "reason"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	write := func(kind string, changes []history.Change) error {
		for _, ch := range changes {
			row := []string{
				kind, ch.Case, ch.Model,
				strconv.FormatFloat(ch.OldScore, 'f', -1, 64),
				strconv.FormatFloat(ch.NewScore, 'f', -1, 64),
				ch.Reason,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		return nil
	}
	if err := write("regression", cmp.Regressions); err != nil {
		return err
	}
	if err := write("improvement", cmp.Improvements); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func renderJSONValue(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func status(rec *models.ExecutionRecord) string {
	switch {
	case rec.Error != "":
		return "error"
	case rec.Passed():
		return "pass"
	default:
		return "fail"
	}
}

func details(rec *models.ExecutionRecord) string {
	if rec.Error != "" {
		return rec.Error
	}
	if rec.Verdict != nil {
		return rec.Verdict.Reason
	}
	return ""
}

func recordScore(rec *models.ExecutionRecord) float64 {
	if rec.Verdict == nil {
		return 0
	}
	return rec.Verdict.Score
}

func recordLatency(rec *models.ExecutionRecord) string {
	if rec.Result == nil {
		return "-"
	}
	return format.Latency(rec.Result.LatencyMs)
}

func recordCost(rec *models.ExecutionRecord) string {
	if rec.Result == nil {
		return "-"
	}
	return format.Cost(rec.Result.Cost)
}

func cacheHits(records []models.ExecutionRecord) int {
	n := 0
	for i := range records {
		if records[i].CacheHit {
			n++
		}
	}
	return n
}

// totalCost sums the priced records. The bool reports whether any record
// carried a price at all; an all-unpriced run omits the cost line instead
// of claiming $0.
func totalCost(records []models.ExecutionRecord) (float64, bool) {
	var sum float64
	priced := false
	for i := range records {
		r := records[i].Result
		if r != nil && r.Cost != nil {
			sum += *r.Cost
			priced = true
		}
	}
	return sum, priced
}
