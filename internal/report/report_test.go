package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/crucible/internal/history"
	"github.com/haasonsaas/crucible/pkg/models"
)

func sampleTrace() *models.Trace {
	pass := true
	fail := false
	cost := 0.0125
	return &models.Trace{
		ID:          "20260825T120000.000Z-abcd1234",
		EvalName:    "smoke",
		StartedAt:   time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2026, 8, 25, 12, 0, 1, 500_000_000, time.UTC),
		Config: models.RunSettings{
			Models: []models.ModelConfig{{Provider: "openai", Model: "gpt-4o"}},
		},
		Results: []models.ExecutionRecord{
			{
				Case: "greet", Provider: "openai", Model: "gpt-4o",
				Result:   &models.CompletionResult{Text: "hello", LatencyMs: 420, Cost: &cost},
				Verdict:  &models.Verdict{Pass: &pass, Score: 1, Type: "contains"},
				CacheHit: true,
			},
			{
				Case: "math", Provider: "openai", Model: "gpt-4o",
				Result:  &models.CompletionResult{Text: "5", LatencyMs: 1500},
				Verdict: &models.Verdict{Pass: &fail, Score: 0, Reason: "want | got differ", Type: "exact_match"},
			},
			{
				Case: "flaky", Provider: "openai", Model: "gpt-4o",
				Error: "retries exhausted\n503 server error", Retries: 2,
			},
		},
		Summary: models.Summary{Passed: 1, Failed: 1, Errors: 1, Total: 3},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"MD", FormatMarkdown, false},
		{"csv", FormatCSV, false},
		{"JSON", FormatJSON, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleTrace(), FormatMarkdown); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# smoke",
		"- Run: 20260825T120000.000Z-abcd1234",
		"- Models: openai/gpt-4o",
		"- Duration: 1.5s",
		"- Passed: 1/3 (33.3%), errors: 1",
		"- Cache hits: 1",
		"- Cost: $0.0125",
		"| greet | openai/gpt-4o | pass | 1.00 | 420ms | $0.0125 |",
		"| math | openai/gpt-4o | fail | 0.00 | 1.5s | - |",
		"| flaky | openai/gpt-4o | error | 0.00 | - | - |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	if !strings.Contains(out, `want \| got differ`) {
		t.Errorf("pipe in reason not escaped:\n%s", out)
	}
	if !strings.Contains(out, "retries exhausted 503 server error") {
		t.Errorf("newline in error not collapsed:\n%s", out)
	}
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleTrace(), FormatCSV); err != nil {
		t.Fatalf("Render: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows: got %d want 4 (header + 3)", len(rows))
	}
	if rows[0][0] != "case" || rows[0][9] != "details" {
		t.Fatalf("header: got %v", rows[0])
	}

	greet := rows[1]
	if greet[0] != "greet" || greet[3] != "pass" || greet[4] != "1" {
		t.Errorf("greet row: got %v", greet)
	}
	if greet[5] != "420" || greet[7] != "true" || greet[8] != "0.0125" {
		t.Errorf("greet numerics: got %v", greet)
	}

	math := rows[2]
	if math[3] != "fail" || math[5] != "1500" || math[7] != "false" || math[8] != "" {
		t.Errorf("math row: got %v", math)
	}
	if math[9] != "want | got differ" {
		t.Errorf("details kept raw: got %q", math[9])
	}

	flaky := rows[3]
	if flaky[3] != "error" || flaky[5] != "" || flaky[6] != "2" {
		t.Errorf("flaky row: got %v", flaky)
	}
	if flaky[9] != "retries exhausted\n503 server error" {
		t.Errorf("multiline details survive quoting: got %q", flaky[9])
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleTrace(), FormatJSON); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		t.Error("output should end with a newline")
	}

	var got models.Trace
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if got.ID != "20260825T120000.000Z-abcd1234" || len(got.Results) != 3 {
		t.Fatalf("round trip: got %s with %d results", got.ID, len(got.Results))
	}
	if got.Summary != (models.Summary{Passed: 1, Failed: 1, Errors: 1, Total: 3}) {
		t.Fatalf("summary: got %+v", got.Summary)
	}
}

func sampleComparison() *history.Comparison {
	return &history.Comparison{
		OldID: "old-run",
		NewID: "new-run",
		Regressions: []history.Change{
			{Case: "greet", Model: "openai/gpt-4o", OldScore: 1, NewScore: 0, Reason: "missing greeting"},
		},
		Improvements: []history.Change{
			{Case: "math", Model: "openai/gpt-4o", OldScore: 0, NewScore: 1},
		},
		Unchanged: 3,
	}
}

func TestRenderComparisonMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderComparison(&buf, sampleComparison(), FormatMarkdown); err != nil {
		t.Fatalf("RenderComparison: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"- Baseline: old-run",
		"- Candidate: new-run",
		"- Regressions: 1, improvements: 1, unchanged: 3",
		"## Regressions",
		"| greet | openai/gpt-4o | 1.00 | 0.00 | missing greeting |",
		"## Improvements",
		"| math | openai/gpt-4o | 0.00 | 1.00 |  |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderComparisonMarkdownNoChanges(t *testing.T) {
	var buf bytes.Buffer
	cmp := &history.Comparison{OldID: "a", NewID: "b", Unchanged: 4}
	if err := RenderComparison(&buf, cmp, FormatMarkdown); err != nil {
		t.Fatalf("RenderComparison: %v", err)
	}
	if !strings.Contains(buf.String(), "No outcome changes") {
		t.Fatalf("missing no-changes line:\n%s", buf.String())
	}
}

func TestRenderComparisonCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderComparison(&buf, sampleComparison(), FormatCSV); err != nil {
		t.Fatalf("RenderComparison: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d want 3", len(rows))
	}
	if rows[1][0] != "regression" || rows[1][1] != "greet" {
		t.Errorf("regression row: got %v", rows[1])
	}
	if rows[2][0] != "improvement" || rows[2][4] != "1" {
		t.Errorf("improvement row: got %v", rows[2])
	}
}

func TestRenderComparisonJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderComparison(&buf, sampleComparison(), FormatJSON); err != nil {
		t.Fatalf("RenderComparison: %v", err)
	}

	var got history.Comparison
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if got.OldID != "old-run" || len(got.Regressions) != 1 || got.Unchanged != 3 {
		t.Fatalf("round trip: got %+v", got)
	}
}
