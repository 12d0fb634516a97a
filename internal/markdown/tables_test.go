package markdown

import (
	"strings"
	"testing"
)

func TestTableRendering(t *testing.T) {
	table := NewTable("Case", "Status")
	table.Append("greet", "pass")
	table.Append("refuse", "fail")

	got := table.String()
	want := "| Case | Status |\n" +
		"| ---- | ------ |\n" +
		"| greet | pass |\n" +
		"| refuse | fail |\n"
	if got != want {
		t.Fatalf("table:\n%s\nwant:\n%s", got, want)
	}
}

func TestTablePadsAndTruncatesRows(t *testing.T) {
	table := NewTable("A", "B")
	table.Append("only")
	table.Append("one", "two", "three")

	got := table.String()
	if !strings.Contains(got, "| only |  |") {
		t.Errorf("short row not padded:\n%s", got)
	}
	if strings.Contains(got, "three") {
		t.Errorf("long row not truncated:\n%s", got)
	}
}

func TestTableSeparatorMinimumWidth(t *testing.T) {
	got := NewTable("A").String()
	if !strings.Contains(got, "| --- |") {
		t.Fatalf("separator too narrow to parse:\n%s", got)
	}
}

func TestEscapeCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"pipe", "a|b", `a\|b`},
		{"newline", "line one\nline two", "line one line two"},
		{"crlf", "one\r\ntwo", "one two"},
		{"surrounding space", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeCell(tt.input); got != tt.want {
				t.Errorf("EscapeCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"under limit", "short", 10, "short"},
		{"at limit", "exact", 5, "exact"},
		{"over limit", "a longer sentence", 10, "a longe..."},
		{"tiny limit passes through", "abcdef", 3, "abcdef"},
		{"multibyte", "héllo wörld étc", 10, "héllo w..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
		})
	}
}

func TestEmptyTable(t *testing.T) {
	if got := NewTable().String(); got != "" {
		t.Fatalf("headerless table rendered %q", got)
	}
}
