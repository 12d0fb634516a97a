// Package markdown builds the Markdown fragments reports are assembled
// from, primarily pipe tables.
package markdown

import "strings"

// Table accumulates rows and renders a pipe table.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Append adds one row. Cells are escaped; short rows are padded to the
// header width and long rows truncated to it.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(cells) {
			row[i] = EscapeCell(cells[i])
		}
	}
	t.rows = append(t.rows, row)
}

// String renders the table with a separator line under the headers.
func (t *Table) String() string {
	if len(t.headers) == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(c)
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(t.headers)
	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		// Separators need at least three dashes to parse as a table.
		n := len(h)
		if n < 3 {
			n = 3
		}
		sep[i] = strings.Repeat("-", n)
	}
	writeRow(sep)
	for _, row := range t.rows {
		writeRow(row)
	}
	return b.String()
}

// EscapeCell makes an arbitrary string safe inside a table cell: newlines
// collapse to spaces and pipes are escaped.
func EscapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.TrimSpace(s)
}

// Truncate shortens s to limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if limit <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
