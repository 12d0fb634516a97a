// Package format provides the small string-formatting helpers shared by
// reports and the CLI: latencies, dollar costs, scores, and pass rates.
package format

import (
	"fmt"
	"strings"
)

// Latency formats a millisecond latency as "420ms" below one second and as
// seconds with trimmed zeros above ("1.5s", "2s").
func Latency(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return trimTrailingZeros(fmt.Sprintf("%.2f", float64(ms)/1000)) + "s"
}

// Cost formats a USD estimate like "$0.0125". A nil value means the model is
// not in the pricing catalog and renders as "-".
func Cost(v *float64) string {
	if v == nil {
		return "-"
	}
	return "$" + trimTrailingZeros(fmt.Sprintf("%.4f", *v))
}

// Percent renders num out of den as a percentage with one decimal.
func Percent(num, den int) string {
	if den <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(num)/float64(den)*100)
}

// Score renders a verdict score with two decimals.
func Score(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// trimTrailingZeros removes trailing zeros after the decimal point.
// e.g., "1.50" -> "1.5", "2.00" -> "2"
func trimTrailingZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
