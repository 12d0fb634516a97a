package evals

import (
	"regexp"
	"strings"
)

// reasoningSpans match chain-of-thought markup in model output. Closed pairs
// are removed first; the trailing patterns then catch a span left unclosed by
// output truncation. Go's regexp has no backreferences, so each tag form gets
// its own pattern.
var reasoningSpans = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
	regexp.MustCompile(`(?is)<think>.*$`),
	regexp.MustCompile(`(?is)<reasoning>.*$`),
}

// Sanitize strips reasoning markup from a model response and trims the
// surrounding whitespace. Every evaluator sees sanitized text, including the
// judge variant's own reply, so reasoning models score on their answers
// rather than their deliberation.
func Sanitize(text string) string {
	for _, re := range reasoningSpans {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}
