package evals

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

// Wildcard is the expected-value sentinel that asserts a key exists without
// constraining its value.
const Wildcard = "*"

// extractJSON returns the first parseable JSON object or array embedded in
// the text. Braces inside string literals do not count toward balance, and a
// balanced span that is not valid JSON (prose in braces) is skipped in favor
// of a later candidate.
func extractJSON(text string) (json.RawMessage, bool) {
	for offset := 0; offset < len(text); {
		idx := strings.IndexAny(text[offset:], "{[")
		if idx < 0 {
			return nil, false
		}
		start := offset + idx
		if span, ok := balancedSpan(text[start:]); ok && json.Valid([]byte(span)) {
			return json.RawMessage(span), true
		}
		offset = start + 1
	}
	return nil, false
}

// balancedSpan returns the prefix of s up to and including the bracket that
// balances s[0]. s must start with '{' or '['.
func balancedSpan(s string) (string, bool) {
	opener := s[0]
	closer := byte('}')
	if opener == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// evalJSONMatch checks the first JSON literal in the response against the
// expected structure. Each expected key must be present with a matching value
// or carry the wildcard; the score is the fraction of keys satisfied.
func evalJSONMatch(tc *models.TestCase, response string) *models.Verdict {
	raw, ok := extractJSON(response)
	if !ok {
		return failVerdict(TypeJSONMatch, 0, "response contains no JSON literal")
	}
	var actual any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return failVerdict(TypeJSONMatch, 0, fmt.Sprintf("response JSON is malformed: %v", err))
	}
	if len(tc.ExpectedJSON) == 0 {
		return passVerdict(TypeJSONMatch, 1, "response contains valid JSON")
	}
	obj, ok := actual.(map[string]any)
	if !ok {
		return failVerdict(TypeJSONMatch, 0, "response JSON is not an object")
	}

	var unsatisfied []string
	for key, want := range tc.ExpectedJSON {
		got, present := obj[key]
		if !present || !matchValue(want, got) {
			unsatisfied = append(unsatisfied, key)
		}
	}
	if len(unsatisfied) == 0 {
		return passVerdict(TypeJSONMatch, 1, fmt.Sprintf("all %d expected keys match", len(tc.ExpectedJSON)))
	}
	sort.Strings(unsatisfied)
	matched := len(tc.ExpectedJSON) - len(unsatisfied)
	score := float64(matched) / float64(len(tc.ExpectedJSON))
	return failVerdict(TypeJSONMatch, score, fmt.Sprintf("keys not satisfied: %s", quoteList(unsatisfied)))
}

// matchValue reports whether an actual JSON value satisfies the expected one.
// The wildcard accepts anything, maps match key by key so wildcards work at
// any depth, and numbers compare by value since YAML decodes 1 as an int
// while JSON yields float64.
func matchValue(want, got any) bool {
	if s, ok := want.(string); ok && s == Wildcard {
		return true
	}
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for key, wv := range w {
			gv, present := g[key]
			if !present || !matchValue(wv, gv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !matchValue(w[i], g[i]) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(want, got)
	}
}

func scalarEqual(want, got any) bool {
	if wn, ok := toFloat(want); ok {
		gn, ok := toFloat(got)
		return ok && wn == gn
	}
	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
