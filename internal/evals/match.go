package evals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

// evalExact compares the response to the expected value, ignoring case and
// surrounding whitespace.
func evalExact(tc *models.TestCase, response string) *models.Verdict {
	want := strings.TrimSpace(tc.Expected)
	got := strings.TrimSpace(response)
	if strings.EqualFold(want, got) {
		return passVerdict(TypeExactMatch, 1, "response matches expected value")
	}
	return failVerdict(TypeExactMatch, 0, fmt.Sprintf("expected %q, got %q", want, truncate(got, 120)))
}

// evalContains requires every expected substring to appear in the response,
// case-insensitively. The score is the fraction found, so a partial miss
// still reports how close the response came.
func evalContains(tc *models.TestCase, response string) *models.Verdict {
	if len(tc.Contains) == 0 {
		return passVerdict(TypeContains, 1, "no substrings required")
	}
	lower := strings.ToLower(response)
	var missing []string
	for _, want := range tc.Contains {
		if !strings.Contains(lower, strings.ToLower(want)) {
			missing = append(missing, want)
		}
	}
	if len(missing) == 0 {
		return passVerdict(TypeContains, 1, fmt.Sprintf("all %d expected substrings present", len(tc.Contains)))
	}
	found := len(tc.Contains) - len(missing)
	score := float64(found) / float64(len(tc.Contains))
	return failVerdict(TypeContains, score, fmt.Sprintf("missing %s", quoteList(missing)))
}

func evalRegex(tc *models.TestCase, response string) *models.Verdict {
	re, err := compilePattern(tc.Pattern, tc.PatternFlags)
	if err != nil {
		return failVerdict(TypeRegex, 0, fmt.Sprintf("invalid pattern %q: %v", tc.Pattern, err))
	}
	if re.MatchString(response) {
		return passVerdict(TypeRegex, 1, fmt.Sprintf("response matches /%s/", tc.Pattern))
	}
	return failVerdict(TypeRegex, 0, fmt.Sprintf("response does not match /%s/", tc.Pattern))
}

// compilePattern compiles a pattern with the given flag letters (i, m, s).
// Case-insensitive matching is the default; "none" compiles the pattern with
// no flags at all.
func compilePattern(pattern, flags string) (*regexp.Regexp, error) {
	switch flags {
	case "":
		flags = "i"
	case "none":
		return regexp.Compile(pattern)
	}
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
		default:
			return nil, fmt.Errorf("unknown flag %q", string(f))
		}
	}
	return regexp.Compile("(?" + flags + ")" + pattern)
}
