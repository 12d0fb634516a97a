package evals

import (
	"strings"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
)

func TestEvalExact(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		response string
		wantPass bool
	}{
		{"identical", "Paris", "Paris", true},
		{"case folded", "Paris", "PARIS", true},
		{"whitespace trimmed", "Paris", "  paris \n", true},
		{"different", "Paris", "London", false},
		{"superset fails", "Paris", "Paris, France", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &models.TestCase{Expected: tt.expected}
			v := evalExact(tc, tt.response)
			if v.Passed() != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", v.Passed(), tt.wantPass, v.Reason)
			}
			wantScore := 0.0
			if tt.wantPass {
				wantScore = 1.0
			}
			if v.Score != wantScore {
				t.Errorf("Score = %v, want %v", v.Score, wantScore)
			}
		})
	}
}

func TestEvalContains(t *testing.T) {
	tests := []struct {
		name      string
		contains  []string
		response  string
		wantPass  bool
		wantScore float64
	}{
		{"all present", []string{"Python", "Go"}, "I love Python and Go", true, 1},
		{"case insensitive", []string{"python"}, "PYTHON is great", true, 1},
		{"half present", []string{"Python", "JavaScript"}, "I love Python and Go", false, 0.5},
		{"none present", []string{"Rust", "Zig"}, "I love Python", false, 0},
		{"single miss", []string{"a", "b", "c", "d"}, "a b c", false, 0.75},
		{"empty list passes", nil, "anything", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &models.TestCase{Contains: models.StringList(tt.contains)}
			v := evalContains(tc, tt.response)
			if v.Passed() != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", v.Passed(), tt.wantPass, v.Reason)
			}
			if v.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", v.Score, tt.wantScore)
			}
		})
	}
}

func TestEvalContainsReasonNamesMissing(t *testing.T) {
	tc := &models.TestCase{Contains: models.StringList{"Python", "JavaScript"}}
	v := evalContains(tc, "I love Python")
	if !strings.Contains(v.Reason, "JavaScript") {
		t.Errorf("Reason = %q, want the missing substring named", v.Reason)
	}
}

func TestEvalRegex(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		flags    string
		response string
		wantPass bool
	}{
		{"simple match", `\bhello\b`, "", "well hello there", true},
		{"case insensitive by default", "hello", "", "HELLO", true},
		{"no match", "^\\d+$", "", "abc", false},
		{"explicit flags", "(?:^world$)", "m", "hello\nworld", true},
		{"none disables folding", "hello", "none", "HELLO", false},
		{"dotall flag", "start.*end", "s", "start\nmiddle\nend", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &models.TestCase{Pattern: tt.pattern, PatternFlags: tt.flags}
			v := evalRegex(tc, tt.response)
			if v.Passed() != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", v.Passed(), tt.wantPass, v.Reason)
			}
		})
	}
}

func TestEvalRegexInvalidPattern(t *testing.T) {
	tc := &models.TestCase{Pattern: "([unclosed"}
	v := evalRegex(tc, "anything")
	if v.Passed() {
		t.Fatal("invalid pattern must not pass")
	}
	if v.Pass == nil || *v.Pass {
		t.Errorf("Pass = %v, want explicit false", v.Pass)
	}
	if !strings.Contains(v.Reason, "invalid pattern") {
		t.Errorf("Reason = %q, want invalid pattern explanation", v.Reason)
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		flags   string
		wantErr bool
	}{
		{"default flags", "abc", "", false},
		{"multi flags", "abc", "ims", false},
		{"none literal", "abc", "none", false},
		{"unknown flag", "abc", "x", true},
		{"bad pattern", "(", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compilePattern(tt.pattern, tt.flags)
			if (err != nil) != tt.wantErr {
				t.Errorf("compilePattern(%q, %q) error = %v, wantErr %v", tt.pattern, tt.flags, err, tt.wantErr)
			}
		})
	}
}
