package evals

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "The answer is Paris.", "The answer is Paris."},
		{"think span removed", "<think>Let me work this out.</think>The answer is Paris.", "The answer is Paris."},
		{"reasoning span removed", "<reasoning>chain of thought</reasoning>42", "42"},
		{"uppercase tags", "<THINK>loud thoughts</THINK>done", "done"},
		{"mixed case tags", "<Reasoning>hmm</Reasoning>ok", "ok"},
		{"multiline span", "<think>line one\nline two</think>result", "result"},
		{"multiple spans", "<think>a</think>one<think>b</think> two", "one two"},
		{"both forms", "<think>a</think><reasoning>b</reasoning>text", "text"},
		{"unclosed trailing think", "Paris.<think>and now the model rambles", "Paris."},
		{"unclosed trailing reasoning", "done<reasoning>truncated midw", "done"},
		{"only markup leaves empty", "<think>everything was reasoning</think>", ""},
		{"surrounding whitespace trimmed", "  <think>x</think>  hi  ", "hi"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
