package models

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func boolPtr(b bool) *bool { return &b }

func TestParseModelConfig(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		model    string
		wantErr  bool
	}{
		{in: "openai/gpt-4o", provider: "openai", model: "gpt-4o"},
		{in: "bedrock/us.anthropic.claude-sonnet-4-5-20250929-v1:0", provider: "bedrock", model: "us.anthropic.claude-sonnet-4-5-20250929-v1:0"},
		{in: " anthropic/claude-sonnet-4-5 ", provider: "anthropic", model: "claude-sonnet-4-5"},
		{in: "gpt-4o", wantErr: true},
		{in: "/gpt-4o", wantErr: true},
		{in: "openai/", wantErr: true},
	}
	for _, tt := range tests {
		mc, err := ParseModelConfig(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseModelConfig(%q): expected error, got %+v", tt.in, mc)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseModelConfig(%q): %v", tt.in, err)
		}
		if mc.Provider != tt.provider || mc.Model != tt.model {
			t.Errorf("ParseModelConfig(%q) = %s/%s, want %s/%s", tt.in, mc.Provider, mc.Model, tt.provider, tt.model)
		}
	}
}

func TestStringListScalarJSON(t *testing.T) {
	var tc TestCase
	if err := json.Unmarshal([]byte(`{"name":"t","prompt":"p","contains":"Python"}`), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tc.Contains) != 1 || tc.Contains[0] != "Python" {
		t.Errorf("contains = %v, want [Python]", tc.Contains)
	}
}

func TestStringListSequenceYAML(t *testing.T) {
	var tc TestCase
	src := "name: t\nprompt: p\ncontains:\n  - Python\n  - JavaScript\n"
	if err := yaml.Unmarshal([]byte(src), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tc.Contains) != 2 || tc.Contains[0] != "Python" || tc.Contains[1] != "JavaScript" {
		t.Errorf("contains = %v, want [Python JavaScript]", tc.Contains)
	}

	var single TestCase
	if err := yaml.Unmarshal([]byte("name: t\nprompt: p\ncontains: solo\n"), &single); err != nil {
		t.Fatalf("unmarshal scalar: %v", err)
	}
	if len(single.Contains) != 1 || single.Contains[0] != "solo" {
		t.Errorf("contains = %v, want [solo]", single.Contains)
	}
}

func TestSummarizeBuckets(t *testing.T) {
	records := []ExecutionRecord{
		{Case: "a", Verdict: &Verdict{Pass: boolPtr(true), Score: 1}},
		{Case: "b", Verdict: &Verdict{Pass: boolPtr(false)}},
		{Case: "c", Error: "provider unavailable"},
		{Case: "d", Verdict: &Verdict{Pass: nil, Score: 0.5}},
	}
	s := Summarize(records)
	if s.Passed != 1 || s.Failed != 2 || s.Errors != 1 || s.Total != 4 {
		t.Errorf("summary = %+v, want passed=1 failed=2 errors=1 total=4", s)
	}
}

func TestExecutionRecordPassFail(t *testing.T) {
	pass := ExecutionRecord{Verdict: &Verdict{Pass: boolPtr(true)}}
	if !pass.Passed() || pass.Failed() {
		t.Errorf("explicit pass misclassified: passed=%v failed=%v", pass.Passed(), pass.Failed())
	}

	fail := ExecutionRecord{Verdict: &Verdict{Pass: boolPtr(false)}}
	if fail.Passed() || !fail.Failed() {
		t.Errorf("explicit fail misclassified: passed=%v failed=%v", fail.Passed(), fail.Failed())
	}

	errored := ExecutionRecord{Error: "timeout"}
	if errored.Passed() || !errored.Failed() {
		t.Errorf("errored record misclassified: passed=%v failed=%v", errored.Passed(), errored.Failed())
	}

	inconclusive := ExecutionRecord{Verdict: &Verdict{Pass: nil, Score: 0.5}}
	if inconclusive.Passed() || inconclusive.Failed() {
		t.Errorf("nil pass should be neither passed nor failed")
	}

	cached := ExecutionRecord{Error: "oops", Verdict: &Verdict{Pass: boolPtr(true)}}
	if cached.Passed() {
		t.Errorf("record with an error must not count as passed")
	}
}

func TestTraceJSONKeys(t *testing.T) {
	tr := Trace{ID: "20250101T000000.000Z-abcd1234", EvalName: "smoke"}
	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "evalName", "startedAt", "completedAt", "config", "summary"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("trace JSON missing key %q", key)
		}
	}
}
