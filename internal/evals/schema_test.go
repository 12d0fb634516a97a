package evals

import (
	"strings"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
)

const personSchema = `{
  "type": "object",
  "required": ["name", "age"],
  "properties": {
    "name": { "type": "string", "minLength": 1 },
    "age": { "type": "integer", "minimum": 0 }
  }
}`

func TestEvalJSONSchema(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantPass bool
		reason   string
	}{
		{
			name:     "valid payload",
			response: `{"name": "Ada", "age": 36}`,
			wantPass: true,
		},
		{
			name:     "valid payload in prose",
			response: `Here's the record: {"name": "Ada", "age": 36} as JSON.`,
			wantPass: true,
		},
		{
			name:     "missing required field",
			response: `{"name": "Ada"}`,
			wantPass: false,
			reason:   "schema violation",
		},
		{
			name:     "wrong type",
			response: `{"name": "Ada", "age": "thirty-six"}`,
			wantPass: false,
			reason:   "schema violation",
		},
		{
			name:     "no json at all",
			response: "Ada is 36 years old.",
			wantPass: false,
			reason:   "no JSON literal",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &models.TestCase{Schema: personSchema}
			v := evalJSONSchema(tc, tt.response)
			if v.Passed() != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", v.Passed(), tt.wantPass, v.Reason)
			}
			if tt.reason != "" && !strings.Contains(v.Reason, tt.reason) {
				t.Errorf("Reason = %q, want it to contain %q", v.Reason, tt.reason)
			}
		})
	}
}

func TestEvalJSONSchemaInvalidSchema(t *testing.T) {
	tc := &models.TestCase{Schema: `{"type": "not-a-real-type"}`}
	v := evalJSONSchema(tc, `{"x": 1}`)
	if v.Passed() {
		t.Fatal("invalid schema must not pass")
	}
	if v.Pass == nil || *v.Pass {
		t.Errorf("Pass = %v, want explicit false", v.Pass)
	}
	if !strings.Contains(v.Reason, "invalid schema") {
		t.Errorf("Reason = %q, want invalid schema explanation", v.Reason)
	}
}

func TestEvalJSONSchemaViaDispatch(t *testing.T) {
	d := New(Options{})
	tc := &models.TestCase{Schema: personSchema}

	v := d.Evaluate(t.Context(), tc, `{"name": "Ada", "age": 36}`)
	if !v.Passed() || v.Type != TypeJSONSchema {
		t.Fatalf("verdict = %+v, want a json_schema pass", v)
	}
}
