package evals

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/crucible/pkg/models"
)

var schemaCache sync.Map

// compileSchema compiles and memoizes a JSON Schema document. Suites reuse
// the same schema across many cases, so compilation cost is paid once.
func compileSchema(schema string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("case.schema.json", schema)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(schema, compiled)
	return compiled, nil
}

// evalJSONSchema validates the first JSON literal in the response against the
// case's JSON Schema. An invalid schema is a scoring failure like an invalid
// regex, never a fault.
func evalJSONSchema(tc *models.TestCase, response string) *models.Verdict {
	compiled, err := compileSchema(tc.Schema)
	if err != nil {
		return failVerdict(TypeJSONSchema, 0, fmt.Sprintf("invalid schema: %v", err))
	}
	raw, ok := extractJSON(response)
	if !ok {
		return failVerdict(TypeJSONSchema, 0, "response contains no JSON literal")
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failVerdict(TypeJSONSchema, 0, fmt.Sprintf("response JSON is malformed: %v", err))
	}
	if err := compiled.Validate(payload); err != nil {
		return failVerdict(TypeJSONSchema, 0, fmt.Sprintf("schema violation: %v", err))
	}
	return passVerdict(TypeJSONSchema, 1, "response satisfies the schema")
}
