package evals

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

// ToolCall is a tool invocation parsed out of a response.
type ToolCall struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// NoToolCall is the sentinel name recorded when the model explicitly declines
// to call a tool. A case expecting it asserts the model knew not to reach for
// one.
const NoToolCall = "none"

// Recognized call syntaxes, tried in order. First match wins.
//
//	TOOL: get_weather(Tokyo, celsius)          labeled call
//	```tool
//	get_weather(Tokyo, celsius)                fenced block
//	```
//	{"tool": "get_weather", "args": {...}}     structured object
var (
	labeledCall = regexp.MustCompile(`(?i)\bTOOL:\s*([A-Za-z0-9_.-]+)\s*\(([^)]*)\)`)
	fencedCall  = regexp.MustCompile("(?is)```tool\\s+(.*?)```")
	callExpr    = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*\(([^)]*)\)$`)
	noToolText  = regexp.MustCompile(`(?i)\bno\s+(?:tool|function)s?\b|\bwithout\s+(?:a\s+|any\s+)?(?:tool|function)s?\b|\bdon'?t\s+need\s+(?:a\s+|any\s+)?(?:tool|function)s?\b`)
)

// ParseToolCall extracts the first recognizable tool invocation from response
// text. It reports false when no syntax matches and the text does not
// explicitly decline to use a tool.
func ParseToolCall(text string) (*ToolCall, bool) {
	if m := labeledCall.FindStringSubmatch(text); m != nil {
		return &ToolCall{Name: m[1], Args: splitArgs(m[2])}, true
	}
	if m := fencedCall.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if cm := callExpr.FindStringSubmatch(body); cm != nil {
			return &ToolCall{Name: cm[1], Args: splitArgs(cm[2])}, true
		}
		// A fence may hold just the tool name.
		if body != "" && !strings.ContainsAny(body, "\n(") {
			return &ToolCall{Name: body}, true
		}
	}
	if call, ok := parseStructuredCall(text); ok {
		return call, true
	}
	if noToolText.MatchString(text) {
		return &ToolCall{Name: NoToolCall}, true
	}
	return nil, false
}

func splitArgs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			args = append(args, p)
		}
	}
	return args
}

// parseStructuredCall reads a tool invocation expressed as a JSON object with
// a tool/name/function key. Argument keys are tried in the order tool-calling
// APIs tend to emit them.
func parseStructuredCall(text string) (*ToolCall, bool) {
	literal, ok := extractJSON(text)
	if !ok || literal[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(literal, &obj); err != nil {
		return nil, false
	}
	var name string
	for _, key := range []string{"tool", "name", "function"} {
		if s, ok := obj[key].(string); ok && s != "" {
			name = s
			break
		}
	}
	if name == "" {
		return nil, false
	}
	call := &ToolCall{Name: name}
	for _, key := range []string{"args", "arguments", "parameters"} {
		if v, ok := obj[key]; ok {
			call.Args = flattenArgs(v)
			break
		}
	}
	return call, true
}

// flattenArgs renders structured argument values as strings so expected args
// match by substring regardless of which call syntax the model used. Map keys
// are sorted for deterministic output.
func flattenArgs(v any) []string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]string, 0, len(val))
		for _, k := range keys {
			args = append(args, fmt.Sprintf("%s=%v", k, val[k]))
		}
		return args
	case []any:
		args := make([]string, 0, len(val))
		for _, item := range val {
			args = append(args, fmt.Sprintf("%v", item))
		}
		return args
	case string:
		return []string{val}
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%v", val)}
	}
}

// evalToolCall scores the parsed call additively: half for the right tool
// name, half for every expected argument appearing as a case-insensitive
// substring of some parsed argument. Both halves must hold to pass.
func evalToolCall(tc *models.TestCase, response string) *models.Verdict {
	call, ok := ParseToolCall(response)
	if !ok {
		return failVerdict(TypeToolCall, 0, "no tool call found in response")
	}

	nameOK := strings.EqualFold(call.Name, tc.ExpectedTool)
	var missing []string
	for _, want := range tc.ExpectedArgs {
		if !argMatched(want, call.Args) {
			missing = append(missing, want)
		}
	}
	argsOK := len(missing) == 0

	score := 0.0
	if nameOK {
		score += 0.5
	}
	if argsOK {
		score += 0.5
	}

	v := boolVerdict(TypeToolCall, nameOK && argsOK, score, toolReason(tc, call, nameOK, missing))
	if detail, err := json.Marshal(call); err == nil {
		v.Detail = detail
	}
	return v
}

func argMatched(want string, args []string) bool {
	want = strings.ToLower(want)
	for _, arg := range args {
		if strings.Contains(strings.ToLower(arg), want) {
			return true
		}
	}
	return false
}

func toolReason(tc *models.TestCase, call *ToolCall, nameOK bool, missing []string) string {
	if !nameOK {
		return fmt.Sprintf("expected tool %q, got %q", tc.ExpectedTool, call.Name)
	}
	if len(missing) > 0 {
		return fmt.Sprintf("tool %q called without %s", call.Name, quoteList(missing))
	}
	return fmt.Sprintf("tool %q called as expected", call.Name)
}
