package evals

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/haasonsaas/crucible/pkg/models"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{
			name:     "labeled call",
			text:     "TOOL: get_weather(Tokyo)",
			wantName: "get_weather",
			wantArgs: []string{"Tokyo"},
			wantOK:   true,
		},
		{
			name:     "labeled call lowercase",
			text:     "I will use a tool.\ntool: search_web(golang generics)",
			wantName: "search_web",
			wantArgs: []string{"golang generics"},
			wantOK:   true,
		},
		{
			name:     "labeled call multiple args",
			text:     `TOOL: get_weather("Tokyo", celsius)`,
			wantName: "get_weather",
			wantArgs: []string{"Tokyo", "celsius"},
			wantOK:   true,
		},
		{
			name:     "labeled call no args",
			text:     "TOOL: list_files()",
			wantName: "list_files",
			wantOK:   true,
		},
		{
			name:     "fenced call",
			text:     "Here you go:\n```tool\nget_weather(Tokyo, celsius)\n```\nDone.",
			wantName: "get_weather",
			wantArgs: []string{"Tokyo", "celsius"},
			wantOK:   true,
		},
		{
			name:     "fenced name only",
			text:     "```tool\nsearch\n```",
			wantName: "search",
			wantOK:   true,
		},
		{
			name:     "structured object",
			text:     `I'll call it: {"tool": "get_weather", "args": {"city": "Tokyo"}}`,
			wantName: "get_weather",
			wantArgs: []string{"city=Tokyo"},
			wantOK:   true,
		},
		{
			name:     "structured with arguments array",
			text:     `{"name": "calculator", "arguments": ["2", "3"]}`,
			wantName: "calculator",
			wantArgs: []string{"2", "3"},
			wantOK:   true,
		},
		{
			name:     "labeled wins over structured",
			text:     `TOOL: first(a) and also {"tool": "second"}`,
			wantName: "first",
			wantArgs: []string{"a"},
			wantOK:   true,
		},
		{
			name:     "explicit decline",
			text:     "No tool needed, the answer is 4.",
			wantName: NoToolCall,
			wantOK:   true,
		},
		{
			name:     "decline variant",
			text:     "I can answer this without a tool.",
			wantName: NoToolCall,
			wantOK:   true,
		},
		{
			name:   "no call at all",
			text:   "The weather in Tokyo is sunny.",
			wantOK: false,
		},
		{
			name:   "json without tool key",
			text:   `{"status": "ok"}`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := ParseToolCall(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if call.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", call.Name, tt.wantName)
			}
			if !reflect.DeepEqual(call.Args, tt.wantArgs) {
				t.Errorf("Args = %v, want %v", call.Args, tt.wantArgs)
			}
		})
	}
}

func TestEvalToolCall(t *testing.T) {
	tests := []struct {
		name      string
		tc        models.TestCase
		response  string
		wantPass  bool
		wantScore float64
	}{
		{
			name:      "name and args match",
			tc:        models.TestCase{ExpectedTool: "get_weather", ExpectedArgs: models.StringList{"Tokyo"}},
			response:  "TOOL: get_weather(Tokyo)",
			wantPass:  true,
			wantScore: 1.0,
		},
		{
			name:      "name match case insensitive",
			tc:        models.TestCase{ExpectedTool: "Get_Weather"},
			response:  "TOOL: get_weather(Tokyo)",
			wantPass:  true,
			wantScore: 1.0,
		},
		{
			name:      "wrong tool right args",
			tc:        models.TestCase{ExpectedTool: "search_web", ExpectedArgs: models.StringList{"Tokyo"}},
			response:  "TOOL: get_weather(Tokyo)",
			wantPass:  false,
			wantScore: 0.5,
		},
		{
			name:      "right tool missing arg",
			tc:        models.TestCase{ExpectedTool: "get_weather", ExpectedArgs: models.StringList{"Osaka"}},
			response:  "TOOL: get_weather(Tokyo)",
			wantPass:  false,
			wantScore: 0.5,
		},
		{
			name:      "arg matched by substring",
			tc:        models.TestCase{ExpectedTool: "get_weather", ExpectedArgs: models.StringList{"tokyo"}},
			response:  `{"tool": "get_weather", "args": {"city": "Tokyo, Japan"}}`,
			wantPass:  true,
			wantScore: 1.0,
		},
		{
			name:      "expected decline honored",
			tc:        models.TestCase{ExpectedTool: NoToolCall},
			response:  "No tool needed here.",
			wantPass:  true,
			wantScore: 1.0,
		},
		{
			name:      "nothing parseable",
			tc:        models.TestCase{ExpectedTool: "get_weather"},
			response:  "It is sunny in Tokyo.",
			wantPass:  false,
			wantScore: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := evalToolCall(&tt.tc, tt.response)
			if v.Passed() != tt.wantPass {
				t.Errorf("pass = %v, want %v (%s)", v.Passed(), tt.wantPass, v.Reason)
			}
			if v.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", v.Score, tt.wantScore)
			}
		})
	}
}

func TestEvalToolCallDetail(t *testing.T) {
	tc := &models.TestCase{ExpectedTool: "get_weather", ExpectedArgs: models.StringList{"Tokyo"}}
	v := evalToolCall(tc, "TOOL: get_weather(Tokyo)")
	if len(v.Detail) == 0 {
		t.Fatal("expected the parsed call in Detail")
	}
	var call ToolCall
	if err := json.Unmarshal(v.Detail, &call); err != nil {
		t.Fatalf("Detail is not a ToolCall: %v", err)
	}
	if call.Name != "get_weather" || len(call.Args) != 1 || call.Args[0] != "Tokyo" {
		t.Errorf("Detail = %+v, want the parsed call", call)
	}
}

func TestEvalToolCallWrongNameReason(t *testing.T) {
	tc := &models.TestCase{ExpectedTool: "search_web"}
	v := evalToolCall(tc, "TOOL: get_weather(Tokyo)")
	if !strings.Contains(v.Reason, "search_web") || !strings.Contains(v.Reason, "get_weather") {
		t.Errorf("Reason = %q, want both tool names", v.Reason)
	}
}

func TestFlattenArgs(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"map sorted by key", map[string]any{"unit": "c", "city": "Tokyo"}, []string{"city=Tokyo", "unit=c"}},
		{"array", []any{"a", float64(2)}, []string{"a", "2"}},
		{"string", "single", []string{"single"}},
		{"number", float64(7), []string{"7"}},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flattenArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("flattenArgs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
