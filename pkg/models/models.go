// Package models defines the wire types shared across the harness: test
// cases, completion requests and results, verdicts, execution records, and
// sealed run traces. Everything here is plain data; behavior lives in the
// internal packages that consume it.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Role indicates the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StringList accepts either a scalar or a sequence when decoding, so suite
// authors can write `contains: foo` as well as `contains: [foo, bar]`.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// TestCase declares one prompt and the contract its response is scored
// against. Exactly one expectation family is normally populated; Type pins
// the evaluator explicitly, otherwise it is inferred from the most specific
// populated field. Immutable once loaded.
type TestCase struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
	System string `json:"system,omitempty" yaml:"system,omitempty"`

	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Expected            string         `json:"expected,omitempty" yaml:"expected,omitempty"`
	Contains            StringList     `json:"contains,omitempty" yaml:"contains,omitempty"`
	Pattern             string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	PatternFlags        string         `json:"pattern_flags,omitempty" yaml:"pattern_flags,omitempty"`
	ExpectedTool        string         `json:"expected_tool,omitempty" yaml:"expected_tool,omitempty"`
	ExpectedArgs        StringList     `json:"expected_args,omitempty" yaml:"expected_args,omitempty"`
	ExpectedJSON        map[string]any `json:"expected_json,omitempty" yaml:"expected_json,omitempty"`
	SimilarTo           string         `json:"similar_to,omitempty" yaml:"similar_to,omitempty"`
	SimilarityThreshold float64        `json:"similarity_threshold,omitempty" yaml:"similarity_threshold,omitempty"`
	Safety              bool           `json:"safety,omitempty" yaml:"safety,omitempty"`
	SafetyPatterns      StringList     `json:"safety_patterns,omitempty" yaml:"safety_patterns,omitempty"`
	Criteria            string         `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Reference           string         `json:"reference,omitempty" yaml:"reference,omitempty"`
	Schema              string         `json:"schema,omitempty" yaml:"schema,omitempty"`
	Evaluator           string         `json:"evaluator,omitempty" yaml:"evaluator,omitempty"`

	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// ModelConfig identifies one execution target.
type ModelConfig struct {
	Provider    string   `json:"provider" yaml:"provider"`
	Model       string   `json:"model" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Key returns the provider/model pair as a single string, the form used to
// match records between traces.
func (m ModelConfig) Key() string {
	return m.Provider + "/" + m.Model
}

// ParseModelConfig parses a "provider/model" string as given on the command
// line. The model part may itself contain slashes (bedrock model ARNs do).
func ParseModelConfig(s string) (ModelConfig, error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || provider == "" || model == "" {
		return ModelConfig{}, fmt.Errorf("invalid model spec %q: want provider/model", s)
	}
	return ModelConfig{Provider: provider, Model: model}, nil
}

// CompletionRequest is the normalized (provider, model, messages, sampling)
// tuple the cache and rate limiter key on. The system instruction, when
// present, is carried as a leading system-role message so it participates in
// the fingerprint like any other input.
type CompletionRequest struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is a provider's full response to one request.
type CompletionResult struct {
	Text      string   `json:"text"`
	Usage     Usage    `json:"usage"`
	LatencyMs int64    `json:"latencyMs"`
	Model     string   `json:"model"`
	Provider  string   `json:"provider"`
	Cost      *float64 `json:"cost"` // USD estimate, nil when the model is unpriced
}

// Verdict is the outcome of scoring one response. Pass is nil when the
// evaluation was skipped or inconclusive. Detail carries evaluator-specific
// structure, e.g. the parsed tool call.
type Verdict struct {
	Pass   *bool           `json:"pass"`
	Score  float64         `json:"score"`
	Reason string          `json:"reason,omitempty"`
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Passed reports whether the verdict is an explicit pass.
func (v *Verdict) Passed() bool {
	return v != nil && v.Pass != nil && *v.Pass
}

// ExecutionRecord is the atomic unit appended to a trace: one test case run
// against one model, with everything observed along the way.
type ExecutionRecord struct {
	Case        string            `json:"case"`
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	Result      *CompletionResult `json:"result,omitempty"`
	Verdict     *Verdict          `json:"verdict,omitempty"`
	Error       string            `json:"error,omitempty"`
	Retries     int               `json:"retries"`
	CacheHit    bool              `json:"cache_hit"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Passed reports whether the record's verdict is an explicit pass.
func (r *ExecutionRecord) Passed() bool {
	return r.Error == "" && r.Verdict.Passed()
}

// Failed reports whether the record errored or carries an explicit fail.
// Records with a nil pass are neither passed nor failed.
func (r *ExecutionRecord) Failed() bool {
	if r.Error != "" {
		return true
	}
	return r.Verdict != nil && r.Verdict.Pass != nil && !*r.Verdict.Pass
}

// ModelKey returns the provider/model pair for trace matching.
func (r *ExecutionRecord) ModelKey() string {
	return r.Provider + "/" + r.Model
}

// Summary tallies a full result set. Buckets are disjoint: errored records
// count only as errors, verdicts without an explicit pass count as failed.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

// Summarize folds a result set into its summary counts.
func Summarize(records []ExecutionRecord) Summary {
	var s Summary
	for i := range records {
		r := &records[i]
		s.Total++
		switch {
		case r.Error != "":
			s.Errors++
		case r.Passed():
			s.Passed++
		default:
			s.Failed++
		}
	}
	return s
}

// RunSettings is the slice of configuration captured inside a trace so a run
// can be interpreted later without the config file that produced it.
type RunSettings struct {
	Models       []ModelConfig `json:"models"`
	Concurrency  int           `json:"concurrency"`
	CacheEnabled bool          `json:"cacheEnabled"`
	MaxRetries   int           `json:"maxRetries"`
	JudgeModel   string        `json:"judgeModel,omitempty"`
	Dataset      string        `json:"dataset,omitempty"`
}

// Trace is the immutable record of one evaluation run. Results are appended
// in completion order while the run is live; Seal stamps CompletedAt and the
// summary, after which the trace is never modified.
type Trace struct {
	ID          string            `json:"id"`
	EvalName    string            `json:"evalName"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
	Config      RunSettings       `json:"config"`
	Results     []ExecutionRecord `json:"results"`
	Summary     Summary           `json:"summary"`
}
