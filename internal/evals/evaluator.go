// Package evals scores model responses against declared expectations.
//
// Evaluation is a pure function over (test case, response text) with two
// sanctioned exceptions: the llm_judge variant issues one completion against
// a judge model, and semantic_similarity may call an embedding endpoint.
// Every response is sanitized of reasoning markup before any variant sees it,
// and no failure inside a variant escapes Evaluate as anything but a verdict.
package evals

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

// Evaluator type names. A test case selects one explicitly via its type
// field; otherwise the dispatcher infers one from the populated expectations.
const (
	TypeExactMatch = "exact_match"
	TypeContains   = "contains"
	TypeRegex      = "regex"
	TypeToolCall   = "tool_call"
	TypeJSONMatch  = "json_match"
	TypeJSONSchema = "json_schema"
	TypeLLMJudge   = "llm_judge"
	TypeSimilarity = "semantic_similarity"
	TypeSafety     = "safety"
	TypeCustom     = "custom"
	TypeExistence  = "existence"
)

// typeAliases maps the shorthand names suite authors reach for to the
// canonical evaluator types.
var typeAliases = map[string]string{
	"exact":      TypeExactMatch,
	"substring":  TypeContains,
	"json":       TypeJSONMatch,
	"schema":     TypeJSONSchema,
	"judge":      TypeLLMJudge,
	"criteria":   TypeLLMJudge,
	"similarity": TypeSimilarity,
}

// CompleteFunc issues one completion request. The runner binds it to the same
// rate-limited, cached, retried path ordinary executions take, so judge calls
// are governed by the run's budget like any other.
type CompleteFunc func(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error)

// Embedder produces embeddings for semantic similarity scoring.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Func is a pluggable custom evaluator. Implementations receive the sanitized
// response text and must return a non-nil verdict.
type Func func(ctx context.Context, tc *models.TestCase, response string) *models.Verdict

// Options carries the collaborators an evaluation may need beyond the test
// case and response text. The zero value disables the judge and embedding
// similarity; cases that need them then fail with a descriptive reason.
type Options struct {
	// Judge issues completions against the judge model. Nil means no judge
	// is configured.
	Judge CompleteFunc

	// JudgeProvider and JudgeModel identify the grading model. Both must be
	// set when Judge is.
	JudgeProvider string
	JudgeModel    string

	// JudgeTemperature overrides the judge's sampling temperature.
	// Nil means 0; graders should be deterministic.
	JudgeTemperature *float64

	// Embedder computes embeddings for semantic similarity. When nil,
	// similarity scoring falls back to lexical overlap.
	Embedder Embedder
}

// Dispatcher routes each test case to the evaluator variant its expectations
// call for and guarantees every outcome is a verdict.
type Dispatcher struct {
	opts   Options
	custom map[string]Func
}

// New returns a dispatcher with the built-in evaluator variants.
func New(opts Options) *Dispatcher {
	return &Dispatcher{opts: opts, custom: make(map[string]Func)}
}

// Register installs a custom evaluator under the given name. Test cases
// select it with `evaluator: <name>`.
func (d *Dispatcher) Register(name string, fn Func) {
	d.custom[name] = fn
}

// Evaluate scores a response against a test case. The response is sanitized
// before any variant sees it. Evaluate never panics; a variant that does is
// converted into a failing verdict.
func (d *Dispatcher) Evaluate(ctx context.Context, tc *models.TestCase, response string) (verdict *models.Verdict) {
	typ := ResolveType(tc)
	defer func() {
		if p := recover(); p != nil {
			verdict = failVerdict(typ, 0, fmt.Sprintf("evaluator panic: %v", p))
		}
	}()

	response = Sanitize(response)

	switch typ {
	case TypeExactMatch:
		return evalExact(tc, response)
	case TypeContains:
		return evalContains(tc, response)
	case TypeRegex:
		return evalRegex(tc, response)
	case TypeToolCall:
		return evalToolCall(tc, response)
	case TypeJSONMatch:
		return evalJSONMatch(tc, response)
	case TypeJSONSchema:
		return evalJSONSchema(tc, response)
	case TypeLLMJudge:
		return d.evalJudge(ctx, tc, response)
	case TypeSimilarity:
		return d.evalSimilarity(ctx, tc, response)
	case TypeSafety:
		return evalSafety(tc, response)
	case TypeCustom:
		return d.evalCustom(ctx, tc, response)
	case TypeExistence:
		return evalExistence(tc, response)
	default:
		return skipVerdict(typ, fmt.Sprintf("unknown evaluator type %q", typ))
	}
}

// ResolveType returns the evaluator variant a test case selects. An explicit
// type wins; otherwise the most specific populated expectation decides, tool
// calls first and bare existence last.
func ResolveType(tc *models.TestCase) string {
	if tc.Type != "" {
		typ := strings.ToLower(strings.TrimSpace(tc.Type))
		if canonical, ok := typeAliases[typ]; ok {
			return canonical
		}
		return typ
	}
	switch {
	case tc.Evaluator != "":
		return TypeCustom
	case tc.ExpectedTool != "":
		return TypeToolCall
	case len(tc.ExpectedJSON) > 0:
		return TypeJSONMatch
	case tc.Schema != "":
		return TypeJSONSchema
	case tc.Pattern != "":
		return TypeRegex
	case len(tc.Contains) > 0:
		return TypeContains
	case tc.SimilarTo != "":
		return TypeSimilarity
	case tc.Safety || len(tc.SafetyPatterns) > 0:
		return TypeSafety
	case tc.Expected != "":
		return TypeExactMatch
	case tc.Criteria != "":
		return TypeLLMJudge
	default:
		return TypeExistence
	}
}

func (d *Dispatcher) evalCustom(ctx context.Context, tc *models.TestCase, response string) *models.Verdict {
	if tc.Evaluator == "" {
		return skipVerdict(TypeCustom, "custom evaluation requires an evaluator name")
	}
	fn, ok := d.custom[tc.Evaluator]
	if !ok {
		return skipVerdict(TypeCustom, fmt.Sprintf("no evaluator registered as %q", tc.Evaluator))
	}
	v := fn(ctx, tc, response)
	if v == nil {
		return skipVerdict(TypeCustom, fmt.Sprintf("evaluator %q returned no verdict", tc.Evaluator))
	}
	if v.Type == "" {
		v.Type = tc.Evaluator
	}
	return v
}

// evalExistence is the default contract: any non-empty response passes. The
// dispatcher sanitizes first, so a response that was nothing but reasoning
// markup counts as empty.
func evalExistence(_ *models.TestCase, response string) *models.Verdict {
	if response != "" {
		return passVerdict(TypeExistence, 1, "response is non-empty")
	}
	return failVerdict(TypeExistence, 0, "response is empty")
}

func passVerdict(typ string, score float64, reason string) *models.Verdict {
	pass := true
	return &models.Verdict{Pass: &pass, Score: score, Reason: reason, Type: typ}
}

func failVerdict(typ string, score float64, reason string) *models.Verdict {
	pass := false
	return &models.Verdict{Pass: &pass, Score: score, Reason: reason, Type: typ}
}

// skipVerdict marks an evaluation that could not be performed. Pass stays nil
// so summaries count it as failed without claiming the response was wrong.
func skipVerdict(typ, reason string) *models.Verdict {
	return &models.Verdict{Reason: reason, Type: typ}
}

func boolVerdict(typ string, pass bool, score float64, reason string) *models.Verdict {
	if pass {
		return passVerdict(typ, score, reason)
	}
	return failVerdict(typ, score, reason)
}

// truncate shortens s for use in verdict reasons.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
