package evals

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/haasonsaas/crucible/pkg/models"
)

const (
	// judgePassThreshold decides pass/fail when the judge omits its PASS
	// line: a score at or above it passes.
	judgePassThreshold = 0.7

	// judgeFallbackScore stands in when the judge omits its SCORE line.
	judgeFallbackScore = 0.5

	judgeMaxTokens = 256
)

// judgeInstructions is the grading contract sent as the judge's system
// prompt. The rigid three-line reply keeps parsing trivial and forces the
// judge to commit to a score.
const judgeInstructions = `You are an impartial grader. Judge the response strictly against the stated criteria, not against your own preferences.

Reply with exactly three lines and nothing else:
SCORE: <integer 0-100>
PASS: <YES or NO>
REASON: <one sentence>`

// evalJudge delegates grading to a second model. Provider errors, a missing
// judge, and unparseable replies all degrade to verdicts; nothing here aborts
// the run.
func (d *Dispatcher) evalJudge(ctx context.Context, tc *models.TestCase, response string) *models.Verdict {
	if d.opts.Judge == nil {
		return failVerdict(TypeLLMJudge, 0, "no judge model configured")
	}

	req := &models.CompletionRequest{
		Provider: d.opts.JudgeProvider,
		Model:    d.opts.JudgeModel,
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: judgeInstructions},
			{Role: models.RoleUser, Content: buildJudgePrompt(tc, response)},
		},
		Temperature: judgeTemperature(d.opts.JudgeTemperature),
		MaxTokens:   judgeMaxTokens,
	}
	result, err := d.opts.Judge(ctx, req)
	if err != nil {
		return failVerdict(TypeLLMJudge, 0, fmt.Sprintf("judge call failed: %v", err))
	}
	if result == nil {
		return failVerdict(TypeLLMJudge, 0, "judge returned no result")
	}

	score, pass, reason := parseJudgeReply(Sanitize(result.Text))
	return boolVerdict(TypeLLMJudge, pass, score, reason)
}

func judgeTemperature(override *float64) *float64 {
	if override != nil {
		return override
	}
	zero := 0.0
	return &zero
}

func buildJudgePrompt(tc *models.TestCase, response string) string {
	criteria := tc.Criteria
	if criteria == "" {
		criteria = "The response correctly and helpfully answers the prompt."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Criteria: %s\n\n", criteria)
	fmt.Fprintf(&b, "Original prompt:\n%s\n\n", tc.Prompt)
	if tc.Reference != "" {
		fmt.Fprintf(&b, "Reference answer:\n%s\n\n", tc.Reference)
	}
	fmt.Fprintf(&b, "Response to grade:\n%s\n", response)
	return b.String()
}

// parseJudgeReply extracts the SCORE / PASS / REASON lines from a judge
// reply. Judges that ignore the format degrade gracefully: a missing score
// becomes 0.5 and a missing pass line falls back to the score threshold.
func parseJudgeReply(text string) (score float64, pass bool, reason string) {
	var haveScore, havePass bool
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "SCORE:"):
			raw := strings.TrimSpace(line[len("SCORE:"):])
			raw = strings.TrimSuffix(raw, "%")
			if n, err := strconv.ParseFloat(raw, 64); err == nil {
				score = clamp(n/100, 0, 1)
				haveScore = true
			}
		case strings.HasPrefix(upper, "PASS:"):
			raw := strings.ToUpper(strings.TrimSpace(line[len("PASS:"):]))
			switch {
			case strings.HasPrefix(raw, "YES"):
				pass, havePass = true, true
			case strings.HasPrefix(raw, "NO"):
				pass, havePass = false, true
			}
		case strings.HasPrefix(upper, "REASON:") && reason == "":
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}
	if !haveScore {
		score = judgeFallbackScore
	}
	if !havePass {
		pass = score >= judgePassThreshold
	}
	if reason == "" {
		reason = fmt.Sprintf("judge scored %.2f", score)
	}
	return score, pass, reason
}
