package history

import (
	"fmt"

	"github.com/haasonsaas/crucible/pkg/models"
)

// Change is one (case, model) pair whose outcome differs between two runs.
type Change struct {
	Case     string  `json:"case"`
	Model    string  `json:"model"`
	OldScore float64 `json:"old_score"`
	NewScore float64 `json:"new_score"`
	Reason   string  `json:"reason,omitempty"`
}

// Comparison is the diff of two sealed traces.
type Comparison struct {
	OldID        string   `json:"old_id"`
	NewID        string   `json:"new_id"`
	Regressions  []Change `json:"regressions"`
	Improvements []Change `json:"improvements"`
	Unchanged    int      `json:"unchanged"`
}

// pairKey identifies a comparable execution across runs.
type pairKey struct {
	testCase string
	model    string
}

// CompareTraces classifies every (case, model) pair present in both traces.
// A pair regresses when the old run passed and the new run failed, and
// improves on the reverse. Errored records count as failures; a record with
// a nil pass and no error is neither passed nor failed, so it can neither
// regress nor improve. Pairs present in only one trace are skipped.
func CompareTraces(oldTrace, newTrace *models.Trace) *Comparison {
	cmp := &Comparison{OldID: oldTrace.ID, NewID: newTrace.ID}

	baseline := make(map[pairKey]*models.ExecutionRecord, len(oldTrace.Results))
	for i := range oldTrace.Results {
		rec := &oldTrace.Results[i]
		baseline[pairKey{rec.Case, rec.ModelKey()}] = rec
	}

	for i := range newTrace.Results {
		rec := &newTrace.Results[i]
		prev, ok := baseline[pairKey{rec.Case, rec.ModelKey()}]
		if !ok {
			continue
		}
		change := Change{
			Case:     rec.Case,
			Model:    rec.ModelKey(),
			OldScore: verdictScore(prev),
			NewScore: verdictScore(rec),
			Reason:   changeReason(rec),
		}
		switch {
		case prev.Passed() && rec.Failed():
			cmp.Regressions = append(cmp.Regressions, change)
		case prev.Failed() && rec.Passed():
			cmp.Improvements = append(cmp.Improvements, change)
		default:
			cmp.Unchanged++
		}
	}
	return cmp
}

func verdictScore(rec *models.ExecutionRecord) float64 {
	if rec.Verdict == nil {
		return 0
	}
	return rec.Verdict.Score
}

func changeReason(rec *models.ExecutionRecord) string {
	if rec.Error != "" {
		return rec.Error
	}
	if rec.Verdict != nil {
		return rec.Verdict.Reason
	}
	return ""
}

// Compare loads two sealed runs by id and diffs them.
func Compare(store *FileStore, oldID, newID string) (*Comparison, error) {
	oldTrace, err := store.Load(oldID)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	newTrace, err := store.Load(newID)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	return CompareTraces(oldTrace, newTrace), nil
}
