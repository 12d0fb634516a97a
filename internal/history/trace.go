// Package history persists sealed run traces and answers questions about
// past runs: listing them, loading them, and diffing two of them for
// regressions.
//
// The JSON artifacts written by FileStore are the canonical record. The
// sqlite index is a convenience for listings and can always be rebuilt by
// re-recording the artifacts, so every index failure is survivable.
package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/crucible/internal/observability"
	"github.com/haasonsaas/crucible/pkg/models"
)

// NewRunID returns a fresh run identifier: a UTC timestamp so ids sort
// chronologically, plus a short random suffix so two runs started in the
// same millisecond stay distinct.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format("20060102T150405.000Z") + "-" + suffix
}

// Recorder accumulates execution records for one run and seals them into an
// immutable trace. Append is safe for concurrent use; the runner emits
// records from a single goroutine today, but nothing here depends on that.
type Recorder struct {
	store  *FileStore
	index  *Index
	logger *observability.Logger

	mu     sync.Mutex
	trace  *models.Trace
	sealed bool
}

// NewRecorder creates a recorder persisting through store and, when index is
// non-nil, mirroring run summaries into it.
func NewRecorder(store *FileStore, index *Index, logger *observability.Logger) *Recorder {
	return &Recorder{store: store, index: index, logger: logger}
}

// Create opens a new trace and returns its id. Creating over an unsealed
// trace discards it.
func (r *Recorder) Create(evalName string, settings models.RunSettings) string {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = &models.Trace{
		ID:        NewRunID(now),
		EvalName:  evalName,
		StartedAt: now,
		Config:    settings,
	}
	r.sealed = false
	return r.trace.ID
}

// Append adds one record to the live trace. Records arriving before Create
// or after Seal are dropped. A record with no completion time is stamped on
// the way in.
func (r *Recorder) Append(rec models.ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trace == nil || r.sealed {
		return
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	r.trace.Results = append(r.trace.Results, rec)
}

// Seal stamps the completion time, computes the summary from the appended
// records, writes the artifact, and mirrors the run into the index. Index
// failures are logged and swallowed; only the artifact write fails a seal.
// Sealing an already sealed run returns the existing trace.
func (r *Recorder) Seal() (*models.Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trace == nil {
		return nil, fmt.Errorf("no run in progress")
	}
	if r.sealed {
		return r.trace, nil
	}

	r.trace.CompletedAt = time.Now().UTC()
	r.trace.Summary = models.Summarize(r.trace.Results)

	if err := r.store.Save(r.trace); err != nil {
		return nil, fmt.Errorf("save trace: %w", err)
	}
	r.sealed = true

	if r.index != nil {
		if err := r.index.Record(r.trace, r.store.Path(r.trace.ID)); err != nil {
			r.logf("run index update failed", "run_id", r.trace.ID, "error", err)
		}
	}
	return r.trace, nil
}

func (r *Recorder) logf(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(context.Background(), msg, args...)
	}
}
