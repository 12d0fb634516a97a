// Package runner drives evaluation runs end to end. It expands the case and
// target lists into executions, pushes each one through the cache, rate-limit
// admission, retry, and provider layers, scores the response, and returns the
// records in completion order.
//
// The runner owns the evaluator dispatcher so that judge completions travel
// the same governed path as primary completions.
package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/haasonsaas/crucible/internal/backoff"
	"github.com/haasonsaas/crucible/internal/cache"
	"github.com/haasonsaas/crucible/internal/evals"
	catalog "github.com/haasonsaas/crucible/internal/models"
	"github.com/haasonsaas/crucible/internal/observability"
	"github.com/haasonsaas/crucible/internal/providers"
	"github.com/haasonsaas/crucible/internal/ratelimit"
	"github.com/haasonsaas/crucible/pkg/models"
)

// Judge identifies the model that grades llm_judge cases. The zero value
// leaves judge-based cases failing with a descriptive verdict.
type Judge struct {
	Provider    string
	Model       string
	Temperature *float64
}

// Configured reports whether a judge target is set.
func (j Judge) Configured() bool {
	return j.Provider != "" && j.Model != ""
}

// Options assembles a Runner. Providers is the only collaborator a useful
// runner needs; every other field has a working default so tests can construct
// runners piecemeal.
type Options struct {
	// Providers resolves provider names to backends. Nil behaves like an
	// empty registry: every execution fails as a configuration error.
	Providers *providers.Registry

	// Cache is the response cache. Nil disables caching.
	Cache *cache.Cache

	// Limiter gates provider calls. Nil disables admission control.
	Limiter *ratelimit.Limiter

	// Logger, Metrics, and Tracer observe the run. Nil values mean silent,
	// unrecorded, and untraced respectively.
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Judge is the grading model for llm_judge cases.
	Judge Judge

	// Concurrency is the window size for parallel execution; 1 or less runs
	// sequentially.
	Concurrency int

	// Timeout bounds each provider attempt. Zero means no per-call deadline.
	Timeout time.Duration

	// MaxRetries and Retry set the schedule for transient provider failures.
	// A zero Retry policy selects the default schedule.
	MaxRetries int
	Retry      backoff.Policy

	// Temperature and MaxTokens apply when neither the test case nor the
	// target overrides them.
	Temperature *float64
	MaxTokens   int

	// OnRecord observes each record as it completes, in emission order. The
	// CLI uses it for the progress line and the trace recorder.
	OnRecord func(models.ExecutionRecord)
}

// Runner executes (test case, target) pairs and produces one ExecutionRecord
// per pair. Safe for a single Run at a time.
type Runner struct {
	providers *providers.Registry
	evals     *evals.Dispatcher
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	opts      Options
}

// New builds a runner and its evaluator dispatcher. The judge completion
// function and the embedding collaborator are wired here so evaluation stays
// pure from the dispatcher's point of view.
func New(opts Options) *Runner {
	if opts.Providers == nil {
		opts.Providers = providers.NewRegistry()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.Options{Enabled: false})
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.DefaultLimits(), nil, false)
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{Output: io.Discard})
	}
	if opts.Tracer == nil {
		opts.Tracer, _ = observability.NewTracer(observability.TraceConfig{})
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Retry == (backoff.Policy{}) {
		opts.Retry = backoff.DefaultPolicy()
	}

	r := &Runner{
		providers: opts.Providers,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		opts:      opts,
	}

	if r.metrics != nil && r.limiter.OnWait == nil {
		r.limiter.OnWait = func(provider string, waited time.Duration) {
			r.metrics.RecordRateLimitWait(provider, waited.Seconds())
		}
	}

	eopts := evals.Options{Embedder: r.embedder()}
	if opts.Judge.Configured() {
		eopts.Judge = r.judgeComplete
		eopts.JudgeProvider = opts.Judge.Provider
		eopts.JudgeModel = opts.Judge.Model
		eopts.JudgeTemperature = opts.Judge.Temperature
	}
	r.evals = evals.New(eopts)

	return r
}

// RegisterEvaluator installs a custom evaluator; test cases select it with
// `evaluator: <name>`.
func (r *Runner) RegisterEvaluator(name string, fn evals.Func) {
	r.evals.Register(name, fn)
}

// embedder returns the embedding collaborator for semantic similarity, if a
// configured provider offers one.
func (r *Runner) embedder() evals.Embedder {
	p, err := r.providers.Get("openai")
	if err != nil {
		return nil
	}
	if emb, ok := p.(evals.Embedder); ok {
		return emb
	}
	return nil
}

// workItem is one (test case, target) execution.
type workItem struct {
	tc     models.TestCase
	target models.ModelConfig
}

func buildWork(cases []models.TestCase, targets []models.ModelConfig) []workItem {
	work := make([]workItem, 0, len(cases)*len(targets))
	for _, tc := range cases {
		for _, target := range targets {
			work = append(work, workItem{tc: tc, target: target})
		}
	}
	return work
}

// Run executes every case against every target and returns one record per
// pair. Records are emitted to OnRecord in the same order they appear in the
// returned slice. Run never aborts mid-flight: provider and configuration
// failures become errored records, not early returns.
func (r *Runner) Run(ctx context.Context, cases []models.TestCase, targets []models.ModelConfig) []models.ExecutionRecord {
	work := buildWork(cases, targets)
	if len(work) == 0 {
		return nil
	}

	r.logger.Info(ctx, "run starting",
		"cases", len(cases),
		"targets", len(targets),
		"executions", len(work),
		"concurrency", r.opts.Concurrency,
	)

	if r.opts.Concurrency <= 1 {
		return r.runSequential(ctx, work)
	}
	return r.runWindowed(ctx, work)
}

func (r *Runner) runSequential(ctx context.Context, work []workItem) []models.ExecutionRecord {
	out := make([]models.ExecutionRecord, 0, len(work))
	for _, item := range work {
		rec := r.execute(ctx, item)
		out = append(out, rec)
		r.emit(rec)
	}
	return out
}

// runWindowed executes work in fixed-size windows. Every goroutine in a
// window finishes before the next window starts, which bounds in-flight
// provider calls at the window size. Records keep work-list order within each
// window.
func (r *Runner) runWindowed(ctx context.Context, work []workItem) []models.ExecutionRecord {
	out := make([]models.ExecutionRecord, 0, len(work))
	for start := 0; start < len(work); start += r.opts.Concurrency {
		window := work[start:min(start+r.opts.Concurrency, len(work))]
		records := make([]models.ExecutionRecord, len(window))

		var wg sync.WaitGroup
		for i, item := range window {
			wg.Add(1)
			go func() {
				defer wg.Done()
				records[i] = r.execute(ctx, item)
			}()
		}
		wg.Wait()

		for _, rec := range records {
			out = append(out, rec)
			r.emit(rec)
		}
	}
	return out
}

func (r *Runner) emit(rec models.ExecutionRecord) {
	if r.opts.OnRecord != nil {
		r.opts.OnRecord(rec)
	}
}

// execute runs one pair through the full pipeline and always returns a
// record: errors land in the record's Error field.
func (r *Runner) execute(ctx context.Context, item workItem) models.ExecutionRecord {
	ctx = observability.WithCase(ctx, item.tc.Name)
	ctx = observability.WithModel(ctx, item.target.Key())
	ctx, span := r.tracer.TraceExecution(ctx, item.tc.Name, item.target.Provider, item.target.Model)
	defer span.End()

	rec := models.ExecutionRecord{
		Case:     item.tc.Name,
		Provider: item.target.Provider,
		Model:    item.target.Model,
	}

	req := r.buildRequest(&item.tc, item.target)
	out := r.complete(ctx, req)
	rec.Result = out.result
	rec.Retries = out.retries
	rec.CacheHit = out.cacheHit

	if r.metrics != nil {
		r.metrics.RecordRetries(item.target.Provider, out.retries)
	}

	if out.err != nil {
		rec.Error = out.err.Error()
		rec.CompletedAt = time.Now().UTC()
		r.tracer.RecordError(span, out.err)
		if r.metrics != nil {
			r.metrics.RecordExecution(item.target.Provider, item.target.Model, "error")
		}
		r.logger.Error(ctx, "execution errored", "retries", out.retries, "error", out.err)
		return rec
	}

	rec.Verdict = r.evals.Evaluate(ctx, &item.tc, out.result.Text)
	rec.CompletedAt = time.Now().UTC()

	status := "fail"
	if rec.Passed() {
		status = "pass"
	}
	if r.metrics != nil {
		r.metrics.RecordExecution(item.target.Provider, item.target.Model, status)
	}
	r.tracer.SetAttributes(span,
		"status", status,
		"score", rec.Verdict.Score,
		"cache_hit", out.cacheHit,
		"retries", out.retries,
	)
	r.logger.Info(ctx, "execution complete",
		"status", status,
		"score", rec.Verdict.Score,
		"cache_hit", out.cacheHit,
		"retries", out.retries,
	)
	return rec
}

// buildRequest normalizes one pair into the request the cache and limiter key
// on. Sampling parameters resolve case first, then target, then run defaults.
func (r *Runner) buildRequest(tc *models.TestCase, target models.ModelConfig) *models.CompletionRequest {
	req := &models.CompletionRequest{
		Provider: target.Provider,
		Model:    target.Model,
	}
	if tc.System != "" {
		req.Messages = append(req.Messages, models.Message{Role: models.RoleSystem, Content: tc.System})
	}
	req.Messages = append(req.Messages, models.Message{Role: models.RoleUser, Content: tc.Prompt})

	switch {
	case tc.Temperature != nil:
		req.Temperature = tc.Temperature
	case target.Temperature != nil:
		req.Temperature = target.Temperature
	default:
		req.Temperature = r.opts.Temperature
	}
	switch {
	case tc.MaxTokens > 0:
		req.MaxTokens = tc.MaxTokens
	case target.MaxTokens > 0:
		req.MaxTokens = target.MaxTokens
	default:
		req.MaxTokens = r.opts.MaxTokens
	}
	return req
}

// outcome carries one completed request back to the record builder.
type outcome struct {
	result   *models.CompletionResult
	err      error
	retries  int
	cacheHit bool
}

// complete resolves one request: cache first, then the provider behind
// admission control and the retry schedule. Successful responses are priced
// and written back to the cache. The judge path enters here too, so judge
// calls share the run's cache and budget.
func (r *Runner) complete(ctx context.Context, req *models.CompletionRequest) outcome {
	key := cache.Fingerprint(req)
	if result, ok := r.cache.Get(key); ok {
		if r.metrics != nil {
			r.metrics.RecordCacheLookup(true)
		}
		r.logger.Debug(ctx, "cache hit", "key", cache.DisplayKey(key))
		return outcome{result: result, cacheHit: true}
	}
	if r.metrics != nil {
		r.metrics.RecordCacheLookup(false)
	}

	provider, err := r.providers.Get(req.Provider)
	if err != nil {
		// Configuration error: the provider will not appear between
		// attempts, so retrying is pointless.
		return outcome{err: err}
	}

	estimate := providers.EstimateTokens(req)
	res, err := backoff.Retry(ctx, r.opts.Retry, r.opts.MaxRetries, providers.IsRetryable,
		func(attempt int) (*models.CompletionResult, error) {
			return r.attempt(ctx, provider, req, estimate, attempt)
		})
	if err != nil {
		return outcome{err: err, retries: res.Retries}
	}

	result := res.Value
	if result == nil {
		return outcome{err: fmt.Errorf("provider %s returned no result", req.Provider), retries: res.Retries}
	}
	r.price(req, result)
	r.cache.Put(key, result)
	return outcome{result: result, retries: res.Retries}
}

// attempt is one provider call under admission control and the per-call
// timeout.
func (r *Runner) attempt(ctx context.Context, p providers.Provider, req *models.CompletionRequest, estimate, attempt int) (*models.CompletionResult, error) {
	callCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	callCtx, span := r.tracer.TraceProviderRequest(callCtx, req.Provider, req.Model)
	defer span.End()

	start := time.Now()
	result, err := r.limiter.Admit(callCtx, req.Provider, estimate, func(ctx context.Context) (*models.CompletionResult, error) {
		return p.Complete(ctx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		r.tracer.RecordError(span, err)
		if r.metrics != nil {
			r.metrics.RecordProviderRequest(req.Provider, req.Model, "error", elapsed.Seconds(), 0, 0)
		}
		r.logger.Warn(ctx, "provider call failed", "attempt", attempt, "error", err)
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordProviderRequest(req.Provider, req.Model, "success", elapsed.Seconds(),
			result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}
	return result, nil
}

// price fills in the catalog cost estimate for results the provider returned
// unpriced. Uncataloged models stay nil, distinguishable from free.
func (r *Runner) price(req *models.CompletionRequest, result *models.CompletionResult) {
	if result.Cost != nil {
		return
	}
	model := result.Model
	if model == "" {
		model = req.Model
	}
	result.Cost = catalog.Cost(model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
}

// judgeComplete routes judge completions through the shared pipeline.
func (r *Runner) judgeComplete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	out := r.complete(ctx, req)
	return out.result, out.err
}
