package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/haasonsaas/crucible/internal/backoff"
	"github.com/haasonsaas/crucible/internal/cache"
	"github.com/haasonsaas/crucible/internal/config"
	"github.com/haasonsaas/crucible/internal/dataset"
	"github.com/haasonsaas/crucible/internal/history"
	catalog "github.com/haasonsaas/crucible/internal/models"
	"github.com/haasonsaas/crucible/internal/observability"
	"github.com/haasonsaas/crucible/internal/providers"
	"github.com/haasonsaas/crucible/internal/providers/bedrock"
	"github.com/haasonsaas/crucible/internal/ratelimit"
	"github.com/haasonsaas/crucible/internal/report"
	"github.com/haasonsaas/crucible/internal/runner"
	"github.com/haasonsaas/crucible/pkg/models"
)

// =============================================================================
// Run Command Handler
// =============================================================================

// runOverrides carries the run command's flag values into the handler. Zero
// values mean "use the config".
type runOverrides struct {
	models      []string
	concurrency int
	noCache     bool
	judge       string
	output      string
	compareTo   string
}

func runRun(cmd *cobra.Command, configPath, suitePath string, o runOverrides) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format, err := report.ParseFormat(o.output)
	if err != nil {
		return err
	}

	suite, err := dataset.Load(suitePath)
	if err != nil {
		return err
	}

	targets, err := resolveTargets(cfg, o.models)
	if err != nil {
		return err
	}

	judge, err := resolveJudge(cfg, o.judge)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Output:    cmd.ErrOrStderr(),
	})

	registry := buildRegistry(cfg, logger)
	for _, target := range targets {
		p, ok := registry.Lookup(target.Provider)
		if !ok {
			return fmt.Errorf("provider %q is not configured (known: %v)", target.Provider, registry.Names())
		}
		if !p.Available() {
			logger.Warn(cmd.Context(), "provider has no credentials, its executions will fail",
				"provider", target.Provider)
		}
	}
	warnDeprecated(logger, targets)

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "crucible",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn(context.Background(), "trace exporter shutdown failed", "error", err)
		}
	}()

	metrics := observability.NewMetrics()
	stopMetrics := serveMetrics(cfg.Metrics.Listen, logger)
	defer stopMetrics()

	cacheOn := cfg.Cache.On() && !o.noCache
	responses := cache.New(cache.Options{
		Dir:     cfg.Cache.Dir,
		TTL:     cfg.Cache.TTL,
		Enabled: cacheOn,
		Logger:  logger,
	})

	store := history.NewFileStore(cfg.History.Dir)
	index := openIndex(cfg, logger)
	if index != nil {
		defer index.Close()
	}
	recorder := history.NewRecorder(store, index, logger)

	concurrency := cfg.Run.Concurrency
	if o.concurrency > 0 {
		concurrency = o.concurrency
	}

	progress := newProgress(cmd.ErrOrStderr(), len(suite.Cases)*len(targets))

	r := runner.New(runner.Options{
		Providers:   registry,
		Cache:       responses,
		Limiter:     buildLimiter(cfg),
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
		Judge:       judge,
		Concurrency: concurrency,
		Timeout:     cfg.Run.Timeout,
		MaxRetries:  cfg.Retry.MaxRetries,
		Retry: backoff.Policy{
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		Temperature: cfg.Run.Temperature,
		MaxTokens:   cfg.Run.MaxTokens,
		OnRecord: func(rec models.ExecutionRecord) {
			recorder.Append(rec)
			progress.step(rec)
		},
	})

	settings := models.RunSettings{
		Models:       targets,
		Concurrency:  concurrency,
		CacheEnabled: cacheOn,
		MaxRetries:   cfg.Retry.MaxRetries,
		Dataset:      suitePath,
	}
	if judge.Configured() {
		settings.JudgeModel = judge.Provider + "/" + judge.Model
	}

	runID := recorder.Create(suite.Name, settings)
	ctx := observability.WithRunID(cmd.Context(), runID)
	ctx, span := tracer.TraceRun(ctx, runID, suite.Name)
	defer span.End()

	logger.Info(ctx, "run started",
		"run_id", runID,
		"suite", suite.Name,
		"cases", len(suite.Cases),
		"models", len(targets),
	)

	start := time.Now()
	r.Run(ctx, suite.Cases, targets)
	metrics.RecordRunDuration(time.Since(start).Seconds())
	progress.finish()

	trace, err := recorder.Seal()
	if err != nil {
		return fmt.Errorf("seal run: %w", err)
	}
	logger.Info(ctx, "run sealed",
		"run_id", trace.ID,
		"passed", trace.Summary.Passed,
		"failed", trace.Summary.Failed,
		"errors", trace.Summary.Errors,
	)

	out := cmd.OutOrStdout()
	if err := report.Render(out, trace, format); err != nil {
		return err
	}

	if o.compareTo != "" {
		oldID, err := store.Resolve(o.compareTo)
		if err != nil {
			return err
		}
		baseline, err := store.Load(oldID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		if err := report.RenderComparison(out, history.CompareTraces(baseline, trace), format); err != nil {
			return err
		}
	}

	// Non-zero exit for CI: the run itself succeeded, the suite did not.
	if n := trace.Summary.Failed + trace.Summary.Errors; n > 0 {
		return fmt.Errorf("%d of %d executions failed", n, trace.Summary.Total)
	}
	return nil
}

// resolveTargets turns the --model flags, or failing that run.models, into a
// deduplicated target list.
func resolveTargets(cfg *config.Config, flags []string) ([]models.ModelConfig, error) {
	specs := flags
	if len(specs) == 0 {
		specs = cfg.Run.Models
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no models selected: pass --model or set run.models in the config")
	}

	targets := make([]models.ModelConfig, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		mc, err := models.ParseModelConfig(spec)
		if err != nil {
			return nil, err
		}
		if seen[mc.Key()] {
			continue
		}
		seen[mc.Key()] = true
		targets = append(targets, mc)
	}
	return targets, nil
}

func resolveJudge(cfg *config.Config, flag string) (runner.Judge, error) {
	if flag != "" {
		mc, err := models.ParseModelConfig(flag)
		if err != nil {
			return runner.Judge{}, fmt.Errorf("invalid --judge: %w", err)
		}
		return runner.Judge{Provider: mc.Provider, Model: mc.Model, Temperature: cfg.Judge.Temperature}, nil
	}
	return runner.Judge{
		Provider:    cfg.Judge.Provider,
		Model:       cfg.Judge.Model,
		Temperature: cfg.Judge.Temperature,
	}, nil
}

// buildRegistry constructs every provider the config can describe. Providers
// without credentials are still registered so availability can be reported;
// constructors that fail outright are logged and skipped.
func buildRegistry(cfg *config.Config, logger *observability.Logger) *providers.Registry {
	reg := providers.NewRegistry()

	anthropicCfg := cfg.Providers["anthropic"]
	reg.Register(providers.NewAnthropicProvider(providers.AnthropicConfig{
		APIKey:  anthropicCfg.APIKey,
		BaseURL: anthropicCfg.BaseURL,
	}))

	openaiCfg := cfg.Providers["openai"]
	reg.Register(providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:         openaiCfg.APIKey,
		BaseURL:        openaiCfg.BaseURL,
		EmbeddingModel: openaiCfg.EmbeddingModel,
	}))

	reg.Register(providers.NewOllamaProvider(providers.OllamaConfig{
		BaseURL: cfg.Providers["ollama"].BaseURL,
		Timeout: cfg.Run.Timeout,
	}))

	if g, err := providers.NewGoogleProvider(providers.GoogleConfig{
		APIKey: cfg.Providers["google"].APIKey,
	}); err != nil {
		logger.Warn(context.Background(), "google provider unavailable", "error", err)
	} else {
		reg.Register(g)
	}

	bedrockCfg := cfg.Providers["bedrock"]
	if b, err := providers.NewBedrockProvider(providers.BedrockConfig{
		Region:          bedrockCfg.Region,
		AccessKeyID:     bedrockCfg.AccessKeyID,
		SecretAccessKey: bedrockCfg.SecretAccessKey,
		SessionToken:    bedrockCfg.SessionToken,
	}); err != nil {
		logger.Warn(context.Background(), "bedrock provider unavailable", "error", err)
	} else {
		reg.Register(b)
	}

	return reg
}

func buildLimiter(cfg *config.Config) *ratelimit.Limiter {
	defaults := ratelimit.Limits{
		RequestsPerMinute: cfg.RateLimits.RequestsPerMinute,
		TokensPerMinute:   cfg.RateLimits.TokensPerMinute,
	}
	overrides := make(map[string]ratelimit.Limits)
	for name, pc := range cfg.Providers {
		if pc.RequestsPerMinute > 0 || pc.TokensPerMinute > 0 {
			overrides[name] = ratelimit.Limits{
				RequestsPerMinute: pc.RequestsPerMinute,
				TokensPerMinute:   pc.TokensPerMinute,
			}
		}
	}
	return ratelimit.New(defaults, overrides, cfg.RateLimits.On())
}

func warnDeprecated(logger *observability.Logger, targets []models.ModelConfig) {
	for _, target := range targets {
		m, ok := catalog.Get(target.Model)
		if !ok || !m.Deprecated {
			continue
		}
		args := []any{"model", target.Key()}
		if m.ReplacedBy != "" {
			args = append(args, "replaced_by", m.ReplacedBy)
		}
		logger.Warn(context.Background(), "model is deprecated", args...)
	}
}

// serveMetrics exposes /metrics for the duration of the run when a listen
// address is configured. Listener errors never fail the run.
func serveMetrics(listen string, logger *observability.Logger) func() {
	if strings.TrimSpace(listen) == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn(context.Background(), "metrics listener failed", "addr", listen, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// progressLine rewrites one status line in place while the run executes. It
// stays silent when the writer is not a terminal so CI logs are not littered
// with carriage returns.
type progressLine struct {
	out   io.Writer
	tty   bool
	total int

	mu     sync.Mutex
	done   int
	failed int
}

func newProgress(out io.Writer, total int) *progressLine {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &progressLine{out: out, tty: tty, total: total}
}

func (p *progressLine) step(rec models.ExecutionRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if rec.Failed() {
		p.failed++
	}
	if !p.tty {
		return
	}
	fmt.Fprintf(p.out, "\r\x1b[K%d/%d done, %d failed (%s)", p.done, p.total, p.failed, rec.Case)
}

func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.done > 0 {
		fmt.Fprint(p.out, "\r\x1b[K")
	}
}

// =============================================================================
// Cache Command Handlers
// =============================================================================

func runCacheStats(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	stats := cache.New(cache.Options{Dir: cfg.Cache.Dir, TTL: cfg.Cache.TTL, Enabled: true}).Stats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Directory: %s\n", cfg.Cache.Dir)
	fmt.Fprintf(out, "Entries:   %d\n", stats.Entries)
	fmt.Fprintf(out, "Size:      %s\n", formatBytes(stats.Bytes))
	return nil
}

func runCacheClear(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	removed, err := cache.New(cache.Options{Dir: cfg.Cache.Dir, TTL: cfg.Cache.TTL, Enabled: true}).Clear()
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses.\n", removed)
	return nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// =============================================================================
// Config Command Handler
// =============================================================================

func runConfigSchema(cmd *cobra.Command) error {
	data, err := config.JSONSchema()
	if err != nil {
		return fmt.Errorf("generate config schema: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
	return nil
}

// =============================================================================
// Models Command Handler
// =============================================================================

func runModels(cmd *cobra.Command, configPath, provider string, remote bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	provider = strings.ToLower(strings.TrimSpace(provider))

	if remote {
		return runModelsRemote(cmd, cfg, provider)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  "error",
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Providers:")
	for _, p := range buildRegistry(cfg, logger).All() {
		state := "no credentials"
		if p.Available() {
			state = "available"
		}
		fmt.Fprintf(out, "  %-10s %s\n", p.Name(), state)
	}
	fmt.Fprintln(out)

	list := catalog.List(provider)
	if len(list) == 0 {
		fmt.Fprintln(out, "No catalog models found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPROVIDER\tCONTEXT\tIN $/MTOK\tOUT $/MTOK\tNOTES")
	for _, m := range list {
		notes := ""
		if m.Deprecated {
			notes = "deprecated"
			if m.ReplacedBy != "" {
				notes += " -> " + m.ReplacedBy
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%s\n",
			m.ID, m.Provider, m.ContextWindow, m.InputPrice, m.OutputPrice, notes)
	}
	return w.Flush()
}

// runModelsRemote queries Bedrock for its live foundation model list. Other
// providers have no discovery API worth calling here.
func runModelsRemote(cmd *cobra.Command, cfg *config.Config, provider string) error {
	if provider != "" && provider != "bedrock" {
		return fmt.Errorf("--remote discovery is only supported for bedrock")
	}

	bedrockCfg := cfg.Providers["bedrock"]
	defs, err := bedrock.DiscoverModels(cmd.Context(), &bedrock.DiscoveryConfig{
		Region:          bedrockCfg.Region,
		AccessKeyID:     bedrockCfg.AccessKeyID,
		SecretAccessKey: bedrockCfg.SecretAccessKey,
		SessionToken:    bedrockCfg.SessionToken,
	})
	if err != nil {
		return fmt.Errorf("discover bedrock models: %w", err)
	}
	if len(defs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No models found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tVENDOR\tCONTEXT\tSTREAMING\tSTATUS")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", d.ID, d.Provider, d.ContextWindow, d.Streaming, d.Status)
	}
	return w.Flush()
}
