// Package observability provides monitoring and debugging capabilities for the
// harness through metrics, structured logging, and tracing.
//
// # Overview
//
// Three pillars, three files:
//
//  1. Metrics - execution outcomes, provider latency, cache effectiveness,
//     retry pressure, and rate-limit wait time via Prometheus
//  2. Logging - slog-based structured logs with automatic redaction of API
//     keys and other secrets
//  3. Tracing - per-run, per-execution, and per-provider-call spans via
//     OpenTelemetry, exported over OTLP when an endpoint is configured
//
// # Security
//
// Log redaction runs on every message and argument. Provider API keys
// (Anthropic, OpenAI, AWS patterns), bearer tokens, and generic secrets are
// replaced with [REDACTED] before reaching any writer. Components log request
// fingerprints, never request credentials.
//
// # Configuration
//
// Everything is driven by the config structures threaded in from startup:
// LogConfig for level/format, TraceConfig for the OTLP endpoint and sampling.
// A batch run with no collector configured pays for no tracing; the tracer is
// a no-op when Endpoint is empty.
package observability
