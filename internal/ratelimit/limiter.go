// Package ratelimit provides per-provider admission control for model calls.
// Each provider gets two token buckets, one counting requests and one counting
// tokens, both refilling continuously toward their per-minute ceiling. Callers
// block in Admit until both buckets have capacity.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/crucible/internal/backoff"
	"github.com/haasonsaas/crucible/pkg/models"
)

// Limits configures one provider's admission ceilings.
type Limits struct {
	// RequestsPerMinute caps request starts. Zero falls back to the default.
	RequestsPerMinute float64 `yaml:"requests_per_minute" json:"requests_per_minute"`
	// TokensPerMinute caps combined prompt+completion token throughput.
	TokensPerMinute float64 `yaml:"tokens_per_minute" json:"tokens_per_minute"`
}

// DefaultLimits returns the ceilings applied to providers without explicit
// configuration: 60 requests and 90k tokens per minute.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerMinute: 60,
		TokensPerMinute:   90000,
	}
}

// defaultPollInterval bounds how often a blocked caller rechecks capacity.
const defaultPollInterval = 100 * time.Millisecond

// bucket is a continuously refilling token pool. The balance may go negative
// when actual consumption (reported after a call) exceeds what admission
// estimated; the debt delays future admissions until refill covers it.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newBucket(perMinute float64) *bucket {
	return &bucket{
		tokens:     perMinute,
		max:        perMinute,
		refillRate: perMinute / 60.0,
		lastRefill: time.Now(),
	}
}

// refill adds tokens based on time elapsed. Must be called with the lock held.
func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.max {
		b.tokens = b.max
	}
}

// available returns the current balance after refill.
func (b *bucket) available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// debit subtracts n from the balance, refilling first.
func (b *bucket) debit(n float64) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	b.tokens -= n
}

// providerBuckets pairs the two pools gating one provider.
type providerBuckets struct {
	requests *bucket
	tokens   *bucket
}

// Limiter gates provider calls. Safe for concurrent use; providers contend
// only on their own buckets.
type Limiter struct {
	mu        sync.RWMutex
	providers map[string]*providerBuckets

	limits   map[string]Limits
	defaults Limits
	enabled  bool

	pollInterval time.Duration

	// OnWait, when set, observes how long each admission blocked. Used to
	// feed metrics; never called for immediate admissions.
	OnWait func(provider string, waited time.Duration)
}

// New creates a limiter with per-provider overrides on top of defaults.
// A nil overrides map applies defaults to every provider.
func New(defaults Limits, overrides map[string]Limits, enabled bool) *Limiter {
	if defaults.RequestsPerMinute <= 0 {
		defaults.RequestsPerMinute = DefaultLimits().RequestsPerMinute
	}
	if defaults.TokensPerMinute <= 0 {
		defaults.TokensPerMinute = DefaultLimits().TokensPerMinute
	}
	return &Limiter{
		providers:    make(map[string]*providerBuckets),
		limits:       overrides,
		defaults:     defaults,
		enabled:      enabled,
		pollInterval: defaultPollInterval,
	}
}

// limitsFor resolves the ceilings for a provider, filling zero fields from
// the defaults.
func (l *Limiter) limitsFor(provider string) Limits {
	lim, ok := l.limits[provider]
	if !ok {
		return l.defaults
	}
	if lim.RequestsPerMinute <= 0 {
		lim.RequestsPerMinute = l.defaults.RequestsPerMinute
	}
	if lim.TokensPerMinute <= 0 {
		lim.TokensPerMinute = l.defaults.TokensPerMinute
	}
	return lim
}

// get returns or creates the bucket pair for a provider.
func (l *Limiter) get(provider string) *providerBuckets {
	l.mu.RLock()
	pb, exists := l.providers[provider]
	l.mu.RUnlock()
	if exists {
		return pb
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if pb, exists = l.providers[provider]; exists {
		return pb
	}

	lim := l.limitsFor(provider)
	pb = &providerBuckets{
		requests: newBucket(lim.RequestsPerMinute),
		tokens:   newBucket(lim.TokensPerMinute),
	}
	l.providers[provider] = pb
	return pb
}

// CanAdmit reports whether a call with the given token estimate would be
// admitted right now: at least one request slot and estimatedTokens of
// throughput must be available.
func (l *Limiter) CanAdmit(provider string, estimatedTokens int) bool {
	if !l.enabled {
		return true
	}
	pb := l.get(provider)
	if pb.requests.available() < 1 {
		return false
	}
	return pb.tokens.available() >= float64(estimatedTokens)
}

// Admit blocks until capacity exists for the estimated cost, invokes fn, and
// then debits one request plus the tokens actually consumed (the estimate
// when the result reports no usage). The debit happens whether or not fn
// succeeded; a failed call still spent a request against the backend.
//
// Admission polls rather than queueing, so ordering among blocked callers is
// not FIFO. Rate-limit errors from fn are returned untouched; retrying them
// is the retry layer's job, not the limiter's.
func (l *Limiter) Admit(
	ctx context.Context,
	provider string,
	estimatedTokens int,
	fn func(context.Context) (*models.CompletionResult, error),
) (*models.CompletionResult, error) {
	if !l.enabled {
		return fn(ctx)
	}

	waitStart := time.Now()
	waited := false
	for !l.CanAdmit(provider, estimatedTokens) {
		waited = true
		if err := backoff.SleepWithContext(ctx, l.pollInterval); err != nil {
			return nil, err
		}
	}
	if waited && l.OnWait != nil {
		l.OnWait(provider, time.Since(waitStart))
	}

	result, err := fn(ctx)

	actual := estimatedTokens
	if result != nil && result.Usage.TotalTokens > 0 {
		actual = result.Usage.TotalTokens
	}
	pb := l.get(provider)
	pb.tokens.debit(float64(actual))
	pb.requests.debit(1)

	return result, err
}

// WaitTime estimates how long until a call with the given token cost could be
// admitted. Zero means it would be admitted now.
func (l *Limiter) WaitTime(provider string, estimatedTokens int) time.Duration {
	if !l.enabled {
		return 0
	}
	pb := l.get(provider)

	var wait time.Duration
	if have := pb.requests.available(); have < 1 {
		wait = durationFor(1-have, pb.requests.refillRate)
	}
	if have := pb.tokens.available(); have < float64(estimatedTokens) {
		if w := durationFor(float64(estimatedTokens)-have, pb.tokens.refillRate); w > wait {
			wait = w
		}
	}
	return wait
}

func durationFor(deficit, ratePerSecond float64) time.Duration {
	if ratePerSecond <= 0 {
		return 0
	}
	return time.Duration(deficit / ratePerSecond * float64(time.Second))
}
