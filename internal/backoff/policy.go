// Package backoff provides the retry schedule and context-aware sleeping used
// by the execution pipeline. Delays grow linearly with the attempt number,
// which keeps total wait time for a short retry budget predictable.
package backoff

import "time"

// Policy defines the linear retry schedule.
type Policy struct {
	// BaseDelay is the wait after the first failed attempt. Attempt n waits
	// BaseDelay * n.
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt wait. Zero means uncapped.
	MaxDelay time.Duration
}

// Delay returns the wait before retrying after the given attempt number.
// Attempt numbers start at 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// DefaultPolicy returns the schedule used when config does not override it:
// 1s base, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
	}
}
