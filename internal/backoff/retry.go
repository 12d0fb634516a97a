package backoff

import (
	"context"
	"errors"
)

// ErrRetriesExhausted is returned when every allowed attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Result holds the outcome of a Retry call. Retries counts the attempts
// consumed beyond the first, so a first-try success reports 0 and a success
// on the third attempt reports 2.
type Result[T any] struct {
	Value   T
	Retries int
	LastErr error
}

// Retry invokes fn once and, on failure, up to maxRetries additional times.
// Errors rejected by retryable short-circuit immediately; otherwise Retry
// sleeps the policy's linear delay for the attempt before trying again. A nil
// retryable treats every error as retryable.
//
// On success the result carries the value and retries consumed. On failure
// the returned error joins ErrRetriesExhausted (or the short-circuit cause)
// with the last attempt's error, and Result.LastErr holds it as well.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	maxRetries int,
	retryable func(error) bool,
	fn func(attempt int) (T, error),
) (Result[T], error) {
	var res Result[T]
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		res.Retries = attempt - 1

		if err := ctx.Err(); err != nil {
			if res.LastErr != nil {
				return res, res.LastErr
			}
			return res, err
		}

		value, err := fn(attempt)
		if err == nil {
			res.Value = value
			return res, nil
		}
		res.LastErr = err

		if retryable != nil && !retryable(err) {
			return res, err
		}
		if attempt <= maxRetries {
			if serr := SleepWithContext(ctx, policy.Delay(attempt)); serr != nil {
				return res, res.LastErr
			}
		}
	}

	res.Retries = maxRetries
	return res, errors.Join(ErrRetriesExhausted, res.LastErr)
}
