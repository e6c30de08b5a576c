package casework

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"caseflow/internal/errs"
)

// RetryPolicy bounds how store reads are retried by the deadline monitor.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the fraction of each backoff that is randomized, 0 to 1.
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
		Jitter:         0.2,
	}
}

// retry runs op until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned.
func retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	backoff := policy.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || !isRetryable(err) || attempt >= policy.MaxAttempts {
			return err
		}

		wait := backoff
		if policy.Jitter > 0 {
			wait += time.Duration(float64(backoff) * policy.Jitter * (rand.Float64()*2 - 1))
		}
		if wait < 0 {
			wait = backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if policy.Multiplier > 1 {
			backoff = time.Duration(float64(backoff) * policy.Multiplier)
		}
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}

// isRetryable reports transient store failures. Everything the state machine
// decides is final for the attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsKind(err, errs.KindStoreUnavailable)
}
