package casework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetryRecoversFromStoreErrors(t *testing.T) {
	attempts := 0
	err := retry(context.Background(), fastRetry(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.Unavailable(errors.New("connection reset"), "query cases")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnDecisions(t *testing.T) {
	attempts := 0
	err := retry(context.Background(), fastRetry(), func(context.Context) error {
		attempts++
		return casework.ErrInvalidTransition
	})
	assert.ErrorIs(t, err, casework.ErrInvalidTransition)
	assert.Equal(t, 1, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	storeErr := errs.Unavailable(errors.New("timeout"), "query")
	err := retry(context.Background(), fastRetry(), func(context.Context) error {
		attempts++
		return storeErr
	})
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, 3, attempts)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour}
	err := retry(ctx, policy, func(context.Context) error {
		cancel()
		return errs.Unavailable(errors.New("down"), "query")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
