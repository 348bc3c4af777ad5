package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitledger/fitledger/internal/support/exception"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, Factor: 1.0}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return exception.New(exception.ModuleAPI, "flaky", errors.New("503"), true)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	fatal := exception.New(exception.ModuleAPI, "bad request", errors.New("400"), false)
	err := fastPolicy(5).Do(context.Background(), "op", func() error {
		calls++
		return fatal
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, fatal)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "op", func() error {
		calls++
		return exception.New(exception.ModuleAPI, "still down", errors.New("500"), true)
	})

	assert.Equal(t, 3, calls)
	assert.True(t, exception.IsRetryable(err))
}

func TestDoAbortsWaitOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := Policy{MaxAttempts: 3, InitialInterval: time.Minute, Factor: 2.0}
	err := policy.Do(ctx, "op", func() error {
		return exception.New(exception.ModuleAPI, "flaky", errors.New("503"), true)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), "op", func() error {
		calls++
		return errors.New("nope")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
