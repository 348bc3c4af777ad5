// Package retry implements bounded retry with exponential backoff for
// transient network and storage failures.
package retry

import (
	"context"
	"time"

	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"
)

// Policy holds the retry parameters: the maximum number of attempts, the
// initial backoff interval and the multiplication factor applied after each
// failed attempt.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Factor          float64
}

// DefaultPolicy is used when no retry configuration is supplied.
var DefaultPolicy = Policy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	Factor:          2.0,
}

// Do invokes fn up to p.MaxAttempts times. Only errors classified as
// retryable by the exception package are retried; any other error is
// returned immediately. The last error is returned when attempts are
// exhausted. Context cancellation aborts the backoff wait.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := p.InitialInterval
	if interval <= 0 {
		interval = DefaultPolicy.InitialInterval
	}
	factor := p.Factor
	if factor < 1.0 {
		factor = DefaultPolicy.Factor
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !exception.IsRetryable(err) || attempt == attempts {
			return err
		}
		logger.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", op, attempt, attempts, interval, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * factor)
	}
	return err
}
