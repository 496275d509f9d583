package invoicing

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/invoicer/backend/internal/infrastructure/config"
)

// RetryPolicy bounds the two retry loops of the save protocol
type RetryPolicy struct {
	VerifyAttempts int
	VerifyStep     time.Duration
	InsertAttempts int
	InsertStep     time.Duration
}

// DefaultRetryPolicy polls 5 times at 100ms steps and inserts 3 times at 200ms steps
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		VerifyAttempts: 5,
		VerifyStep:     100 * time.Millisecond,
		InsertAttempts: 3,
		InsertStep:     200 * time.Millisecond,
	}
}

// RetryPolicyFromConfig builds a policy from the [invoicing] section
func RetryPolicyFromConfig(cfg config.InvoicingConfig) RetryPolicy {
	return RetryPolicy{
		VerifyAttempts: cfg.VerifyAttempts,
		VerifyStep:     cfg.VerifyStep,
		InsertAttempts: cfg.InsertAttempts,
		InsertStep:     cfg.InsertStep,
	}
}

// linearBackOff waits step * n before the n-th retry
type linearBackOff struct {
	step    time.Duration
	retries int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.retries++
	return b.step * time.Duration(b.retries)
}

func (b *linearBackOff) Reset() {
	b.retries = 0
}

// retry runs op at most attempts times, sleeping linearly between tries.
// It stops early when ctx is done or op returns a backoff.Permanent error.
func retry(ctx context.Context, attempts int, step time.Duration, op backoff.Operation, notify backoff.Notify) error {
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: step}, uint64(attempts-1)),
		ctx,
	)
	return backoff.RetryNotify(op, policy, notify)
}
