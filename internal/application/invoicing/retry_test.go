package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
)

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestRetry(t *testing.T) {
	failing := errors.New("boom")

	t.Run("stops after the attempt budget", func(t *testing.T) {
		calls := 0
		var waits []time.Duration
		err := retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return failing
		}, func(_ error, wait time.Duration) {
			waits = append(waits, wait)
		})

		assert.ErrorIs(t, err, failing)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
	})

	t.Run("returns as soon as the operation succeeds", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 5, time.Millisecond, func() error {
			calls++
			if calls < 2 {
				return failing
			}
			return nil
		}, nil)

		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 5, time.Millisecond, func() error {
			calls++
			return backoff.Permanent(failing)
		}, nil)

		assert.ErrorIs(t, err, failing)
		assert.Equal(t, 1, calls)
	})

	t.Run("non-positive budget still runs once", func(t *testing.T) {
		calls := 0
		_ = retry(context.Background(), 0, time.Millisecond, func() error {
			calls++
			return failing
		}, nil)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context ends the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := retry(ctx, 5, time.Second, func() error {
			calls++
			return failing
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryPolicyFromConfig(t *testing.T) {
	policy := RetryPolicyFromConfig(config.InvoicingConfig{
		VerifyAttempts: 7,
		VerifyStep:     50 * time.Millisecond,
		InsertAttempts: 2,
		InsertStep:     time.Second,
	})

	assert.Equal(t, 7, policy.VerifyAttempts)
	assert.Equal(t, 50*time.Millisecond, policy.VerifyStep)
	assert.Equal(t, 2, policy.InsertAttempts)
	assert.Equal(t, time.Second, policy.InsertStep)

	assert.Equal(t, RetryPolicy{5, 100 * time.Millisecond, 3, 200 * time.Millisecond}, DefaultRetryPolicy())
}
