package generation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"course-builder/internal/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) generation.RetryPolicy {
	return generation.RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds immediately without retrying", func(t *testing.T) {
		calls := 0
		err := generation.Retry(ctx, fastPolicy(5), func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("fails k times then succeeds after exactly k+1 invocations", func(t *testing.T) {
		const k = 3
		calls := 0
		err := generation.Retry(ctx, fastPolicy(k+2), func(ctx context.Context) error {
			calls++
			if calls <= k {
				return errors.New("transient failure")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, k+1, calls)
	})

	t.Run("always failing stops after maxAttempts with the last error", func(t *testing.T) {
		const maxAttempts = 4
		calls := 0
		err := generation.Retry(ctx, fastPolicy(maxAttempts), func(ctx context.Context) error {
			calls++
			return fmt.Errorf("attempt %d", calls)
		})
		require.Error(t, err)
		assert.Equal(t, maxAttempts, calls)
		assert.EqualError(t, err, fmt.Sprintf("attempt %d", maxAttempts))
	})

	t.Run("context cancellation aborts the backoff wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		policy := generation.RetryPolicy{MaxAttempts: 10, BaseDelay: time.Minute, Multiplier: 2.0}
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := generation.Retry(ctx, policy, func(ctx context.Context) error {
			calls++
			return errors.New("always fails")
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero-valued policy runs the function once", func(t *testing.T) {
		calls := 0
		err := generation.Retry(ctx, generation.RetryPolicy{}, func(ctx context.Context) error {
			calls++
			return errors.New("nope")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
