package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusyError(t *testing.T) {
	busy := []error{
		errors.New("database is locked"),
		errors.New("database table is locked"),
		errors.New("SQLITE_BUSY: cannot start a transaction"),
		errors.New("SQLITE_LOCKED"),
		errors.New("sqlite error (5): busy"),
		errors.New("sqlite error (6): locked"),
	}
	for _, err := range busy {
		assert.True(t, isBusyError(err), err.Error())
	}

	notBusy := []error{
		nil,
		errors.New("connection refused"),
		errors.New("UNIQUE constraint failed: book_files.path"),
	}
	for _, err := range notBusy {
		assert.False(t, isBusyError(err))
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("no retry when the call succeeds", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 5, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until the lock clears", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 5, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-busy errors surface immediately", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 5, func() error {
			calls++
			return errors.New("connection refused")
		})
		require.EqualError(t, err, "connection refused")
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 2, func() error {
			calls++
			return errors.New("database is locked")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("zero budget means a single attempt", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(ctx, 0, func() error {
			calls++
			return errors.New("database is locked")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when the context is canceled", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		calls := 0
		err := retryWithBackoff(cancelCtx, 10, func() error {
			calls++
			return errors.New("database is locked")
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, calls, 10)
	})
}
