package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fast(attempts int) *Retrier {
	return New(WithMaxAttempts(attempts), WithInitialDelay(0), WithJitter(0))
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	r := New(WithMaxAttempts(4), WithInitialDelay(0), WithJitter(0),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := fast(3).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("bad input")
	err := fast(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(cause)
	})
	assert.Same(t, cause, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(cause)))
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	r := New(WithMaxAttempts(5), WithInitialDelay(0), WithRetryIf(func(err error) bool {
		return errors.Is(err, errTransient)
	}))
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("fatal")
	})
	assert.EqualError(t, err, "fatal")
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast(3).Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	slow := New(WithMaxAttempts(10), WithInitialDelay(time.Second), WithJitter(0))
	err = slow.Do(ctx, func(context.Context) error { return errTransient })
	assert.ErrorIs(t, err, errTransient)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	n, err := DoWithData(context.Background(), fast(3), func(context.Context) (int64, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 20_000_000, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20_000_000), n)
}

func TestDelayBackoff(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(35*time.Millisecond), WithMultiplier(2), WithJitter(0))

	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 20*time.Millisecond, r.delay(2))
	assert.Equal(t, 35*time.Millisecond, r.delay(3))
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 4, Allocation(4).MaxAttempts())
	assert.Equal(t, 7, Lock(7, 10*time.Millisecond).MaxAttempts())
}

func TestLockPollsAtSteadyInterval(t *testing.T) {
	r := Lock(10, 50*time.Millisecond)
	for _, attempt := range []int{1, 2, 5, 9} {
		assert.InDelta(t, float64(50*time.Millisecond), float64(r.delay(attempt)), float64(5*time.Millisecond),
			"attempt %d", attempt)
	}
}
