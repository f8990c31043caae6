package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clk := &clock{now: time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := New("allocator",
		WithFailureThreshold(2),
		WithTimeout(time.Minute),
		WithClock(clk.Now),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	assert.Equal(t, "allocator", cb.Name())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejection(err))

	clk.Advance(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{
		"allocator:closed->open",
		"allocator:open->half-open",
		"allocator:half-open->closed",
	}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := &clock{now: time.Now()}
	cb := New("allocator", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clk.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clk.Advance(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New("allocator", WithFailureThreshold(2))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	cb := New("allocator", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}))

	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.False(t, IsRejection(err))
}
