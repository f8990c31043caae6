package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func (j *countingJob) count() int32 { return atomic.LoadInt32(&j.runs) }

func TestScheduler_Register(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "reconcile"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute), false))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute), false), ErrJobExists)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil, false), ErrInvalidSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	var completed []JobResult
	s := New(Config{OnJobComplete: func(r JobResult) { completed = append(completed, r) }})

	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, NewIntervalSchedule(time.Hour), false))
	require.NoError(t, s.Register(failing, NewIntervalSchedule(time.Hour), false))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "ok", res.JobName)

	res, err = s.RunNow(context.Background(), "failing")
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.EqualError(t, res.Error, "boom")

	last, found := s.LastResult("failing")
	require.True(t, found)
	assert.False(t, last.Success())
	assert.Len(t, completed, 2)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, found = s.LastResult("missing")
	assert.False(t, found)
}

func TestScheduler_StartRunsDueJobs(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond})
	immediate := &countingJob{name: "immediate"}
	later := &countingJob{name: "later"}
	require.NoError(t, s.Register(immediate, NewIntervalSchedule(10*time.Millisecond), true))
	require.NoError(t, s.Register(later, NewIntervalSchedule(time.Hour), false))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerRunning)

	assert.Eventually(t, func() bool { return immediate.count() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	assert.Zero(t, later.count())
}

func TestScheduler_SkipsBusyJob(t *testing.T) {
	s := New(Config{Tick: 2 * time.Millisecond})
	slow := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(slow, NewIntervalSchedule(time.Millisecond), true))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return slow.count() == 1 }, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), slow.count())

	// Stop cancels the blocked run.
	require.NoError(t, s.Stop())
	last, ok := s.LastResult("slow")
	require.True(t, ok)
	assert.ErrorIs(t, last.Error, context.Canceled)
}

func TestIntervalSchedule(t *testing.T) {
	sched := NewIntervalSchedule(90 * time.Second)
	start := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, start.Add(90*time.Second), sched.Next(start))
	assert.Equal(t, "@every 1m30s", sched.String())
}
