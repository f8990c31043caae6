// Package scheduler runs registrar background jobs on fixed schedules,
// such as periodic reconciliation of every student's standing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitcollege/registrar/pkg/logger"
)

var (
	ErrJobExists           = errors.New("scheduler: job already registered")
	ErrJobNotFound         = errors.New("scheduler: job not found")
	ErrSchedulerRunning    = errors.New("scheduler: already running")
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrInvalidSchedule     = errors.New("scheduler: schedule is required")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of scheduled work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Error       error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Error == nil }

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler runs registered jobs when they are due. A job never overlaps
// with itself: a run that is due while the previous one is still going is
// skipped.
type Scheduler struct {
	mu sync.Mutex

	log  *logger.Logger
	tick time.Duration
	now  func() time.Time

	jobs     map[string]*scheduledJob
	lastRuns map[string]JobResult

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	onJobComplete func(JobResult)
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	busy     bool
	runCount int64
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger

	// Tick is how often due jobs are checked (default: 1s).
	Tick time.Duration

	// OnJobComplete is called after every run.
	OnJobComplete func(JobResult)
}

// New creates a new Scheduler.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Tick <= 0 {
		config.Tick = time.Second
	}
	return &Scheduler{
		log:           config.Logger.With(logger.Component("scheduler")),
		tick:          config.Tick,
		now:           time.Now,
		jobs:          make(map[string]*scheduledJob),
		lastRuns:      make(map[string]JobResult),
		onJobComplete: config.OnJobComplete,
	}
}

// Register adds a job. With runNow the first run is due immediately,
// otherwise after one schedule period.
func (s *Scheduler) Register(job Job, schedule Schedule, runNow bool) error {
	if schedule == nil {
		return ErrInvalidSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, job.Name())
	}

	next := schedule.Next(s.now())
	if runNow {
		next = s.now()
	}
	s.jobs[job.Name()] = &scheduledJob{job: job, schedule: schedule, nextRun: next}

	s.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("schedule", schedule.String()))
	return nil
}

// Start begins the scheduling loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// RunNow executes a job immediately, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, sj), nil
}

// LastResult returns the outcome of the job's most recent run.
func (s *Scheduler) LastResult(name string) (JobResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRuns[name]
	return r, ok
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if sj.busy || now.Before(sj.nextRun) {
			continue
		}
		sj.busy = true
		sj.nextRun = sj.schedule.Next(now)
		due = append(due, sj)
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj)

			s.mu.Lock()
			sj.busy = false
			s.mu.Unlock()
		}(sj)
	}
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	name := sj.job.Name()
	log := s.log.With(logger.String("job", name))
	log.Debug("job started")

	started := s.now()
	err := sj.job.Run(ctx)
	completed := s.now()

	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Error:       err,
	}

	s.mu.Lock()
	sj.runCount++
	s.lastRuns[name] = result
	s.mu.Unlock()

	if err != nil {
		log.Error("job failed", logger.Latency(result.Duration), logger.Err(err))
	} else {
		log.Info("job completed", logger.Latency(result.Duration))
	}
	if s.onJobComplete != nil {
		s.onJobComplete(result)
	}
	return result
}
