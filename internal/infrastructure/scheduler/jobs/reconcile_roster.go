// Package jobs contains the registrar's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bitcollege/registrar/internal/application/command"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ROSTER JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileRosterJobName is the scheduler name of ReconcileRosterJob.
const ReconcileRosterJobName = "reconcile_roster"

// StudentLister lists every student id.
type StudentLister interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

// Reconciler reconciles one student.
type Reconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileStandingCommand) (*command.ReconcileStandingResult, error)
}

// ReconcileRosterConfig contains configuration for the job.
type ReconcileRosterConfig struct {
	// Concurrency is the number of students reconciled in parallel.
	Concurrency int

	// Timeout bounds one run over the whole roster. Zero means no limit.
	Timeout time.Duration
}

// DefaultReconcileRosterConfig returns sensible defaults.
func DefaultReconcileRosterConfig() ReconcileRosterConfig {
	return ReconcileRosterConfig{
		Concurrency: 8,
		Timeout:     10 * time.Minute,
	}
}

// RosterStats contains statistics from one run.
type RosterStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration

	Total   int
	Changed int
	Failed  int

	// Changes holds the result of every student whose standing moved.
	Changes []*command.ReconcileStandingResult
}

// ReconcileRosterJob reconciles the standing of every student. A failure on
// one student is logged and counted; the others still run.
type ReconcileRosterJob struct {
	students   StudentLister
	reconciler Reconciler
	log        *logger.Logger
	config     ReconcileRosterConfig

	lastStats atomic.Value // *RosterStats
}

// NewReconcileRosterJob creates a new ReconcileRosterJob.
func NewReconcileRosterJob(
	students StudentLister,
	reconciler Reconciler,
	log *logger.Logger,
	config ReconcileRosterConfig,
) *ReconcileRosterJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultReconcileRosterConfig().Concurrency
	}
	return &ReconcileRosterJob{
		students:   students,
		reconciler: reconciler,
		log:        log.With(logger.Component("job." + ReconcileRosterJobName)),
		config:     config,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileRosterJob) Name() string { return ReconcileRosterJobName }

// Run implements scheduler.Job.
func (j *ReconcileRosterJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Execute reconciles the roster and returns the run's statistics. The error
// is non-nil when listing failed or at least one student failed.
func (j *ReconcileRosterJob) Execute(ctx context.Context) (*RosterStats, error) {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	stats := &RosterStats{StartedAt: time.Now()}

	ids, err := j.students.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list students: %w", ReconcileRosterJobName, err)
	}
	stats.Total = len(ids)

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := j.reconciler.Handle(gctx, command.ReconcileStandingCommand{StudentID: id})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				errs = append(errs, fmt.Errorf("student %d: %w", id, err))
				j.log.Error("reconcile failed", logger.StudentID(id), logger.Err(err))
				return nil
			}
			if res.Changed {
				stats.Changed++
				stats.Changes = append(stats.Changes, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastStats.Store(stats)

	j.log.Info("roster reconciled",
		logger.Int("total", stats.Total),
		logger.Int("changed", stats.Changed),
		logger.Int("failed", stats.Failed),
		logger.Latency(stats.Duration))

	return stats, errors.Join(errs...)
}

// LastStats returns the statistics of the most recent run, or nil.
func (j *ReconcileRosterJob) LastStats() *RosterStats {
	stats, _ := j.lastStats.Load().(*RosterStats)
	return stats
}
