package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcollege/registrar/internal/application/command"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/internal/infrastructure/persistence/inmem"
)

func seed(t *testing.T, repo *inmem.StudentRepository, number int64, id standing.ID, gpa float64) int64 {
	t.Helper()
	s, err := student.NewStudent(number, "Barbara", "Liskov")
	require.NoError(t, err)
	s.StandingID = id
	s.GradePointAverage = &gpa
	require.NoError(t, repo.Create(context.Background(), s))
	return s.ID
}

func TestReconcileRosterJob_Execute(t *testing.T) {
	ctx := context.Background()
	students := inmem.NewStudentRepository(inmem.NewDB())

	promoted := seed(t, students, 20_000_000, standing.SuspendedID, 3.9)
	seed(t, students, 20_000_001, standing.RegularID, 3.0)
	demoted := seed(t, students, 20_000_002, standing.HonoursID, 1.5)

	reconcile := command.NewReconcileStandingHandler(students, inmem.NewStudentLocker(), nil, nil)
	job := NewReconcileRosterJob(students, reconcile, nil, ReconcileRosterConfig{Concurrency: 2})
	assert.Equal(t, ReconcileRosterJobName, job.Name())
	assert.Nil(t, job.LastStats())

	stats, err := job.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Changed)
	assert.Zero(t, stats.Failed)
	assert.Len(t, stats.Changes, 2)
	assert.Same(t, stats, job.LastStats())

	s, err := students.GetByID(ctx, promoted)
	require.NoError(t, err)
	assert.Equal(t, standing.HonoursID, s.StandingID)
	s, err = students.GetByID(ctx, demoted)
	require.NoError(t, err)
	assert.Equal(t, standing.ProbationID, s.StandingID)

	// A second pass finds nothing to do.
	stats, err = job.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Changed)
}

type stubLister struct {
	ids []int64
	err error
}

func (l stubLister) ListIDs(context.Context) ([]int64, error) { return l.ids, l.err }

type flakyReconciler struct{ failID int64 }

var errReconcile = errors.New("database unavailable")

func (r flakyReconciler) Handle(_ context.Context, cmd command.ReconcileStandingCommand) (*command.ReconcileStandingResult, error) {
	if cmd.StudentID == r.failID {
		return nil, errReconcile
	}
	return &command.ReconcileStandingResult{StudentID: cmd.StudentID}, nil
}

func TestReconcileRosterJob_PartialFailure(t *testing.T) {
	job := NewReconcileRosterJob(stubLister{ids: []int64{1, 2, 3}}, flakyReconciler{failID: 2}, nil, ReconcileRosterConfig{})

	stats, err := job.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errReconcile)
	assert.Contains(t, err.Error(), "student 2")
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Failed)

	assert.ErrorIs(t, job.Run(context.Background()), errReconcile)
}

func TestReconcileRosterJob_ListFailure(t *testing.T) {
	boom := errors.New("no connection")
	job := NewReconcileRosterJob(stubLister{err: boom}, flakyReconciler{}, nil, DefaultReconcileRosterConfig())

	stats, err := job.Execute(context.Background())
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, boom)
}
