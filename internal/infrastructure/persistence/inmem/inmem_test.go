package inmem

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/numbering"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
)

func TestSequenceAllocator_Sequential(t *testing.T) {
	ctx := context.Background()
	alloc := NewSequenceAllocator(NewDB())

	for _, c := range numbering.Categories() {
		seed, err := c.Seed()
		require.NoError(t, err)

		peek, err := alloc.Peek(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, seed, peek)

		for i := int64(0); i < 3; i++ {
			n, err := alloc.AllocateNext(ctx, c)
			require.NoError(t, err)
			assert.Equal(t, seed+i, n)
		}
	}

	_, err := alloc.AllocateNext(ctx, numbering.Category("NextInvoice"))
	assert.True(t, errors.Is(err, shared.ErrUnknownCategory))
}

func TestSequenceAllocator_Concurrent(t *testing.T) {
	const workers, perWorker = 16, 50

	alloc := NewSequenceAllocator(NewDB())
	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				n, err := alloc.AllocateNext(ctx, numbering.Registration)
				if err != nil {
					return err
				}
				mu.Lock()
				if seen[n] {
					mu.Unlock()
					return errors.New("duplicate number issued")
				}
				seen[n] = true
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, seen, workers*perWorker)
	for n := int64(700); n < 700+workers*perWorker; n++ {
		assert.True(t, seen[n], "missing %d", n)
	}
}

func TestSequenceAllocator_CancelledContext(t *testing.T) {
	db := NewDB()
	alloc := NewSequenceAllocator(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := alloc.AllocateNext(ctx, numbering.Student)
	require.ErrorIs(t, err, context.Canceled)

	n, err := alloc.AllocateNext(context.Background(), numbering.Student)
	require.NoError(t, err)
	assert.Equal(t, int64(20_000_000), n)
}

func TestStudentLocker(t *testing.T) {
	l := NewStudentLocker()
	ctx := context.Background()

	release, err := l.Lock(ctx, 1)
	require.NoError(t, err)

	other, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	other()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()

	again, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	again()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

func seedStudentAndCourse(t *testing.T, db *DB, credits float64) (*student.Student, *course.Course) {
	t.Helper()
	ctx := context.Background()

	s, err := student.NewStudent(20_000_000, "Grace", "Hopper")
	require.NoError(t, err)
	require.NoError(t, NewStudentRepository(db).Create(ctx, s))

	c := &course.Course{
		CourseNumber:  "G-200000",
		Title:         "Compilers",
		CreditHours:   credits,
		TuitionAmount: decimal.NewFromInt(1000),
		Type:          grading.CourseGraded,
	}
	require.NoError(t, NewCourseRepository(db).Create(ctx, c))
	return s, c
}

func TestStudentRepository_RegistrationsAndGPA(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	s, c := seedStudentAndCourse(t, db, 3)

	students := NewStudentRepository(db)
	regs := NewRegistrationRepository(db)

	t0 := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	second := &student.Registration{RegistrationNumber: 701, StudentID: s.ID, CourseID: c.ID, RegisteredAt: t0.Add(time.Hour)}
	first := &student.Registration{RegistrationNumber: 700, StudentID: s.ID, CourseID: c.ID, RegisteredAt: t0}
	require.NoError(t, regs.Create(ctx, second))
	require.NoError(t, regs.Create(ctx, first))

	loaded, err := students.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Registrations, 2)
	assert.Equal(t, int64(700), loaded.Registrations[0].RegistrationNumber)
	assert.Equal(t, 3.0, loaded.Registrations[0].CreditHours)

	gpa, err := students.RecalculateGPA(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, gpa)

	require.NoError(t, regs.RecordGrade(ctx, first.ID, 0.95, grading.APlus))
	err = regs.RecordGrade(ctx, first.ID, 0.50, grading.D)
	assert.True(t, errors.Is(err, shared.ErrRegistrationGraded))

	gpa, err = students.RecalculateGPA(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, gpa)
	assert.Equal(t, 4.5, *gpa)

	*gpa = 0
	loaded, err = students.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.GradePointAverage)
	assert.Equal(t, 4.5, *loaded.GradePointAverage)

	ungraded, err := regs.HasUngraded(ctx, s.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ungraded)

	attempts, err := regs.CountAttempts(ctx, s.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestStudentRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	students := NewStudentRepository(NewDB())

	_, err := students.GetByID(ctx, 42)
	assert.True(t, errors.Is(err, shared.ErrStudentNotFound))
	assert.True(t, shared.IsNotFound(err))

	err = students.UpdateStanding(ctx, 42, standing.RegularID)
	assert.True(t, errors.Is(err, shared.ErrStudentNotFound))
}

func TestStudentRepository_UpdateStandingAndList(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	s, _ := seedStudentAndCourse(t, db, 3)
	students := NewStudentRepository(db)

	require.NoError(t, students.UpdateStanding(ctx, s.ID, standing.HonoursID))
	loaded, err := students.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, standing.HonoursID, loaded.StandingID)

	dup, err := student.NewStudent(s.StudentNumber, "Other", "Person")
	require.NoError(t, err)
	assert.True(t, errors.Is(students.Create(ctx, dup), shared.ErrAlreadyExists))

	ids, err := students.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{s.ID}, ids)
}

func TestCourseRepository(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	_, c := seedStudentAndCourse(t, db, 4)
	courses := NewCourseRepository(db)

	got, err := courses.GetByNumber(ctx, "G-200000")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.TuitionAmount))

	_, err = courses.GetByID(ctx, 99)
	assert.True(t, errors.Is(err, shared.ErrCourseNotFound))
	_, err = courses.GetByNumber(ctx, "M-1")
	assert.True(t, errors.Is(err, shared.ErrCourseNotFound))
}

func TestStandingRepository_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewStandingRepository(NewDB())

	require.NoError(t, repo.SeedStandings(ctx, standing.All()))
	require.NoError(t, repo.SeedStandings(ctx, standing.All()))

	labels := repo.Labels()
	assert.Len(t, labels, 4)
	assert.Equal(t, "Honours", labels[standing.HonoursID])
}
