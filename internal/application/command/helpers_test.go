package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitcollege/registrar/internal/domain/numbering"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/internal/infrastructure/persistence/inmem"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// scriptedAllocator fails the first failures calls, then counts up from the seed.
type scriptedAllocator struct {
	mu       sync.Mutex
	failures int
	calls    int
	next     map[numbering.Category]int64
}

var errAllocatorDown = errors.New("allocator down")

func (a *scriptedAllocator) AllocateNext(_ context.Context, category numbering.Category) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.failures {
		return 0, errAllocatorDown
	}
	if a.next == nil {
		a.next = make(map[numbering.Category]int64)
	}
	n, ok := a.next[category]
	if !ok {
		seed, err := category.Seed()
		if err != nil {
			return 0, err
		}
		n = seed
	}
	a.next[category] = n + 1
	return n, nil
}

func (a *scriptedAllocator) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, int64) (func(), error) {
	return nil, l.err
}

// countingLocker records the largest number of simultaneous holders.
type countingLocker struct {
	inner StudentLocker

	mu     sync.Mutex
	active int
	peak   int
}

func (l *countingLocker) Lock(ctx context.Context, studentID int64) (func(), error) {
	release, err := l.inner.Lock(ctx, studentID)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.active++
	if l.active > l.peak {
		l.peak = l.active
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.active--
			l.mu.Unlock()
			release()
		})
	}, nil
}

func (l *countingLocker) maxHolders() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}

// registrar wires every handler onto one in-memory database.
type registrar struct {
	db        *inmem.DB
	students  *inmem.StudentRepository
	courses   *inmem.CourseRepository
	regs      *inmem.RegistrationRepository
	publisher *recordingPublisher
	locker    *countingLocker

	assigner  *IdentifierAssigner
	reconcile *ReconcileStandingHandler
	enrol     *EnrolStudentHandler
	course    *CreateCourseHandler
	register  *RegisterCourseHandler
	grade     *SubmitGradeHandler
}

func newRegistrar(t *testing.T) *registrar {
	t.Helper()

	db := inmem.NewDB()
	r := &registrar{
		db:        db,
		students:  inmem.NewStudentRepository(db),
		courses:   inmem.NewCourseRepository(db),
		regs:      inmem.NewRegistrationRepository(db),
		publisher: &recordingPublisher{},
		locker:    &countingLocker{inner: inmem.NewStudentLocker()},
	}
	locker := r.locker

	r.assigner = NewIdentifierAssigner(inmem.NewSequenceAllocator(db), DefaultIdentifierAssignerConfig(), r.publisher, nil)
	r.reconcile = NewReconcileStandingHandler(r.students, locker, r.publisher, nil)
	r.enrol = NewEnrolStudentHandler(r.students, r.assigner, r.reconcile, nil)
	r.course = NewCreateCourseHandler(r.courses, r.assigner, nil)
	r.register = NewRegisterCourseHandler(r.students, r.courses, r.regs, r.assigner, locker, nil)
	r.grade = NewSubmitGradeHandler(r.regs, r.courses, r.students, r.reconcile, r.publisher, nil)
	return r
}

// seedStudent stores a student directly with the given standing and GPA.
func (r *registrar) seedStudent(t *testing.T, number int64, id standing.ID, gpa *float64) *student.Student {
	t.Helper()
	s, err := student.NewStudent(number, "Ada", "Lovelace")
	require.NoError(t, err)
	s.StandingID = id
	s.GradePointAverage = gpa
	require.NoError(t, r.students.Create(context.Background(), s))
	return s
}

func ptr(f float64) *float64 { return &f }
