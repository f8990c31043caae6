package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STANDING COMMAND
// Walks the standing state machine until the student's standing contains the
// current GPA, then stores the result. A single evaluation moves one rank at
// most, so a student at one end of the ladder may need several hops.
// ══════════════════════════════════════════════════════════════════════════════

// StudentLocker serializes work on one student across goroutines or processes.
type StudentLocker interface {
	// Lock blocks until the student is held or ctx is done. The returned
	// release func is safe to call more than once.
	Lock(ctx context.Context, studentID int64) (release func(), err error)
}

// TransitionFunc performs one evaluation of the state machine.
type TransitionFunc func(current standing.Standing, gpa *float64) standing.Standing

// ReconcileStandingCommand contains the data to reconcile one student.
type ReconcileStandingCommand struct {
	StudentID int64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ReconcileStandingCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ErrInvalidStudentID.Wrap(fmt.Errorf("id %d", c.StudentID))
	}
	return nil
}

// ReconcileStandingResult contains the outcome of a reconciliation.
type ReconcileStandingResult struct {
	StudentID int64

	// From is the standing stored before reconciliation.
	From standing.Standing

	// Standing is the fixed point that is now stored.
	Standing standing.Standing

	// Path lists every visited standing, starting with From.
	Path []standing.Standing

	GPA     *float64
	Changed bool
}

// Hops returns the number of transitions taken.
func (r *ReconcileStandingResult) Hops() int {
	return len(r.Path) - 1
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileStandingHandler handles the ReconcileStandingCommand.
type ReconcileStandingHandler struct {
	students  student.Repository
	locker    StudentLocker
	publisher shared.EventPublisher
	evaluate  TransitionFunc
	log       *logger.Logger
}

// ReconcileOption customises a ReconcileStandingHandler.
type ReconcileOption func(*ReconcileStandingHandler)

// WithTransition replaces standing.EvaluateTransition.
func WithTransition(fn TransitionFunc) ReconcileOption {
	return func(h *ReconcileStandingHandler) {
		if fn != nil {
			h.evaluate = fn
		}
	}
}

// NewReconcileStandingHandler creates a new ReconcileStandingHandler.
// publisher may be nil.
func NewReconcileStandingHandler(
	students student.Repository,
	locker StudentLocker,
	publisher shared.EventPublisher,
	log *logger.Logger,
	opts ...ReconcileOption,
) *ReconcileStandingHandler {
	if log == nil {
		log = logger.Nop()
	}
	h := &ReconcileStandingHandler{
		students:  students,
		locker:    locker,
		publisher: publisher,
		evaluate:  standing.EvaluateTransition,
		log:       log.With(logger.Component("reconcile_standing")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle executes the reconcile command.
func (h *ReconcileStandingHandler) Handle(ctx context.Context, cmd ReconcileStandingCommand) (*ReconcileStandingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	release, err := h.lock(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	defer release()

	return h.reconcileLocked(ctx, cmd)
}

func (h *ReconcileStandingHandler) lock(ctx context.Context, studentID int64) (func(), error) {
	release, err := h.locker.Lock(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: lock student %d: %w", studentID, err)
	}
	return release, nil
}

// reconcileLocked does the work of Handle. The caller holds the student lock.
func (h *ReconcileStandingHandler) reconcileLocked(ctx context.Context, cmd ReconcileStandingCommand) (*ReconcileStandingResult, error) {
	log := h.log.With(logger.StudentID(cmd.StudentID))
	if cmd.CorrelationID != "" {
		log = log.With(logger.CorrelationID(cmd.CorrelationID))
	}

	// Read under the lock so a concurrent grade entry is never missed.
	stud, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	from, err := stud.Standing()
	if err != nil {
		return nil, err
	}

	result, err := h.walk(log, stud.ID, from, stud.GradePointAverage)
	if err != nil {
		return nil, err
	}
	if !result.Changed {
		return result, nil
	}

	if err := h.students.UpdateStanding(ctx, stud.ID, result.Standing.ID()); err != nil {
		return nil, fmt.Errorf("reconcile: store standing: %w", err)
	}

	log.Info("standing changed",
		logger.String("from", from.Label()),
		logger.Standing(result.Standing.Label()),
		logger.Int("hops", result.Hops()))

	h.publish(log, result, cmd.CorrelationID)
	return result, nil
}

// walk applies the transition function until it stops moving. The ladder
// has MaxTransitions edges, so MaxTransitions+1 evaluations always reach a
// fixed point; needing more means the state machine is inconsistent.
func (h *ReconcileStandingHandler) walk(log *logger.Logger, studentID int64, from standing.Standing, gpa *float64) (*ReconcileStandingResult, error) {
	current := from
	path := []standing.Standing{from}

	for i := 0; i <= standing.MaxTransitions; i++ {
		next := h.evaluate(current, gpa)
		if next.ID() == current.ID() {
			return &ReconcileStandingResult{
				StudentID: studentID,
				From:      from,
				Standing:  current,
				Path:      path,
				GPA:       gpa,
				Changed:   current.ID() != from.ID(),
			}, nil
		}
		log.Debug("standing transition",
			logger.Int("hop", len(path)),
			logger.String("from", current.Label()),
			logger.String("to", next.Label()))
		path = append(path, next)
		current = next
	}

	log.Error("standing did not converge", logger.Any("path", labels(path)))
	return nil, shared.ErrReconcileDiverged.Wrap(fmt.Errorf("student %d path %v", studentID, labels(path)))
}

func (h *ReconcileStandingHandler) publish(log *logger.Logger, result *ReconcileStandingResult, correlationID string) {
	if h.publisher == nil {
		return
	}
	base := shared.NewBaseEvent(shared.EventStandingChanged, strconv.FormatInt(result.StudentID, 10))
	if correlationID != "" {
		base = base.WithCorrelationID(correlationID)
	}
	event := shared.StandingChangedEvent{
		BaseEvent:    base,
		StudentID:    result.StudentID,
		FromStanding: result.From.Label(),
		ToStanding:   result.Standing.Label(),
		Path:         labels(result.Path),
		GPA:          result.GPA,
	}
	if err := h.publisher.Publish(event); err != nil {
		log.Warn("failed to publish standing change", logger.Err(err))
	}
}

func labels(path []standing.Standing) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = s.Label()
	}
	return out
}
