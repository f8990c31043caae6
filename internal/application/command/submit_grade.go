package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT GRADE COMMAND
// Converts a raw score into a grade point, records it, refreshes the
// student's GPA and reconciles the standing.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitGradeCommand contains the data to grade a registration.
type SubmitGradeCommand struct {
	RegistrationID int64

	// Score is the raw result in [0, 1].
	Score float64

	// CorrelationID for tracing.
	CorrelationID string
}

// SubmitGradeResult contains the outcome of grading.
type SubmitGradeResult struct {
	RegistrationID int64
	StudentID      int64
	Grade          grading.GradePoint
	GPA            *float64
	Reconcile      *ReconcileStandingResult
}

// SubmitGradeHandler handles the SubmitGradeCommand.
type SubmitGradeHandler struct {
	registrations student.RegistrationRepository
	courses       course.Repository
	students      student.Repository
	reconcile     *ReconcileStandingHandler
	publisher     shared.EventPublisher
	log           *logger.Logger
}

// NewSubmitGradeHandler creates a new SubmitGradeHandler. publisher may be nil.
func NewSubmitGradeHandler(
	registrations student.RegistrationRepository,
	courses course.Repository,
	students student.Repository,
	reconcile *ReconcileStandingHandler,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitGradeHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SubmitGradeHandler{
		registrations: registrations,
		courses:       courses,
		students:      students,
		reconcile:     reconcile,
		publisher:     publisher,
		log:           log.With(logger.Component("submit_grade")),
	}
}

// Handle executes the submit grade command.
func (h *SubmitGradeHandler) Handle(ctx context.Context, cmd SubmitGradeCommand) (*SubmitGradeResult, error) {
	reg, err := h.registrations.GetByID(ctx, cmd.RegistrationID)
	if err != nil {
		return nil, err
	}
	crs, err := h.courses.GetByID(ctx, reg.CourseID)
	if err != nil {
		return nil, err
	}

	grade, err := grading.GradeValue(cmd.Score, crs.Type)
	if err != nil {
		return nil, err
	}

	// Held across grade entry, GPA aggregation and reconciliation.
	release, err := h.reconcile.lock(ctx, reg.StudentID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := h.registrations.RecordGrade(ctx, reg.ID, cmd.Score, grade); err != nil {
		return nil, err
	}

	gpa, err := h.students.RecalculateGPA(ctx, reg.StudentID)
	if err != nil {
		return nil, fmt.Errorf("submit grade: recalculate gpa: %w", err)
	}

	log := h.log.With(logger.StudentID(reg.StudentID), logger.RegistrationID(reg.ID))
	log.Info("grade recorded",
		logger.Float64("score", cmd.Score),
		logger.String("grade", grade.String()))
	h.publish(log, reg, cmd, grade)

	rec, err := h.reconcile.reconcileLocked(ctx, ReconcileStandingCommand{
		StudentID:     reg.StudentID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitGradeResult{
		RegistrationID: reg.ID,
		StudentID:      reg.StudentID,
		Grade:          grade,
		GPA:            gpa,
		Reconcile:      rec,
	}, nil
}

func (h *SubmitGradeHandler) publish(log *logger.Logger, reg *student.Registration, cmd SubmitGradeCommand, grade grading.GradePoint) {
	if h.publisher == nil {
		return
	}
	base := shared.NewBaseEvent(shared.EventGradeRecorded, strconv.FormatInt(reg.StudentID, 10))
	if cmd.CorrelationID != "" {
		base = base.WithCorrelationID(cmd.CorrelationID)
	}
	event := shared.GradeRecordedEvent{
		BaseEvent:      base,
		StudentID:      reg.StudentID,
		RegistrationID: reg.ID,
		Score:          cmd.Score,
		GradePoint:     grade.String(),
	}
	if err := h.publisher.Publish(event); err != nil {
		log.Warn("failed to publish grade event", logger.Err(err))
	}
}
