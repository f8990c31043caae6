package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROL STUDENT COMMAND
// Numbers and stores a new student. The student starts Suspended with no GPA
// and is reconciled straight away.
// ══════════════════════════════════════════════════════════════════════════════

// EnrolStudentCommand contains the data to enrol a student.
type EnrolStudentCommand struct {
	FirstName string
	LastName  string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c EnrolStudentCommand) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return shared.WrapError("student", "Enrol", shared.ErrValidation, "first and last name are required", nil)
	}
	return nil
}

// EnrolStudentResult contains the enrolled student.
type EnrolStudentResult struct {
	Student  *student.Student
	Standing standing.Standing
}

// EnrolStudentHandler handles the EnrolStudentCommand.
type EnrolStudentHandler struct {
	students  student.Repository
	assigner  *IdentifierAssigner
	reconcile *ReconcileStandingHandler
	log       *logger.Logger
}

// NewEnrolStudentHandler creates a new EnrolStudentHandler.
func NewEnrolStudentHandler(
	students student.Repository,
	assigner *IdentifierAssigner,
	reconcile *ReconcileStandingHandler,
	log *logger.Logger,
) *EnrolStudentHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EnrolStudentHandler{
		students:  students,
		assigner:  assigner,
		reconcile: reconcile,
		log:       log.With(logger.Component("enrol_student")),
	}
}

// Handle executes the enrol command.
func (h *EnrolStudentHandler) Handle(ctx context.Context, cmd EnrolStudentCommand) (*EnrolStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	number, err := h.assigner.StudentNumber(ctx)
	if err != nil {
		return nil, err
	}

	stud, err := student.NewStudent(number, cmd.FirstName, cmd.LastName)
	if err != nil {
		return nil, err
	}
	if err := h.students.Create(ctx, stud); err != nil {
		return nil, fmt.Errorf("enrol: store student %d: %w", number, err)
	}

	rec, err := h.reconcile.Handle(ctx, ReconcileStandingCommand{
		StudentID:     stud.ID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, err
	}
	stud.StandingID = rec.Standing.ID()

	h.log.Info("student enrolled",
		logger.StudentID(stud.ID),
		logger.Int64("student_number", stud.StudentNumber),
		logger.Standing(rec.Standing.Label()))

	return &EnrolStudentResult{Student: stud, Standing: rec.Standing}, nil
}
