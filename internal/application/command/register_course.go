package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/student"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER COURSE COMMAND
// A student may not hold two ungraded registrations for the same course, and
// may not exceed the attempt limit of a mastery course. Both checks and the
// insert run under the student's lock.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCourseCommand contains the data to register a student for a course.
type RegisterCourseCommand struct {
	StudentID int64
	CourseID  int64
	Notes     string

	// RegisteredAt defaults to now if zero.
	RegisteredAt time.Time
}

// Validate validates the command.
func (c RegisterCourseCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ErrInvalidStudentID.Wrap(fmt.Errorf("id %d", c.StudentID))
	}
	if c.CourseID <= 0 {
		return shared.WrapError("course", "Validate", shared.ErrInvalidID, "invalid course ID", fmt.Errorf("id %d", c.CourseID))
	}
	return nil
}

// RegisterCourseHandler handles the RegisterCourseCommand.
type RegisterCourseHandler struct {
	students      student.Repository
	courses       course.Repository
	registrations student.RegistrationRepository
	assigner      *IdentifierAssigner
	locker        StudentLocker
	log           *logger.Logger
}

// NewRegisterCourseHandler creates a new RegisterCourseHandler.
func NewRegisterCourseHandler(
	students student.Repository,
	courses course.Repository,
	registrations student.RegistrationRepository,
	assigner *IdentifierAssigner,
	locker StudentLocker,
	log *logger.Logger,
) *RegisterCourseHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RegisterCourseHandler{
		students:      students,
		courses:       courses,
		registrations: registrations,
		assigner:      assigner,
		locker:        locker,
		log:           log.With(logger.Component("register_course")),
	}
}

// Handle executes the register command. Rule violations are returned as
// shared.ErrUngradedRegistration or shared.ErrMaxAttemptsExceeded; use
// shared.RegistrationErrorCode to obtain the numeric code.
func (h *RegisterCourseHandler) Handle(ctx context.Context, cmd RegisterCourseCommand) (*student.Registration, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := h.log.With(logger.StudentID(cmd.StudentID), logger.CourseID(cmd.CourseID))

	release, err := h.locker.Lock(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("register: lock student %d: %w", cmd.StudentID, err)
	}
	defer release()

	if _, err := h.students.GetByID(ctx, cmd.StudentID); err != nil {
		return nil, err
	}
	crs, err := h.courses.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	ungraded, err := h.registrations.HasUngraded(ctx, cmd.StudentID, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("register: check ungraded: %w", err)
	}
	if ungraded {
		log.Info("registration rejected", logger.Int("code", -100))
		return nil, shared.ErrUngradedRegistration
	}

	if crs.LimitsAttempts() {
		attempts, err := h.registrations.CountAttempts(ctx, cmd.StudentID, cmd.CourseID)
		if err != nil {
			return nil, fmt.Errorf("register: count attempts: %w", err)
		}
		if attempts >= crs.MaximumAttempts {
			log.Info("registration rejected", logger.Int("code", -200), logger.Int("attempts", attempts))
			return nil, shared.ErrMaxAttemptsExceeded
		}
	}

	number, err := h.assigner.RegistrationNumber(ctx)
	if err != nil {
		return nil, err
	}

	registeredAt := cmd.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now().UTC()
	}
	reg := &student.Registration{
		RegistrationNumber: number,
		StudentID:          cmd.StudentID,
		CourseID:           cmd.CourseID,
		RegisteredAt:       registeredAt,
		CreditHours:        crs.CreditHours,
		Notes:              strings.TrimSpace(cmd.Notes),
	}
	if err := h.registrations.Create(ctx, reg); err != nil {
		log.Error("failed to store registration", logger.Err(err))
		return nil, shared.ErrRegistrationUpdate.Wrap(err)
	}

	log.Info("student registered",
		logger.RegistrationID(reg.ID),
		logger.Int64("registration_number", reg.RegistrationNumber))
	return reg, nil
}
