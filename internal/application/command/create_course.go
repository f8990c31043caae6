package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE COURSE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateCourseCommand contains the data to add a course to the catalogue.
type CreateCourseCommand struct {
	Title         string
	CreditHours   float64
	TuitionAmount decimal.Decimal
	Type          grading.CourseType

	// MaximumAttempts applies to mastery courses only.
	MaximumAttempts int
}

// CreateCourseHandler handles the CreateCourseCommand.
type CreateCourseHandler struct {
	courses  course.Repository
	assigner *IdentifierAssigner
	log      *logger.Logger
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(courses course.Repository, assigner *IdentifierAssigner, log *logger.Logger) *CreateCourseHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CreateCourseHandler{
		courses:  courses,
		assigner: assigner,
		log:      log.With(logger.Component("create_course")),
	}
}

// Handle executes the create course command. The course is validated before
// a number is allocated so rejected input does not consume one.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*course.Course, error) {
	c := &course.Course{
		Title:           cmd.Title,
		CreditHours:     cmd.CreditHours,
		TuitionAmount:   cmd.TuitionAmount,
		Type:            cmd.Type,
		MaximumAttempts: cmd.MaximumAttempts,
	}
	if c.Type != grading.CourseMastery {
		c.MaximumAttempts = 0
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	number, err := h.assigner.CourseNumber(ctx, c.Type)
	if err != nil {
		return nil, err
	}
	c.CourseNumber = number

	if err := h.courses.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create course %s: %w", number, err)
	}

	h.log.Info("course created",
		logger.CourseID(c.ID),
		logger.String("course_number", c.CourseNumber),
		logger.String("type", c.Type.String()))
	return c, nil
}
