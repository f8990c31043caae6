// Package course defines the course catalogue entity.
package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
)

// Course is one offering in the catalogue.
type Course struct {
	ID            int64
	CourseNumber  string
	Title         string
	CreditHours   float64
	TuitionAmount decimal.Decimal
	Type          grading.CourseType

	// MaximumAttempts limits registrations on mastery courses. Zero means
	// the course has no limit.
	MaximumAttempts int
}

// Validate checks the invariants every stored course must satisfy.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return shared.WrapError("course", "Validate", shared.ErrValidation, "title is required", nil)
	}
	if c.CreditHours < 0 {
		return shared.WrapError("course", "Validate", shared.ErrValueOutOfRange,
			fmt.Sprintf("credit hours %v cannot be negative", c.CreditHours), nil)
	}
	if c.TuitionAmount.IsNegative() {
		return shared.ErrInvalidTuition.Wrap(fmt.Errorf("amount %s", c.TuitionAmount))
	}
	if !c.Type.IsValid() {
		return shared.ErrInvalidCourseType.Wrap(fmt.Errorf("course type %q", string(c.Type)))
	}
	if c.MaximumAttempts < 0 {
		return shared.WrapError("course", "Validate", shared.ErrValueOutOfRange, "maximum attempts cannot be negative", nil)
	}
	return nil
}

// LimitsAttempts reports whether registrations on the course are capped.
func (c *Course) LimitsAttempts() bool {
	return c.Type == grading.CourseMastery && c.MaximumAttempts > 0
}

// Repository persists courses.
type Repository interface {
	// Create stores a new course and fills in its ID.
	Create(ctx context.Context, c *Course) error

	// GetByID returns shared.ErrCourseNotFound when nothing matches.
	GetByID(ctx context.Context, id int64) (*Course, error)

	// GetByNumber looks a course up by its formatted number ("G-200000").
	GetByNumber(ctx context.Context, number string) (*Course, error)
}
