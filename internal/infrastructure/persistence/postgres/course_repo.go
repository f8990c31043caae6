package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
)

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

const courseColumns = `id, course_number, title, credit_hours, tuition_amount::text, course_type, maximum_attempts`

// Create inserts a course and sets c.ID. The amount goes over the wire as
// text and is cast server side so no precision is lost.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	query := `
		INSERT INTO courses (course_number, title, credit_hours, tuition_amount, course_type, maximum_attempts)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING id
	`

	err := r.conn.QueryRow(ctx, query,
		c.CourseNumber,
		c.Title,
		c.CreditHours,
		c.TuitionAmount.String(),
		string(c.Type),
		c.MaximumAttempts,
	).Scan(&c.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("course", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("course number %s already taken", c.CourseNumber), err)
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// GetByID returns a course by id.
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*course.Course, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	return r.scanCourse(row, fmt.Sprintf("id %d", id))
}

// GetByNumber returns a course by its formatted number.
func (r *CourseRepository) GetByNumber(ctx context.Context, number string) (*course.Course, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE course_number = $1`, number)
	return r.scanCourse(row, "number "+number)
}

func (r *CourseRepository) scanCourse(row pgx.Row, key string) (*course.Course, error) {
	var c course.Course
	var amount, courseType string

	err := row.Scan(
		&c.ID,
		&c.CourseNumber,
		&c.Title,
		&c.CreditHours,
		&amount,
		&courseType,
		&c.MaximumAttempts,
	)
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound.Wrap(errors.New(key))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	c.TuitionAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tuition amount %q: %w", amount, err)
	}
	c.Type = grading.ParseCourseType(courseType)

	return &c, nil
}

var _ course.Repository = (*CourseRepository)(nil)
