package postgres

import (
	"context"
	"fmt"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/student"
)

// RegistrationRepository implements student.RegistrationRepository.
type RegistrationRepository struct {
	conn *Connection
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(conn *Connection) *RegistrationRepository {
	return &RegistrationRepository{conn: conn}
}

// Create inserts a registration and sets reg.ID.
func (r *RegistrationRepository) Create(ctx context.Context, reg *student.Registration) error {
	query := `
		INSERT INTO registrations (registration_number, student_id, course_id, registered_at, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.conn.QueryRow(ctx, query,
		reg.RegistrationNumber,
		reg.StudentID,
		reg.CourseID,
		reg.RegisteredAt,
		reg.Notes,
	).Scan(&reg.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.WrapError("registration", "Create", shared.ErrNotFound, "student or course does not exist", err)
		}
		if IsUniqueViolation(err) {
			return shared.WrapError("registration", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("registration number %d already taken", reg.RegistrationNumber), err)
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}

	return nil
}

// GetByID returns a registration with the course credit hours.
func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*student.Registration, error) {
	query := `
		SELECT r.id, r.registration_number, r.student_id, r.course_id, r.registered_at,
			   r.score, COALESCE(r.grade, ''), c.credit_hours, r.notes
		FROM registrations r
		JOIN courses c ON c.id = r.course_id
		WHERE r.id = $1
	`

	reg, err := scanRegistration(r.conn.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrRegistrationNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}
	return reg, nil
}

// HasUngraded reports an open registration for the same course.
func (r *RegistrationRepository) HasUngraded(ctx context.Context, studentID, courseID int64) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE student_id = $1 AND course_id = $2 AND score IS NULL
		)
	`, studentID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ungraded registrations: %w", err)
	}
	return exists, nil
}

// CountAttempts counts the student's registrations for the course.
func (r *RegistrationRepository) CountAttempts(ctx context.Context, studentID, courseID int64) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return n, nil
}

// RecordGrade sets score, grade and its numeric weight on an ungraded row.
func (r *RegistrationRepository) RecordGrade(ctx context.Context, id int64, score float64, grade grading.GradePoint) error {
	var weight *float64
	if v, ok := grade.Value(); ok {
		weight = &v
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE registrations
		SET score = $2, grade = $3, grade_point = $4
		WHERE id = $1 AND score IS NULL
	`, id, score, string(grade), weight)
	if err != nil {
		return shared.ErrRegistrationUpdate.Wrap(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: tell a missing row from an already graded one.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return shared.ErrRegistrationGraded.Wrap(fmt.Errorf("id %d", id))
}

var _ student.RegistrationRepository = (*RegistrationRepository)(nil)
