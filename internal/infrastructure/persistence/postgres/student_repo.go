package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// Create inserts a student and sets s.ID.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			student_number, first_name, last_name, grade_point_average,
			standing_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.conn.QueryRow(ctx, query,
		s.StudentNumber,
		s.FirstName,
		s.LastName,
		s.GradePointAverage,
		int(s.StandingID),
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("student", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("student number %d already taken", s.StudentNumber), err)
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns the student with registrations, oldest first.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	query := `
		SELECT id, student_number, first_name, last_name, grade_point_average,
			   standing_id, created_at, updated_at
		FROM students
		WHERE id = $1
	`

	s, err := r.scanStudent(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	regs, err := r.registrations(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Registrations = regs

	return s, nil
}

// UpdateStanding writes the standing column only.
func (r *StudentRepository) UpdateStanding(ctx context.Context, id int64, standingID standing.ID) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE students SET standing_id = $2, updated_at = NOW() WHERE id = $1`,
		id, int(standingID),
	)
	if err != nil {
		return fmt.Errorf("failed to update standing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	return nil
}

// RecalculateGPA stores the credit-hour weighted mean of counted grade points.
func (r *StudentRepository) RecalculateGPA(ctx context.Context, id int64) (*float64, error) {
	query := `
		UPDATE students s
		SET grade_point_average = agg.gpa, updated_at = NOW()
		FROM (
			SELECT SUM(r.grade_point * c.credit_hours) / NULLIF(SUM(c.credit_hours), 0) AS gpa
			FROM registrations r
			JOIN courses c ON c.id = r.course_id
			WHERE r.student_id = $1
			  AND r.grade_point IS NOT NULL
			  AND c.credit_hours > 0
		) agg
		WHERE s.id = $1
		RETURNING s.grade_point_average
	`

	var gpa *float64
	err := r.conn.QueryRow(ctx, query, id).Scan(&gpa)
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate gpa: %w", err)
	}
	return gpa, nil
}

// ListIDs returns every student id in ascending order.
func (r *StudentRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan student ids: %w", err)
	}
	return ids, nil
}

func (r *StudentRepository) registrations(ctx context.Context, studentID int64) ([]student.Registration, error) {
	query := `
		SELECT r.id, r.registration_number, r.student_id, r.course_id, r.registered_at,
			   r.score, COALESCE(r.grade, ''), c.credit_hours, r.notes
		FROM registrations r
		JOIN courses c ON c.id = r.course_id
		WHERE r.student_id = $1
		ORDER BY r.registered_at, r.registration_number
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var regs []student.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return regs, nil
}

// scanStudent scans a single student from a row.
func (r *StudentRepository) scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var standingID int

	err := row.Scan(
		&s.ID,
		&s.StudentNumber,
		&s.FirstName,
		&s.LastName,
		&s.GradePointAverage,
		&standingID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.StandingID = standing.ID(standingID)
	return &s, nil
}

// scanRegistration scans the registration column list shared by the student
// and registration repositories.
func scanRegistration(row pgx.Row) (*student.Registration, error) {
	var reg student.Registration
	var grade string

	err := row.Scan(
		&reg.ID,
		&reg.RegistrationNumber,
		&reg.StudentID,
		&reg.CourseID,
		&reg.RegisteredAt,
		&reg.Score,
		&grade,
		&reg.CreditHours,
		&reg.Notes,
	)
	if err != nil {
		return nil, err
	}

	reg.Grade = grading.GradePoint(grade)
	return &reg, nil
}

var _ student.Repository = (*StudentRepository)(nil)
