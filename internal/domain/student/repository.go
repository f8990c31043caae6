package student

import (
	"context"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/standing"
)

// Repository persists students.
type Repository interface {
	// Create stores a new student and fills in its ID.
	Create(ctx context.Context, s *Student) error

	// GetByID loads the student with registrations, oldest first.
	// Returns shared.ErrStudentNotFound when nothing matches.
	GetByID(ctx context.Context, id int64) (*Student, error)

	// UpdateStanding writes only the standing column.
	UpdateStanding(ctx context.Context, id int64, standingID standing.ID) error

	// RecalculateGPA recomputes and stores the GPA from graded registrations.
	// The returned value is nil when the student has no counted grades.
	RecalculateGPA(ctx context.Context, id int64) (*float64, error)

	// ListIDs returns every student id in ascending order.
	ListIDs(ctx context.Context) ([]int64, error)
}

// RegistrationRepository persists course registrations.
type RegistrationRepository interface {
	// Create stores a new registration and fills in its ID.
	Create(ctx context.Context, r *Registration) error

	// GetByID returns shared.ErrRegistrationNotFound when nothing matches.
	GetByID(ctx context.Context, id int64) (*Registration, error)

	// HasUngraded reports whether the student has an ungraded registration
	// for the course.
	HasUngraded(ctx context.Context, studentID, courseID int64) (bool, error)

	// CountAttempts returns the number of registrations the student has
	// for the course.
	CountAttempts(ctx context.Context, studentID, courseID int64) (int, error)

	// RecordGrade stores the score and grade point. Returns
	// shared.ErrRegistrationGraded if a grade was already recorded.
	RecordGrade(ctx context.Context, id int64, score float64, grade grading.GradePoint) error
}
