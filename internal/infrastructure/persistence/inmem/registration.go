package inmem

import (
	"context"
	"fmt"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/student"
)

// RegistrationRepository implements student.RegistrationRepository.
type RegistrationRepository struct {
	db *DB
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(db *DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create implements student.RegistrationRepository.
func (r *RegistrationRepository) Create(_ context.Context, reg *student.Registration) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.students[reg.StudentID]; !ok {
		return shared.ErrStudentNotFound.Wrap(fmt.Errorf("id %d", reg.StudentID))
	}
	if _, ok := r.db.courses[reg.CourseID]; !ok {
		return shared.ErrCourseNotFound.Wrap(fmt.Errorf("id %d", reg.CourseID))
	}
	for _, existing := range r.db.registrations {
		if existing.RegistrationNumber == reg.RegistrationNumber {
			return shared.WrapError("registration", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("registration number %d already taken", reg.RegistrationNumber), nil)
		}
	}

	r.db.nextRegistrationPK++
	reg.ID = r.db.nextRegistrationPK
	stored := *reg
	stored.Score = copyFloat(reg.Score)
	r.db.registrations[stored.ID] = &stored
	return nil
}

// GetByID implements student.RegistrationRepository.
func (r *RegistrationRepository) GetByID(_ context.Context, id int64) (*student.Registration, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	reg, ok := r.db.registrations[id]
	if !ok {
		return nil, shared.ErrRegistrationNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	out := r.db.registrationView(reg)
	return &out, nil
}

// HasUngraded implements student.RegistrationRepository.
func (r *RegistrationRepository) HasUngraded(_ context.Context, studentID, courseID int64) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, reg := range r.db.registrations {
		if reg.StudentID == studentID && reg.CourseID == courseID && !reg.IsGraded() {
			return true, nil
		}
	}
	return false, nil
}

// CountAttempts implements student.RegistrationRepository.
func (r *RegistrationRepository) CountAttempts(_ context.Context, studentID, courseID int64) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, reg := range r.db.registrations {
		if reg.StudentID == studentID && reg.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// RecordGrade implements student.RegistrationRepository.
func (r *RegistrationRepository) RecordGrade(_ context.Context, id int64, score float64, grade grading.GradePoint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	reg, ok := r.db.registrations[id]
	if !ok {
		return shared.ErrRegistrationNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	if reg.IsGraded() {
		return shared.ErrRegistrationGraded.Wrap(fmt.Errorf("id %d", id))
	}
	reg.Score = &score
	reg.Grade = grade
	return nil
}

var _ student.RegistrationRepository = (*RegistrationRepository)(nil)
