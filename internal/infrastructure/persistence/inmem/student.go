package inmem

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
)

// StudentRepository implements student.Repository.
type StudentRepository struct {
	db *DB
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db *DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create implements student.Repository.
func (r *StudentRepository) Create(_ context.Context, s *student.Student) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.students {
		if existing.StudentNumber == s.StudentNumber {
			return shared.WrapError("student", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("student number %d already taken", s.StudentNumber), nil)
		}
	}

	r.db.nextStudentPK++
	s.ID = r.db.nextStudentPK

	stored := *s
	stored.GradePointAverage = copyFloat(s.GradePointAverage)
	stored.Registrations = nil
	r.db.students[stored.ID] = &stored
	return nil
}

// GetByID implements student.Repository.
func (r *StudentRepository) GetByID(_ context.Context, id int64) (*student.Student, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound.Wrap(fmt.Errorf("id %d", id))
	}

	out := *s
	out.GradePointAverage = copyFloat(s.GradePointAverage)
	out.Registrations = r.db.registrationsOf(id)
	return &out, nil
}

// UpdateStanding implements student.Repository.
func (r *StudentRepository) UpdateStanding(_ context.Context, id int64, standingID standing.ID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.students[id]
	if !ok {
		return shared.ErrStudentNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	s.StandingID = standingID
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// RecalculateGPA implements student.Repository.
func (r *StudentRepository) RecalculateGPA(_ context.Context, id int64) (*float64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound.Wrap(fmt.Errorf("id %d", id))
	}
	s.GradePointAverage = student.ComputeGPA(r.db.registrationsOf(id))
	s.UpdatedAt = time.Now().UTC()
	return copyFloat(s.GradePointAverage), nil
}

// ListIDs implements student.Repository.
func (r *StudentRepository) ListIDs(_ context.Context) ([]int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	ids := make([]int64, 0, len(r.db.students))
	for id := range r.db.students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// registrationsOf returns copies ordered oldest first. Callers hold db.mu.
func (db *DB) registrationsOf(studentID int64) []student.Registration {
	var regs []student.Registration
	for _, reg := range db.registrations {
		if reg.StudentID != studentID {
			continue
		}
		regs = append(regs, db.registrationView(reg))
	}
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
		}
		return regs[i].RegistrationNumber < regs[j].RegistrationNumber
	})
	return regs
}

// registrationView copies a row and joins the course credit hours.
func (db *DB) registrationView(reg *student.Registration) student.Registration {
	out := *reg
	out.Score = copyFloat(reg.Score)
	if c, ok := db.courses[reg.CourseID]; ok {
		out.CreditHours = c.CreditHours
	}
	return out
}

var _ student.Repository = (*StudentRepository)(nil)
