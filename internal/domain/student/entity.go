// Package student contains the Student aggregate: identity, grade point
// average, current academic standing and course registration history.
package student

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/internal/domain/standing"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the aggregate root. Registrations are ordered oldest first when
// loaded from a repository.
type Student struct {
	ID            int64
	StudentNumber int64
	FirstName     string
	LastName      string

	// GradePointAverage is nil until the student has at least one counted grade.
	GradePointAverage *float64

	StandingID    standing.ID
	Registrations []Registration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStudent builds a freshly enrolled student. New students start on the
// floor of the standing ladder with no GPA.
func NewStudent(studentNumber int64, firstName, lastName string) (*Student, error) {
	s := &Student{
		StudentNumber: studentNumber,
		FirstName:     strings.TrimSpace(firstName),
		LastName:      strings.TrimSpace(lastName),
		StandingID:    standing.SuspendedID,
		CreatedAt:     time.Now().UTC(),
	}
	s.UpdatedAt = s.CreatedAt
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the aggregate invariants.
func (s *Student) Validate() error {
	if s.StudentNumber <= 0 {
		return shared.ErrInvalidStudentID.Wrap(fmt.Errorf("student number %d", s.StudentNumber))
	}
	if s.FirstName == "" || s.LastName == "" {
		return shared.WrapError("student", "Validate", shared.ErrValidation, "first and last name are required", nil)
	}
	if _, err := standing.Get(s.StandingID); err != nil {
		return err
	}
	return nil
}

// FullName returns "First Last".
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Standing resolves the stored standing id.
func (s *Student) Standing() (standing.Standing, error) {
	return standing.Get(s.StandingID)
}

// ══════════════════════════════════════════════════════════════════════════════
// standing.History
// ══════════════════════════════════════════════════════════════════════════════

// GPA implements standing.History.
func (s *Student) GPA() (float64, bool) {
	if s.GradePointAverage == nil || math.IsNaN(*s.GradePointAverage) {
		return 0, false
	}
	return *s.GradePointAverage, true
}

// RegistrationCount implements standing.History.
func (s *Student) RegistrationCount() int {
	return len(s.Registrations)
}

// LatestRegistrationGraded implements standing.History.
func (s *Student) LatestRegistrationGraded() bool {
	latest, ok := s.LatestRegistration()
	return ok && latest.IsGraded()
}

// LatestRegistration returns the most recent registration. Ties on
// RegisteredAt are broken by the higher registration number.
func (s *Student) LatestRegistration() (Registration, bool) {
	if len(s.Registrations) == 0 {
		return Registration{}, false
	}
	latest := s.Registrations[0]
	for _, r := range s.Registrations[1:] {
		if r.RegisteredAt.After(latest.RegisteredAt) ||
			(r.RegisteredAt.Equal(latest.RegisteredAt) && r.RegistrationNumber > latest.RegistrationNumber) {
			latest = r
		}
	}
	return latest, true
}

var _ standing.History = (*Student)(nil)
