package student

import (
	"time"

	"github.com/bitcollege/registrar/internal/domain/grading"
)

// Registration records one enrolment of a student in a course.
type Registration struct {
	ID                 int64
	RegistrationNumber int64
	StudentID          int64
	CourseID           int64
	RegisteredAt       time.Time

	// Score is the raw [0, 1] result; nil until graded.
	Score *float64
	Grade grading.GradePoint

	// CreditHours is copied from the course at read time and weights the GPA.
	CreditHours float64
	Notes       string
}

// IsGraded reports whether a score has been recorded.
func (r Registration) IsGraded() bool {
	return r.Score != nil
}

// ComputeGPA returns the credit-hour weighted mean of counted grade points.
// Pass, fail and incomplete outcomes are ignored. The result is nil when no
// registration carries a counted grade with positive credit hours.
func ComputeGPA(regs []Registration) *float64 {
	var points, hours float64
	for _, r := range regs {
		if !r.IsGraded() || r.CreditHours <= 0 {
			continue
		}
		value, ok := r.Grade.Value()
		if !ok {
			continue
		}
		points += value * r.CreditHours
		hours += r.CreditHours
	}
	if hours == 0 {
		return nil
	}
	gpa := points / hours
	return &gpa
}
