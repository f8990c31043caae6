// Package grading maps raw course scores to standardized grade points.
package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/bitcollege/registrar/internal/domain/shared"
)

// CourseType discriminates how a course is assessed.
type CourseType string

const (
	CourseAudit   CourseType = "Audit"
	CourseMastery CourseType = "Mastery"
	CourseGraded  CourseType = "Graded"
)

// IsValid reports whether t is one of the known course types.
func (t CourseType) IsValid() bool {
	switch t {
	case CourseAudit, CourseMastery, CourseGraded:
		return true
	default:
		return false
	}
}

// String returns the course type name.
func (t CourseType) String() string {
	return string(t)
}

// ParseCourseType matches a course type name case-insensitively.
// Anything unrecognised is treated as an audit course.
func ParseCourseType(s string) CourseType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "graded":
		return CourseGraded
	case "mastery":
		return CourseMastery
	default:
		return CourseAudit
	}
}

// GradePoint is the standardized outcome of an assessed course.
type GradePoint string

const (
	APlus      GradePoint = "A+"
	A          GradePoint = "A"
	BPlus      GradePoint = "B+"
	B          GradePoint = "B"
	CPlus      GradePoint = "C+"
	C          GradePoint = "C"
	D          GradePoint = "D"
	F          GradePoint = "F"
	Pass       GradePoint = "Pass"
	Fail       GradePoint = "Fail"
	Incomplete GradePoint = "Incomplete"
)

// points holds the GPA weight of every letter grade.
var points = map[GradePoint]float64{
	APlus: 4.5,
	A:     4.0,
	BPlus: 3.5,
	B:     3.0,
	CPlus: 2.5,
	C:     2.0,
	D:     1.0,
	F:     0.0,
}

// Value returns the numeric grade point used in GPA aggregation.
// ok is false for pass/fail and incomplete outcomes, which carry no weight.
func (g GradePoint) Value() (value float64, ok bool) {
	value, ok = points[g]
	return value, ok
}

// Counts reports whether the grade contributes to a GPA.
func (g GradePoint) Counts() bool {
	_, ok := points[g]
	return ok
}

// String returns the grade label.
func (g GradePoint) String() string {
	return string(g)
}

// threshold is the inclusive lower bound of a letter grade band.
type threshold struct {
	min   float64
	grade GradePoint
}

// gradedScale is ordered highest first; the first match wins.
var gradedScale = []threshold{
	{0.90, APlus},
	{0.80, A},
	{0.75, BPlus},
	{0.70, B},
	{0.65, CPlus},
	{0.60, C},
	{0.50, D},
}

// MasteryPassMark is the minimum score that passes a mastery course.
const MasteryPassMark = 0.75

// GradeValue converts a score in [0, 1] into a grade point for the course type.
// Scores outside the range are rejected rather than clamped.
func GradeValue(score float64, t CourseType) (GradePoint, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return "", shared.ErrScoreOutOfRange.Wrap(fmt.Errorf("score %v", score))
	}

	switch t {
	case CourseGraded:
		for _, th := range gradedScale {
			if score >= th.min {
				return th.grade, nil
			}
		}
		return F, nil
	case CourseMastery:
		if score >= MasteryPassMark {
			return Pass, nil
		}
		return Fail, nil
	default:
		return Incomplete, nil
	}
}
