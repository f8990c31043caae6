// Package numbering defines the business-number sequences (student numbers,
// course numbers, registration numbers) and how issued numbers are formatted.
package numbering

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/shared"
)

// Category names a counter. The value is the counter row key in storage.
type Category string

const (
	Student       Category = "NextStudent"
	GradedCourse  Category = "NextGradedCourse"
	MasteryCourse Category = "NextMasteryCourse"
	AuditCourse   Category = "NextAuditCourse"
	Registration  Category = "NextRegistration"
)

// seeds are the first numbers issued for each category.
var seeds = map[Category]int64{
	Student:       20_000_000,
	GradedCourse:  200_000,
	MasteryCourse: 20_000,
	AuditCourse:   2_000,
	Registration:  700,
}

// Categories returns every known category.
func Categories() []Category {
	return []Category{Student, GradedCourse, MasteryCourse, AuditCourse, Registration}
}

// Seed returns the first number issued for the category.
func (c Category) Seed() (int64, error) {
	seed, ok := seeds[c]
	if !ok {
		return 0, shared.ErrUnknownCategory.Wrap(fmt.Errorf("category %q", string(c)))
	}
	return seed, nil
}

// IsValid reports whether the category is known.
func (c Category) IsValid() bool {
	_, ok := seeds[c]
	return ok
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts either the counter name ("NextStudent") or its short
// form ("student", "graded-course").
func ParseCategory(s string) (Category, error) {
	switch s {
	case "student", "Student":
		return Student, nil
	case "graded-course", "graded":
		return GradedCourse, nil
	case "mastery-course", "mastery":
		return MasteryCourse, nil
	case "audit-course", "audit":
		return AuditCourse, nil
	case "registration":
		return Registration, nil
	}
	if c := Category(s); c.IsValid() {
		return c, nil
	}
	return "", shared.ErrUnknownCategory.Wrap(fmt.Errorf("category %q", s))
}

// Allocator atomically issues the next unused number of a category.
//
// The first call for a category returns its seed. Every later call returns a
// number strictly greater than all numbers issued before, including across
// restarts. Gaps are allowed after failures, duplicates never. A failed call
// issues nothing.
type Allocator interface {
	AllocateNext(ctx context.Context, category Category) (int64, error)
}

// CategoryForCourse returns the counter that numbers courses of type t.
func CategoryForCourse(t grading.CourseType) (Category, error) {
	switch t {
	case grading.CourseGraded:
		return GradedCourse, nil
	case grading.CourseMastery:
		return MasteryCourse, nil
	case grading.CourseAudit:
		return AuditCourse, nil
	default:
		return "", shared.ErrInvalidCourseType.Wrap(fmt.Errorf("course type %q", string(t)))
	}
}

// coursePrefixes maps course types to their number prefix.
var coursePrefixes = map[grading.CourseType]string{
	grading.CourseGraded:  "G",
	grading.CourseMastery: "M",
	grading.CourseAudit:   "A",
}

// FormatCourseNumber renders a course number, e.g. "G-200000".
func FormatCourseNumber(t grading.CourseType, n int64) (string, error) {
	prefix, ok := coursePrefixes[t]
	if !ok {
		return "", shared.ErrInvalidCourseType.Wrap(fmt.Errorf("course type %q", string(t)))
	}
	return prefix + "-" + strconv.FormatInt(n, 10), nil
}
