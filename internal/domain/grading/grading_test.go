package grading

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcollege/registrar/internal/domain/shared"
)

func TestGradeValue_Graded(t *testing.T) {
	tests := []struct {
		score float64
		want  GradePoint
		value float64
	}{
		{1.0, APlus, 4.5},
		{0.90, APlus, 4.5},
		{0.8999, A, 4.0},
		{0.895, A, 4.0},
		{0.80, A, 4.0},
		{0.75, BPlus, 3.5},
		{0.7499, B, 3.0},
		{0.70, B, 3.0},
		{0.65, CPlus, 2.5},
		{0.60, C, 2.0},
		{0.5999, D, 1.0},
		{0.50, D, 1.0},
		{0.4999, F, 0},
		{0, F, 0},
	}

	for _, tt := range tests {
		got, err := GradeValue(tt.score, CourseGraded)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "score %v", tt.score)

		value, ok := got.Value()
		assert.True(t, ok)
		assert.Equal(t, tt.value, value)
	}
}

func TestGradeValue_Mastery(t *testing.T) {
	got, err := GradeValue(0.75, CourseMastery)
	require.NoError(t, err)
	assert.Equal(t, Pass, got)

	got, err = GradeValue(0.7499, CourseMastery)
	require.NoError(t, err)
	assert.Equal(t, Fail, got)

	assert.False(t, Pass.Counts())
	assert.False(t, Fail.Counts())
}

func TestGradeValue_AuditAndUnknown(t *testing.T) {
	for _, ct := range []CourseType{CourseAudit, CourseType("Seminar")} {
		got, err := GradeValue(0.99, ct)
		require.NoError(t, err)
		assert.Equal(t, Incomplete, got)
		_, ok := got.Value()
		assert.False(t, ok)
	}
}

func TestGradeValue_RejectsOutOfRange(t *testing.T) {
	for _, score := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		for _, ct := range []CourseType{CourseGraded, CourseMastery, CourseAudit} {
			_, err := GradeValue(score, ct)
			require.Error(t, err, "score %v type %s", score, ct)
			assert.True(t, errors.Is(err, shared.ErrScoreOutOfRange))
			assert.True(t, shared.IsValidation(err))
		}
	}
}

func TestParseCourseType(t *testing.T) {
	assert.Equal(t, CourseGraded, ParseCourseType("graded"))
	assert.Equal(t, CourseGraded, ParseCourseType(" Graded "))
	assert.Equal(t, CourseMastery, ParseCourseType("MASTERY"))
	assert.Equal(t, CourseAudit, ParseCourseType("audit"))
	assert.Equal(t, CourseAudit, ParseCourseType("workshop"))

	assert.True(t, CourseMastery.IsValid())
	assert.False(t, CourseType("workshop").IsValid())
}
