package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/standing"
)

func score(f float64) *float64 { return &f }

func TestNewStudent(t *testing.T) {
	s, err := NewStudent(20_000_000, " Ada ", "Lovelace")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", s.FullName())
	assert.Equal(t, standing.SuspendedID, s.StandingID)
	assert.Nil(t, s.GradePointAverage)

	_, ok := s.GPA()
	assert.False(t, ok)
	assert.False(t, s.LatestRegistrationGraded())

	_, err = NewStudent(0, "Ada", "Lovelace")
	assert.Error(t, err)
	_, err = NewStudent(1, "", "Lovelace")
	assert.Error(t, err)
}

func TestLatestRegistration(t *testing.T) {
	t0 := time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)
	s := &Student{Registrations: []Registration{
		{RegistrationNumber: 700, RegisteredAt: t0, Score: score(0.9)},
		{RegistrationNumber: 702, RegisteredAt: t0.Add(time.Hour)},
		{RegistrationNumber: 701, RegisteredAt: t0.Add(time.Hour), Score: score(0.8)},
	}}

	latest, ok := s.LatestRegistration()
	require.True(t, ok)
	assert.Equal(t, int64(702), latest.RegistrationNumber)
	assert.False(t, s.LatestRegistrationGraded())
	assert.Equal(t, 3, s.RegistrationCount())
}

func TestComputeGPA(t *testing.T) {
	regs := []Registration{
		{Score: score(0.95), Grade: grading.APlus, CreditHours: 3},
		{Score: score(0.62), Grade: grading.C, CreditHours: 1},
		{Score: score(0.80), Grade: grading.Pass, CreditHours: 4},
		{Score: score(0.30), Grade: grading.Incomplete, CreditHours: 2},
		{CreditHours: 3},
	}

	gpa := ComputeGPA(regs)
	require.NotNil(t, gpa)
	assert.InDelta(t, (4.5*3+2.0*1)/4, *gpa, 1e-9)

	assert.Nil(t, ComputeGPA(nil))
	assert.Nil(t, ComputeGPA([]Registration{{Score: score(0.9), Grade: grading.Pass, CreditHours: 3}}))
}
