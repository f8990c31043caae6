package standing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeHistory struct {
	gpa          *float64
	count        int
	latestGraded bool
}

func (h fakeHistory) GPA() (float64, bool) {
	if h.gpa == nil {
		return 0, false
	}
	return *h.gpa, true
}

func (h fakeHistory) RegistrationCount() int         { return h.count }
func (h fakeHistory) LatestRegistrationGraded() bool { return h.latestGraded }

func TestTuitionFactor(t *testing.T) {
	tests := []struct {
		name string
		s    Standing
		h    fakeHistory
		want float64
	}{
		{"suspended no gpa", Suspended, fakeHistory{}, 1.1},
		{"suspended gpa 0.80", Suspended, fakeHistory{gpa: ptr(0.80)}, 1.1},
		{"suspended gpa 0.75 is not poor", Suspended, fakeHistory{gpa: ptr(0.75)}, 1.1},
		{"suspended gpa 0.70", Suspended, fakeHistory{gpa: ptr(0.70)}, 1.3},
		{"suspended gpa 0.50", Suspended, fakeHistory{gpa: ptr(0.50)}, 1.3},
		{"suspended gpa 0.40", Suspended, fakeHistory{gpa: ptr(0.40)}, 1.6},

		{"probation empty history", Probation, fakeHistory{}, 1.075},
		{"probation four graded", Probation, fakeHistory{count: 4, latestGraded: true}, 1.075},
		{"probation five graded", Probation, fakeHistory{count: 5, latestGraded: true}, 1.035},
		{"probation five latest ungraded", Probation, fakeHistory{count: 5}, 1.075},

		{"regular", Regular, fakeHistory{gpa: ptr(3.0)}, 1.0},
		{"regular five graded", Regular, fakeHistory{gpa: ptr(3.0), count: 8, latestGraded: true}, 1.0},

		{"honours default", Honours, fakeHistory{gpa: ptr(4.0)}, 0.9},
		{"honours gpa 4.25 no bonus", Honours, fakeHistory{gpa: ptr(4.25)}, 0.9},
		{"honours gpa 4.30 bonus", Honours, fakeHistory{gpa: ptr(4.30)}, 0.92},
		{"honours five graded", Honours, fakeHistory{gpa: ptr(4.0), count: 5, latestGraded: true}, 0.15},
		{"honours five graded high gpa", Honours, fakeHistory{gpa: ptr(4.3), count: 5, latestGraded: true}, 0.15},
		{"honours five latest ungraded high gpa", Honours, fakeHistory{gpa: ptr(4.3), count: 5}, 0.92},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TuitionFactor(tt.s, tt.h), 1e-9)
		})
	}
}
