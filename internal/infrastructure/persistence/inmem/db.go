// Package inmem is a process-local implementation of every registrar store.
// It backs the CLI's memory mode and the application tests.
package inmem

import (
	"sync"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/numbering"
	"github.com/bitcollege/registrar/internal/domain/standing"
	"github.com/bitcollege/registrar/internal/domain/student"
)

// DB holds all tables behind a single lock.
type DB struct {
	mu sync.RWMutex

	standings     map[standing.ID]string
	students      map[int64]*student.Student
	courses       map[int64]*course.Course
	registrations map[int64]*student.Registration
	counters      map[numbering.Category]int64

	nextStudentPK      int64
	nextCoursePK       int64
	nextRegistrationPK int64
}

// NewDB returns an empty database.
func NewDB() *DB {
	return &DB{
		standings:     make(map[standing.ID]string),
		students:      make(map[int64]*student.Student),
		courses:       make(map[int64]*course.Course),
		registrations: make(map[int64]*student.Registration),
		counters:      make(map[numbering.Category]int64),
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
