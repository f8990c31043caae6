package inmem

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/internal/domain/shared"
)

// CourseRepository implements course.Repository.
type CourseRepository struct {
	db *DB
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(db *DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create implements course.Repository.
func (r *CourseRepository) Create(_ context.Context, c *course.Course) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.courses {
		if existing.CourseNumber == c.CourseNumber {
			return shared.WrapError("course", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("course number %s already taken", c.CourseNumber), nil)
		}
	}

	r.db.nextCoursePK++
	c.ID = r.db.nextCoursePK
	stored := *c
	r.db.courses[stored.ID] = &stored
	return nil
}

// GetByID implements course.Repository.
func (r *CourseRepository) GetByID(_ context.Context, id int64) (*course.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.courses[id]; ok {
		out := *c
		return &out, nil
	}
	return nil, shared.ErrCourseNotFound.Wrap(fmt.Errorf("id %d", id))
}

// GetByNumber implements course.Repository.
func (r *CourseRepository) GetByNumber(_ context.Context, number string) (*course.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, c := range r.db.courses {
		if c.CourseNumber == number {
			out := *c
			return &out, nil
		}
	}
	return nil, shared.ErrCourseNotFound.Wrap(errors.New("number " + number))
}

var _ course.Repository = (*CourseRepository)(nil)
