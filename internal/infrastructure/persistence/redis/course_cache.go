package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bitcollege/registrar/internal/domain/course"
	"github.com/bitcollege/registrar/pkg/logger"
)

// CourseCache is a read-through cache in front of a course.Repository.
// Courses are immutable once created, so entries only expire by TTL.
type CourseCache struct {
	next  course.Repository
	cache *Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCourseCache wraps next.
func NewCourseCache(next course.Repository, cache *Cache, ttl time.Duration, log *logger.Logger) *CourseCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CourseCache{next: next, cache: cache, ttl: ttl, log: log.With(logger.Component("course-cache"))}
}

// Create stores the course and primes both lookup keys.
func (c *CourseCache) Create(ctx context.Context, crs *course.Course) error {
	if err := c.next.Create(ctx, crs); err != nil {
		return err
	}
	c.store(ctx, crs)
	return nil
}

// GetByID implements course.Repository.
func (c *CourseCache) GetByID(ctx context.Context, id int64) (*course.Course, error) {
	return c.lookup(ctx, c.cache.CourseKey("id:"+strconv.FormatInt(id, 10)), func() (*course.Course, error) {
		return c.next.GetByID(ctx, id)
	})
}

// GetByNumber implements course.Repository.
func (c *CourseCache) GetByNumber(ctx context.Context, number string) (*course.Course, error) {
	return c.lookup(ctx, c.cache.CourseKey("number:"+number), func() (*course.Course, error) {
		return c.next.GetByNumber(ctx, number)
	})
}

func (c *CourseCache) lookup(ctx context.Context, key string, load func() (*course.Course, error)) (*course.Course, error) {
	var cached course.Course
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("cache read failed", logger.String("key", key), logger.Err(err))
	}

	crs, err := load()
	if err != nil {
		return nil, err
	}
	c.store(ctx, crs)
	return crs, nil
}

func (c *CourseCache) store(ctx context.Context, crs *course.Course) {
	keys := []string{
		c.cache.CourseKey("id:" + strconv.FormatInt(crs.ID, 10)),
		c.cache.CourseKey("number:" + crs.CourseNumber),
	}
	for _, key := range keys {
		if err := c.cache.Set(ctx, key, crs, c.ttl); err != nil {
			c.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
}

var _ course.Repository = (*CourseCache)(nil)
