package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/pkg/logger"
	"github.com/bitcollege/registrar/pkg/retry"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errLockHeld = errors.New("lock held by another owner")

// LockConfig controls acquisition of student locks.
type LockConfig struct {
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration

	// Wait bounds the total time spent polling a held lock.
	Wait time.Duration

	PollInterval time.Duration
}

// StudentLocker serializes work on one student across processes with
// SET NX PX and a random token.
type StudentLocker struct {
	cache  *Cache
	config LockConfig
	log    *logger.Logger
}

// NewStudentLocker creates a new StudentLocker.
func NewStudentLocker(cache *Cache, config LockConfig, log *logger.Logger) *StudentLocker {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 50 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StudentLocker{cache: cache, config: config, log: log.With(logger.Component("student-lock"))}
}

// Lock blocks until the student's lock is held or Wait elapses.
// The returned release func is safe to call once.
func (l *StudentLocker) Lock(ctx context.Context, studentID int64) (func(), error) {
	key := l.cache.LockKey("student:" + strconv.FormatInt(studentID, 10))
	token := uuid.NewString()

	attempts := 1
	waitCtx := ctx
	if l.config.Wait > 0 {
		attempts += int(l.config.Wait / l.config.PollInterval)
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.config.Wait)
		defer cancel()
	}

	err := retry.Lock(attempts, l.config.PollInterval).Do(waitCtx, func(ctx context.Context) error {
		ok, err := l.cache.Client().SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	})
	if err != nil {
		// Running out of Wait mid-poll means the lock stayed held.
		if errors.Is(err, errLockHeld) || (ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)) {
			return nil, shared.WrapError("student", "Lock", shared.ErrLockNotAcquired,
				fmt.Sprintf("student %d is being reconciled elsewhere", studentID), err)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	release := func() {
		// The caller's context may already be cancelled; release regardless.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.cache.Client(), []string{key}, token).Err(); err != nil {
			l.log.Warn("failed to release lock", logger.StudentID(studentID), logger.Err(err))
		}
	}
	return release, nil
}
