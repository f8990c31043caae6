// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bitcollege/registrar/internal/domain/grading"
	"github.com/bitcollege/registrar/internal/domain/numbering"
	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/pkg/circuitbreaker"
	"github.com/bitcollege/registrar/pkg/logger"
	"github.com/bitcollege/registrar/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIER ASSIGNER
// Issues student, course and registration numbers from the sequence allocator.
// Transient allocator failures are retried; a run of failures opens the
// breaker and callers fail fast until the allocator recovers.
// ══════════════════════════════════════════════════════════════════════════════

// IdentifierAssignerConfig contains configuration for the assigner.
type IdentifierAssignerConfig struct {
	RetryAttempts    int
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// DefaultIdentifierAssignerConfig returns default configuration.
func DefaultIdentifierAssignerConfig() IdentifierAssignerConfig {
	return IdentifierAssignerConfig{
		RetryAttempts:    3,
		BreakerThreshold: 5,
		BreakerTimeout:   10 * time.Second,
	}
}

// IdentifierAssigner hands out business numbers.
type IdentifierAssigner struct {
	allocator numbering.Allocator
	retrier   *retry.Retrier
	breaker   *circuitbreaker.CircuitBreaker
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewIdentifierAssigner creates a new IdentifierAssigner. publisher may be nil.
func NewIdentifierAssigner(
	allocator numbering.Allocator,
	config IdentifierAssignerConfig,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *IdentifierAssigner {
	defaults := DefaultIdentifierAssignerConfig()
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("identifier_assigner"))

	breaker := circuitbreaker.New("sequence-allocator",
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithTimeout(config.BreakerTimeout),
		circuitbreaker.WithIsFailure(isAllocatorFault),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
	)

	return newIdentifierAssigner(allocator, retry.Allocation(config.RetryAttempts), breaker, publisher, log)
}

func newIdentifierAssigner(
	allocator numbering.Allocator,
	retrier *retry.Retrier,
	breaker *circuitbreaker.CircuitBreaker,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *IdentifierAssigner {
	return &IdentifierAssigner{
		allocator: allocator,
		retrier:   retrier,
		breaker:   breaker,
		publisher: publisher,
		log:       log,
	}
}

// BreakerState exposes the allocator breaker state.
func (a *IdentifierAssigner) BreakerState() circuitbreaker.State {
	return a.breaker.State()
}

// StudentNumber issues the next student number.
func (a *IdentifierAssigner) StudentNumber(ctx context.Context) (int64, error) {
	n, err := a.Next(ctx, numbering.Student)
	if err != nil {
		return 0, err
	}
	a.announce(numbering.Student, strconv.FormatInt(n, 10))
	return n, nil
}

// RegistrationNumber issues the next registration number.
func (a *IdentifierAssigner) RegistrationNumber(ctx context.Context) (int64, error) {
	n, err := a.Next(ctx, numbering.Registration)
	if err != nil {
		return 0, err
	}
	a.announce(numbering.Registration, strconv.FormatInt(n, 10))
	return n, nil
}

// CourseNumber issues the next number of the course type's sequence and
// formats it with the type prefix, e.g. "M-20000".
func (a *IdentifierAssigner) CourseNumber(ctx context.Context, t grading.CourseType) (string, error) {
	category, err := numbering.CategoryForCourse(t)
	if err != nil {
		return "", err
	}
	n, err := a.Next(ctx, category)
	if err != nil {
		return "", err
	}
	number, err := numbering.FormatCourseNumber(t, n)
	if err != nil {
		return "", err
	}
	a.announce(category, number)
	return number, nil
}

// Next allocates a raw number. Unknown categories are rejected without
// touching the allocator; every other failure is reported as
// shared.ErrAllocationUnavailable.
func (a *IdentifierAssigner) Next(ctx context.Context, category numbering.Category) (int64, error) {
	if !category.IsValid() {
		_, err := category.Seed()
		return 0, err
	}

	log := a.log.With(logger.Category(category.String()))
	start := time.Now()
	attempt := 0

	n, err := retry.DoWithData(ctx, a.retrier, func(ctx context.Context) (int64, error) {
		attempt++
		var issued int64
		err := a.breaker.Execute(ctx, func(ctx context.Context) error {
			var allocErr error
			issued, allocErr = a.allocator.AllocateNext(ctx, category)
			return allocErr
		})
		if err == nil {
			return issued, nil
		}
		if circuitbreaker.IsRejection(err) || errors.Is(err, shared.ErrUnknownCategory) {
			return 0, retry.Permanent(err)
		}
		log.Warn("allocation attempt failed", logger.Attempt(attempt), logger.Err(err))
		return 0, err
	})
	if err != nil {
		log.Error("allocation failed", logger.Attempt(attempt), logger.Latency(time.Since(start)), logger.Err(err))
		return 0, shared.ErrAllocationUnavailable.Wrap(err)
	}

	log.Debug("number allocated", logger.Int64("number", n), logger.Latency(time.Since(start)))
	return n, nil
}

func (a *IdentifierAssigner) announce(category numbering.Category, number string) {
	if a.publisher == nil {
		return
	}
	event := shared.EntityNumberedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventEntityNumbered, number),
		Category:  category.String(),
		Number:    number,
	}
	if err := a.publisher.Publish(event); err != nil {
		a.log.Warn("failed to publish numbering event", logger.Category(category.String()), logger.Err(err))
	}
}

// isAllocatorFault decides which failures count against the breaker.
// Cancelled callers and bad input say nothing about the allocator's health.
func isAllocatorFault(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, shared.ErrUnknownCategory):
		return false
	default:
		return true
	}
}
