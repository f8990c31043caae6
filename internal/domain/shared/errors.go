// Package shared contains common domain types, errors and events that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrInconsistent    = errors.New("internal consistency failure")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLockNotAcquired        = errors.New("lock not acquired")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "standing", "numbering", "registration"
	Op      string // Operation that failed, e.g., "Reconcile", "AllocateNext"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching. Two domain errors match when they
// describe the same failure, so wrapped copies of a sentinel still match it.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) && de.Domain == e.Domain && de.Op == e.Op && de.Kind == e.Kind {
		return true
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// Wrap returns a copy of the error carrying err as its cause.
func (e *DomainError) Wrap(err error) *DomainError {
	return &DomainError{
		Domain:  e.Domain,
		Op:      e.Op,
		Kind:    e.Kind,
		Message: e.Message,
		Err:     err,
	}
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student errors
var (
	ErrStudentNotFound  = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrInvalidStudentID = NewDomainError("student", "Validate", ErrInvalidID, "invalid student ID")
)

// Standing errors
var (
	ErrUnknownStanding   = NewDomainError("standing", "Lookup", ErrInvalidID, "unknown academic standing")
	ErrReconcileDiverged = NewDomainError("standing", "Reconcile", ErrInconsistent, "standing did not stabilise within the transition cap")
)

// Grading errors
var (
	ErrScoreOutOfRange = NewDomainError("grading", "GradeValue", ErrValueOutOfRange, "score must be within [0, 1]")
)

// Numbering errors
var (
	ErrAllocationUnavailable = NewDomainError("numbering", "AllocateNext", ErrServiceUnavailable, "allocation unavailable")
	ErrUnknownCategory       = NewDomainError("numbering", "AllocateNext", ErrInvalidInput, "unknown sequence category")
)

// Course errors
var (
	ErrCourseNotFound    = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrInvalidCourseType = NewDomainError("course", "Validate", ErrInvalidInput, "invalid course type")
	ErrInvalidTuition    = NewDomainError("course", "Validate", ErrValueOutOfRange, "tuition amount cannot be negative")
)

// Registration errors. The codes match the ones the registration procedure
// has always reported, see RegistrationErrorCode.
var (
	ErrUngradedRegistration = NewDomainError("registration", "Register", ErrAlreadyExists, "student cannot register for a course in which there is already an ungraded registration")
	ErrMaxAttemptsExceeded  = NewDomainError("registration", "Register", ErrInvalidState, "student has exceeded maximum attempts on mastery course")
	ErrRegistrationUpdate   = NewDomainError("registration", "Update", ErrInvalidState, "an error has occurred while updating the registration")
	ErrRegistrationNotFound = NewDomainError("registration", "Find", ErrNotFound, "registration not found")
	ErrRegistrationGraded   = NewDomainError("registration", "Grade", ErrAlreadyExists, "registration already has a grade")
)

// RegistrationErrorCode returns the numeric code for a registration failure,
// or 0 when err is not one of the registration rule violations.
func RegistrationErrorCode(err error) int {
	switch {
	case errors.Is(err, ErrUngradedRegistration):
		return -100
	case errors.Is(err, ErrMaxAttemptsExceeded):
		return -200
	case errors.Is(err, ErrRegistrationUpdate):
		return -300
	default:
		return 0
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
