package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidTransition: the target state is not reachable from the
	// current state for this kind.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeOrphanedParent: a referenced parent does not exist.
	ErrCodeOrphanedParent ErrorCode = "ORPHANED_PARENT"

	// ErrCodeCycleDetected: the ancestor chain loops back or exceeds MaxDepth.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeAggregationInconsistency: a recomputed total could not be reconciled.
	ErrCodeAggregationInconsistency ErrorCode = "AGGREGATION_INCONSISTENCY"

	// ErrCodeStoreUnavailable: the record store failed a read or write.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeNotFound: the entity named by the call does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidHierarchy: the parent is not exactly one level above the child.
	ErrCodeInvalidHierarchy ErrorCode = "INVALID_HIERARCHY"
)

// Error is the typed error returned by engine operations.
type Error struct {
	Code     ErrorCode
	Message  string
	EntityID string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EntityID != "" {
		msg += fmt.Sprintf(" (entity=%s)", e.EntityID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, entityID string, format string, args ...any) *Error {
	return &Error{Code: code, EntityID: entityID, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error around a cause.
func WrapError(code ErrorCode, entityID string, err error, format string, args ...any) *Error {
	return &Error{Code: code, EntityID: entityID, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsInvalidTransition(err error) bool { return CodeOf(err) == ErrCodeInvalidTransition }

func IsOrphanedParent(err error) bool { return CodeOf(err) == ErrCodeOrphanedParent }

func IsCycleDetected(err error) bool { return CodeOf(err) == ErrCodeCycleDetected }

func IsAggregationInconsistency(err error) bool {
	return CodeOf(err) == ErrCodeAggregationInconsistency
}

func IsStoreUnavailable(err error) bool { return CodeOf(err) == ErrCodeStoreUnavailable }

func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

func IsInvalidHierarchy(err error) bool { return CodeOf(err) == ErrCodeInvalidHierarchy }
