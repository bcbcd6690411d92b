package services

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden means the policy denied the actor for this task/action.
	ErrForbidden = errors.New("not allowed to access this task")
	// ErrTaskNotFound means the referenced task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrUserNotFound means the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict means a concurrent mutation invalidated this one; the
	// caller may retry with fresh state.
	ErrConflict = errors.New("concurrent modification, retry with fresh state")
)

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

// fieldErrors accumulates per-field validation messages and converts to a
// *ValidationError only when something was actually recorded.
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) asError() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func validationError(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}
