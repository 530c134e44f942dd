// Package services provides the workflow view catalog and position
// operations used by the HTTP layer.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/hireflow/pkg/board"
	"github.com/dukex/hireflow/pkg/fieldrender"
	"github.com/dukex/hireflow/pkg/lifecycle"
	"github.com/dukex/hireflow/pkg/remote"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownField   = errors.New("unknown field")

	// Not Found Errors (404 Not Found).
	ErrPositionNotInWorkflow = errors.New("position not found in workflow")

	// Business Logic Conflicts (409 Conflict).
	ErrFieldLocked       = errors.New("field is locked")
	ErrStaleView         = errors.New("workflow view was discarded while loading")
	ErrWorkflowNotLoaded = errors.New("workflow is not loaded")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownField) ||
		lifecycle.IsInputError(err) ||
		errors.Is(err, fieldrender.ErrInvalidValue) ||
		errors.Is(err, fieldrender.ErrUnknownOption) ||
		errors.Is(err, fieldrender.ErrUnsupportedChange)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrFieldLocked) ||
		errors.Is(err, ErrStaleView) ||
		errors.Is(err, ErrWorkflowNotLoaded) ||
		lifecycle.IsInvalidTransition(err) ||
		errors.Is(err, lifecycle.ErrActionPending) ||
		errors.Is(err, board.ErrMovePending) ||
		errors.Is(err, board.ErrClosed)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPositionNotInWorkflow) ||
		errors.Is(err, board.ErrUnknownPosition) ||
		errors.Is(err, board.ErrUnknownStage) ||
		remote.IsNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewLockedFieldError reports a write to a field locked by the lifecycle status.
func NewLockedFieldError(op, field, reason string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    "FIELD_LOCKED",
		Message: fmt.Sprintf("%s is locked: %s", field, reason),
		Err:     ErrFieldLocked,
	}
}
