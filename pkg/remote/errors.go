package remote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/hireflow/pkg/models"
)

var (
	// ErrValidationRejected indicates the server declined a write with field-level reasons.
	ErrValidationRejected = errors.New("validation rejected")

	// ErrTransportFailure indicates a network or server error without a structured payload.
	ErrTransportFailure = errors.New("transport failure")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries the validation_errors payload of a 400 response.
type ValidationError struct {
	Op     string
	Fields models.FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields.Fields() {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], ", "))
	}

	return fmt.Sprintf("%s: %s (%s)", e.Op, ErrValidationRejected, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationRejected
}

// TransportError wraps a failed request. StatusCode is zero when no
// response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, ErrTransportFailure, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransportFailure, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransportFailure, e.Err}
}

// retryable reports whether repeating the request may succeed.
func (e *TransportError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// IsValidationRejected reports whether err is a structured validation rejection.
func IsValidationRejected(err error) bool {
	return errors.Is(err, ErrValidationRejected)
}

// IsTransportFailure reports whether err is an unstructured request failure.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrTransportFailure)
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FieldErrorsOf extracts the field errors of a validation rejection.
func FieldErrorsOf(err error) (models.FieldErrors, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}

	return nil, false
}
