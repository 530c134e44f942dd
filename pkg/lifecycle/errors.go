package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dukex/hireflow/pkg/models"
)

var (
	// ErrInvalidTransition is returned when an action's target status is not
	// reachable from the position's current status.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrUnknownAction is returned for action names outside the action set.
	ErrUnknownAction = errors.New("unknown lifecycle action")

	// ErrReasonRequired is returned when reject or close is attempted without a reason.
	ErrReasonRequired = errors.New("a reason is required")

	// ErrReasonTooShort is returned when a rejection reason is under the minimum length.
	ErrReasonTooShort = errors.New("reason is too short")

	// ErrInvalidCloseReason is returned for close reasons outside the known set.
	ErrInvalidCloseReason = errors.New("invalid close reason")

	// ErrActionPending is returned while another action on the same position
	// is outstanding. Callers treat it as a no-op.
	ErrActionPending = errors.New("an action is already in progress for this position")
)

// TransitionError describes a rejected lifecycle transition.
type TransitionError struct {
	Action Action
	From   models.LifecycleStatus
	To     models.LifecycleStatus
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s: action %q not available from %s", ErrInvalidTransition, e.Action, e.From)
	}

	return fmt.Sprintf("%s: action %q cannot move %s to %s", ErrInvalidTransition, e.Action, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsInvalidTransition reports whether err is an invalid transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsInputError reports whether err was caused by missing or invalid action input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrReasonTooShort) ||
		errors.Is(err, ErrInvalidCloseReason) ||
		errors.Is(err, ErrUnknownAction)
}
