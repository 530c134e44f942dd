package lifecycle

import (
	"slices"
	"strings"

	"github.com/dukex/hireflow/pkg/models"
)

// Action is a lifecycle action name as used by the remote API.
type Action string

const (
	ActionRequestApproval Action = "request-approval"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionPublish         Action = "publish"
	ActionHold            Action = "hold"
	ActionResume          Action = "resume"
	ActionClose           Action = "close"
	ActionArchive         Action = "archive"
	ActionRevert          Action = "revert-to-draft"
	ActionClone           Action = "clone"
)

// MinRejectReasonLength is the minimum rune count of a rejection explanation.
const MinRejectReasonLength = 10

type actionSpec struct {
	target models.LifecycleStatus // empty for clone
	from   []models.LifecycleStatus
	reason bool
}

// Every (from, target) pair below must be an edge of the transition table;
// availability is always re-checked against Transitions.
var actionSpecs = map[Action]actionSpec{
	ActionRequestApproval: {target: models.StatusPendingApproval, from: []models.LifecycleStatus{models.StatusDraft}},
	ActionApprove:         {target: models.StatusApproved, from: []models.LifecycleStatus{models.StatusPendingApproval}},
	ActionReject:          {target: models.StatusRejected, from: []models.LifecycleStatus{models.StatusPendingApproval}, reason: true},
	ActionPublish:         {target: models.StatusPublished, from: []models.LifecycleStatus{models.StatusDraft, models.StatusApproved}},
	ActionHold:            {target: models.StatusOnHold, from: []models.LifecycleStatus{models.StatusPublished}},
	ActionResume:          {target: models.StatusPublished, from: []models.LifecycleStatus{models.StatusOnHold}},
	ActionClose:           {target: models.StatusClosed, from: []models.LifecycleStatus{models.StatusPublished, models.StatusOnHold}, reason: true},
	ActionArchive:         {target: models.StatusArchived, from: []models.LifecycleStatus{models.StatusClosed}},
	ActionRevert:          {target: models.StatusDraft, from: []models.LifecycleStatus{models.StatusRejected, models.StatusClosed}},
	ActionClone:           {},
}

var actionOrder = []Action{
	ActionRequestApproval,
	ActionApprove,
	ActionReject,
	ActionPublish,
	ActionHold,
	ActionResume,
	ActionClose,
	ActionArchive,
	ActionRevert,
	ActionClone,
}

// Actions returns every action in display order.
func Actions() []Action {
	return slices.Clone(actionOrder)
}

// ParseAction resolves a raw action name. "revert" is accepted for revert-to-draft.
func ParseAction(raw string) (Action, error) {
	normalized := Action(strings.ToLower(strings.TrimSpace(raw)))
	if normalized == "revert" {
		return ActionRevert, nil
	}

	if _, ok := actionSpecs[normalized]; !ok {
		return "", ErrUnknownAction
	}

	return normalized, nil
}

// Target returns the status the action moves a position to. Clone has none.
func (a Action) Target() (models.LifecycleStatus, bool) {
	spec, ok := actionSpecs[a]
	if !ok || spec.target == "" {
		return "", false
	}

	return spec.target, true
}

// RequiresReason reports whether the action needs a reason before it is attempted.
func (a Action) RequiresReason() bool {
	return actionSpecs[a].reason
}

// ConsumesTransition is false only for clone.
func (a Action) ConsumesTransition() bool {
	_, ok := a.Target()

	return ok
}

// AvailableFrom reports whether the action may be invoked on a position in status.
func (a Action) AvailableFrom(status models.LifecycleStatus) bool {
	spec, ok := actionSpecs[a]
	if !ok {
		return false
	}

	if spec.target == "" {
		return true
	}

	return slices.Contains(spec.from, status) && CanTransition(status, spec.target)
}

// CloseReason classifies why a position was closed.
type CloseReason string

const (
	CloseFilled    CloseReason = "filled"
	CloseCancelled CloseReason = "cancelled"
	CloseBudget    CloseReason = "budget"
	CloseDuplicate CloseReason = "duplicate"
	CloseOther     CloseReason = "other"
)

var closeReasons = []CloseReason{CloseFilled, CloseCancelled, CloseBudget, CloseDuplicate, CloseOther}

// CloseReasons lists the accepted close reasons.
func CloseReasons() []CloseReason {
	return slices.Clone(closeReasons)
}

// ActionOption is one entry of an ActionSet.
type ActionOption struct {
	Action         Action                 `json:"action"`
	Target         models.LifecycleStatus `json:"target,omitempty"`
	RequiresReason bool                   `json:"requires_reason"`
}

// ActionSet is the validated set of actions for one position.
type ActionSet struct {
	Status  models.LifecycleStatus `json:"status"`
	Options []ActionOption         `json:"actions"`
}

// Has reports whether action is in the set.
func (s ActionSet) Has(action Action) bool {
	for _, opt := range s.Options {
		if opt.Action == action {
			return true
		}
	}

	return false
}

// AvailableActions derives the action set for status from the transition table.
func AvailableActions(status models.LifecycleStatus) ActionSet {
	set := ActionSet{Status: status}

	for _, action := range actionOrder {
		if !action.AvailableFrom(status) {
			continue
		}

		target, _ := action.Target()
		set.Options = append(set.Options, ActionOption{
			Action:         action,
			Target:         target,
			RequiresReason: action.RequiresReason(),
		})
	}

	return set
}
