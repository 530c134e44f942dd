// Package lifecycle holds the position publishing state machine: the fixed
// transition table, per-status field lock rules and the controller that
// performs lifecycle actions against the remote API.
package lifecycle

import (
	"slices"

	"github.com/dukex/hireflow/pkg/models"
)

// transitions is the complete directed edge set. Nothing else may add edges.
var transitions = map[models.LifecycleStatus][]models.LifecycleStatus{
	models.StatusDraft:           {models.StatusPendingApproval, models.StatusPublished},
	models.StatusPendingApproval: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:        {models.StatusPublished},
	models.StatusRejected:        {models.StatusDraft},
	models.StatusPublished:       {models.StatusOnHold, models.StatusClosed},
	models.StatusOnHold:          {models.StatusPublished, models.StatusClosed},
	models.StatusClosed:          {models.StatusArchived, models.StatusDraft},
	// ARCHIVED is terminal
}

// Transitions returns the statuses reachable from status in one step.
// The result is a fresh slice; callers may modify it.
func Transitions(status models.LifecycleStatus) []models.LifecycleStatus {
	return slices.Clone(transitions[status])
}

// CanTransition reports whether from -> to is an edge of the table.
func CanTransition(from, to models.LifecycleStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal reports whether status has no outgoing transitions.
func Terminal(status models.LifecycleStatus) bool {
	return len(transitions[status]) == 0
}

// FieldLockRule locks a field while a position is in a given status.
type FieldLockRule struct {
	Field  string
	Status models.LifecycleStatus
	Reason string
}

const anyField = "*"

const (
	reasonPendingApproval = "Position is awaiting approval. Withdraw or wait for a decision to edit."
	reasonApprovedBudget  = "Approved compensation and headcount are frozen."
	reasonPublished       = "Compensation, headcount and workflow cannot change on a published position."
	reasonClosed          = "Position is closed. Revert it to draft to edit."
	reasonArchived        = "Archived positions are read-only."
)

var lockRules = buildLockRules(
	rulesFor(models.StatusPendingApproval, reasonPendingApproval,
		models.AttrTitle, models.AttrDepartment, models.AttrHeadcount, models.AttrBudget,
		models.AttrSalaryMin, models.AttrSalaryMax, models.AttrWorkflowID, models.AttrCustomFieldConfig),
	rulesFor(models.StatusApproved, reasonApprovedBudget,
		models.AttrHeadcount, models.AttrBudget, models.AttrSalaryMin, models.AttrSalaryMax),
	rulesFor(models.StatusPublished, reasonPublished,
		models.AttrBudget, models.AttrSalaryMin, models.AttrSalaryMax, models.AttrHeadcount,
		models.AttrWorkflowID, models.AttrEmploymentType, models.AttrCustomFieldConfig),
	rulesFor(models.StatusOnHold, reasonPublished,
		models.AttrBudget, models.AttrSalaryMin, models.AttrSalaryMax, models.AttrHeadcount,
		models.AttrWorkflowID, models.AttrEmploymentType, models.AttrCustomFieldConfig),
	rulesFor(models.StatusClosed, reasonClosed, anyField),
)

// unlockedWhenClosed are the only fields still editable on a closed position.
var unlockedWhenClosed = []string{models.AttrInternalNotes}

type ruleKey struct {
	status models.LifecycleStatus
	field  string
}

func rulesFor(status models.LifecycleStatus, reason string, fields ...string) []FieldLockRule {
	rules := make([]FieldLockRule, 0, len(fields))
	for _, field := range fields {
		rules = append(rules, FieldLockRule{Field: field, Status: status, Reason: reason})
	}

	return rules
}

func buildLockRules(groups ...[]FieldLockRule) map[ruleKey]FieldLockRule {
	out := make(map[ruleKey]FieldLockRule)

	for _, group := range groups {
		for _, rule := range group {
			out[ruleKey{status: rule.Status, field: rule.Field}] = rule
		}
	}

	return out
}

// LockReason returns why field is locked in status, and whether it is.
func LockReason(status models.LifecycleStatus, field string) (string, bool) {
	if status == models.StatusArchived {
		return reasonArchived, true
	}

	if rule, ok := lockRules[ruleKey{status: status, field: field}]; ok {
		return rule.Reason, true
	}

	if rule, ok := lockRules[ruleKey{status: status, field: anyField}]; ok {
		if status == models.StatusClosed && slices.Contains(unlockedWhenClosed, field) {
			return "", false
		}

		return rule.Reason, true
	}

	return "", false
}

// IsFieldLocked reports whether field may not be written while in status.
// Unlisted fields are unlocked, except in ARCHIVED where everything is locked.
func IsFieldLocked(status models.LifecycleStatus, field string) bool {
	_, locked := LockReason(status, field)

	return locked
}

// LockedFields returns the locked subset of fields with their reasons.
func LockedFields(status models.LifecycleStatus, fields []string) map[string]string {
	locked := make(map[string]string)

	for _, field := range fields {
		if reason, ok := LockReason(status, field); ok {
			locked[field] = reason
		}
	}

	return locked
}
