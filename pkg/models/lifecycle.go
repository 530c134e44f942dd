package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LifecycleStatus represents the publishing state of a position.
type LifecycleStatus string

const (
	StatusDraft           LifecycleStatus = "DRAFT"            // Editable, not visible to candidates
	StatusPendingApproval LifecycleStatus = "PENDING_APPROVAL" // Waiting on an approver
	StatusApproved        LifecycleStatus = "APPROVED"         // Approved, ready to publish
	StatusRejected        LifecycleStatus = "REJECTED"         // Sent back to the owner with a reason
	StatusPublished       LifecycleStatus = "PUBLISHED"        // Open and accepting candidates
	StatusOnHold          LifecycleStatus = "ON_HOLD"          // Temporarily paused
	StatusClosed          LifecycleStatus = "CLOSED"           // No longer accepting candidates
	StatusArchived        LifecycleStatus = "ARCHIVED"         // Terminal, fully read-only
)

var lifecycleStatuses = []LifecycleStatus{
	StatusDraft,
	StatusPendingApproval,
	StatusApproved,
	StatusRejected,
	StatusPublished,
	StatusOnHold,
	StatusClosed,
	StatusArchived,
}

// AllLifecycleStatuses returns every status in declaration order.
func AllLifecycleStatuses() []LifecycleStatus {
	out := make([]LifecycleStatus, len(lifecycleStatuses))
	copy(out, lifecycleStatuses)

	return out
}

// ParseLifecycleStatus converts a raw value into its canonical status.
// Casing and "-" or " " separators are ignored, so "pending-approval" parses.
func ParseLifecycleStatus(raw string) (LifecycleStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	for _, status := range lifecycleStatuses {
		if string(status) == normalized {
			return status, nil
		}
	}

	return "", fmt.Errorf("unknown lifecycle status %q", raw)
}

// Valid reports whether s is one of the known statuses.
func (s LifecycleStatus) Valid() bool {
	for _, status := range lifecycleStatuses {
		if status == s {
			return true
		}
	}

	return false
}

// UnmarshalJSON accepts any casing the remote API sends. Values that do not
// name a status are kept verbatim so the position still decodes and offers
// no actions.
func (s *LifecycleStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if status, err := ParseLifecycleStatus(raw); err == nil {
		*s = status
	} else {
		*s = LifecycleStatus(raw)
	}

	return nil
}

func (s LifecycleStatus) String() string {
	return string(s)
}
