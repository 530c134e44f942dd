package models

import (
	"maps"
	"slices"
	"time"
)

// Well-known position attribute names used by lock rules and forms.
const (
	AttrTitle             = "title"
	AttrDepartment        = "department"
	AttrLocation          = "location"
	AttrEmploymentType    = "employment_type"
	AttrHeadcount         = "headcount"
	AttrBudget            = "budget"
	AttrSalaryMin         = "salary_min"
	AttrSalaryMax         = "salary_max"
	AttrDescription       = "description"
	AttrWorkflowID        = "workflow_id"
	AttrCustomFieldConfig = "custom_field_config"
	AttrInternalNotes     = "internal_notes"
)

// PositionAttributes lists the built-in editable attributes in form order.
var PositionAttributes = []string{
	AttrTitle,
	AttrDepartment,
	AttrLocation,
	AttrEmploymentType,
	AttrHeadcount,
	AttrBudget,
	AttrSalaryMin,
	AttrSalaryMax,
	AttrDescription,
	AttrWorkflowID,
	AttrCustomFieldConfig,
	AttrInternalNotes,
}

// Position is a job opening moving through a lifecycle status and a workflow stage.
type Position struct {
	ID                string          `json:"id"`
	WorkflowID        string          `json:"workflow_id"`
	StageID           string          `json:"stage_id"`
	Status            LifecycleStatus `json:"status"`
	Title             string          `json:"title"`
	Department        string          `json:"department,omitempty"`
	Location          string          `json:"location,omitempty"`
	EmploymentType    string          `json:"employment_type,omitempty"`
	Headcount         int             `json:"headcount,omitempty"`
	Budget            *float64        `json:"budget,omitempty"`
	SalaryMin         *float64        `json:"salary_min,omitempty"`
	SalaryMax         *float64        `json:"salary_max,omitempty"`
	Description       string          `json:"description,omitempty"`
	InternalNotes     string          `json:"internal_notes,omitempty"`
	CustomFieldValues map[string]any  `json:"custom_field_values,omitempty"`
	RejectionReason   string          `json:"rejection_reason,omitempty"`
	ClosedReason      string          `json:"closed_reason,omitempty"`
	ClosedNote        string          `json:"closed_note,omitempty"`
	ClonedFromID      string          `json:"cloned_from_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with p.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}

	c := *p
	c.Budget = clonePtr(p.Budget)
	c.SalaryMin = clonePtr(p.SalaryMin)
	c.SalaryMax = clonePtr(p.SalaryMax)

	if p.CustomFieldValues != nil {
		c.CustomFieldValues = make(map[string]any, len(p.CustomFieldValues))
		for k, v := range p.CustomFieldValues {
			c.CustomFieldValues[k] = cloneValue(v)
		}
	}

	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}

		return out
	case []string:
		return slices.Clone(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}

		return out
	default:
		return v
	}
}

// FieldErrors maps a field name to its validation messages, matching the
// remote API's validation_errors payload.
type FieldErrors map[string][]string

// Fields returns the field names in sorted order.
func (e FieldErrors) Fields() []string {
	return slices.Sorted(maps.Keys(e))
}

// Add appends a message for field.
func (e FieldErrors) Add(field, message string) {
	e[field] = append(e[field], message)
}
