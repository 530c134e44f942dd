// Package models defines the core domain models for positions, workflows and custom fields.
package models

import (
	"encoding/json"
	"strings"
)

// StageKind tags where a stage sits in the pipeline.
type StageKind string

const (
	StageKindInitial  StageKind = "initial"
	StageKindStandard StageKind = "standard"
	StageKindSuccess  StageKind = "success" // Terminal exit, hired/filled
	StageKindFail     StageKind = "fail"    // Terminal exit, rejected/withdrawn
)

// DisplayMode controls how a stage is presented on the board.
type DisplayMode string

const (
	DisplayColumn DisplayMode = "column" // Primary board column
	DisplayRow    DisplayMode = "row"    // Auxiliary row reachable from any column
	DisplayHidden DisplayMode = "hidden" // Only reachable through the stage picker
)

// ParseStageKind is tolerant: unknown kinds fall back to standard.
func ParseStageKind(raw string) StageKind {
	switch StageKind(strings.ToLower(strings.TrimSpace(raw))) {
	case StageKindInitial:
		return StageKindInitial
	case StageKindSuccess:
		return StageKindSuccess
	case StageKindFail, "failed", "failure":
		return StageKindFail
	default:
		return StageKindStandard
	}
}

// ParseDisplayMode is tolerant: unknown modes fall back to column.
func ParseDisplayMode(raw string) DisplayMode {
	switch DisplayMode(strings.ToLower(strings.TrimSpace(raw))) {
	case DisplayRow:
		return DisplayRow
	case DisplayHidden:
		return DisplayHidden
	default:
		return DisplayColumn
	}
}

// Terminal reports whether the kind is a pipeline exit.
func (k StageKind) Terminal() bool {
	return k == StageKindSuccess || k == StageKindFail
}

// StageStyle carries presentation hints for a stage.
type StageStyle struct {
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Stage is a node in a workflow.
type Stage struct {
	ID              string           `json:"id"                         validate:"required"`
	WorkflowID      string           `json:"workflow_id"`
	Name            string           `json:"name"                       validate:"required"`
	Order           int              `json:"order"                      validate:"min=0"`
	Kind            StageKind        `json:"stage_kind"`
	DisplayMode     DisplayMode      `json:"display_mode"`
	Style           StageStyle       `json:"style"`
	IsActive        bool             `json:"is_active"`
	LifecycleStatus *LifecycleStatus `json:"lifecycle_status,omitempty"` // Applied by the server when a position enters the stage
}

// UnmarshalJSON normalizes kind and display mode and defaults is_active to true.
func (s *Stage) UnmarshalJSON(data []byte) error {
	type alias Stage

	raw := struct {
		*alias

		Kind        string `json:"stage_kind"`
		DisplayMode string `json:"display_mode"`
		IsActive    *bool  `json:"is_active"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = ParseStageKind(raw.Kind)
	s.DisplayMode = ParseDisplayMode(raw.DisplayMode)
	s.IsActive = raw.IsActive == nil || *raw.IsActive

	return nil
}

// Workflow is a company-owned stage graph with its custom field configuration.
type Workflow struct {
	ID           string            `json:"id"            validate:"required"`
	CompanyID    string            `json:"company_id"    validate:"required"`
	Name         string            `json:"name"          validate:"required"`
	DefaultView  string            `json:"default_view,omitempty"`
	Stages       []*Stage          `json:"stages,omitempty"`
	CustomFields CustomFieldConfig `json:"custom_fields_config"`
}
