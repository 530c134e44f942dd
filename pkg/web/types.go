// Package web provides HTTP request and response types for the hireflow API.
package web

import (
	"github.com/dukex/hireflow/pkg/board"
	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/fieldrender"
	"github.com/dukex/hireflow/pkg/lifecycle"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/services"
	"github.com/dukex/hireflow/pkg/stages"
)

// MoveRequest represents the request body for moving a position on a board.
type MoveRequest struct {
	PositionID string `json:"position_id" validate:"required"`
	StageID    string `json:"stage_id"    validate:"required"`
}

// ActionRequest represents the request body for a lifecycle action.
// Reason applies to reject; CloseReason and Note apply to close.
type ActionRequest struct {
	Reason      string `json:"reason,omitempty"       validate:"omitempty,max=2000"`
	CloseReason string `json:"close_reason,omitempty" validate:"omitempty,oneof=filled cancelled budget duplicate other"`
	Note        string `json:"note,omitempty"         validate:"omitempty,max=2000"`
}

// ToLifecycle converts the request body into a controller request.
func (r ActionRequest) ToLifecycle(action lifecycle.Action) lifecycle.ActionRequest {
	return lifecycle.ActionRequest{
		Action:      action,
		Reason:      r.Reason,
		CloseReason: lifecycle.CloseReason(r.CloseReason),
		Note:        r.Note,
	}
}

// SwitchRequest represents the request body for changing a viewer's active workflow.
type SwitchRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
}

// BoardResponse is a board's layout together with its current buckets.
type BoardResponse struct {
	WorkflowID string         `json:"workflow_id"`
	Generation uint64         `json:"generation"`
	Layout     stages.Layout  `json:"layout"`
	Board      board.Snapshot `json:"board"`
}

// NewBoardResponse renders the board of view.
func NewBoardResponse(view *services.View) BoardResponse {
	return BoardResponse{
		WorkflowID: view.Workflow.ID,
		Generation: view.Generation,
		Layout:     view.Board.Layout(),
		Board:      view.Board.Snapshot(),
	}
}

// StageFieldsResponse lists the resolved custom fields of one stage.
type StageFieldsResponse struct {
	StageID  string                    `json:"stage_id"`
	Audience customfields.Audience     `json:"audience"`
	Fields   []customfields.Resolution `json:"fields"`
}

// TransitionsResponse describes what a lifecycle status can move to.
type TransitionsResponse struct {
	Status      models.LifecycleStatus   `json:"status"`
	Terminal    bool                     `json:"terminal"`
	Transitions []models.LifecycleStatus `json:"transitions"`
	Actions     []lifecycle.ActionOption `json:"actions"`
}

// LockResponse reports the lock state of one field.
type LockResponse struct {
	Status models.LifecycleStatus `json:"status"`
	Field  string                 `json:"field"`
	Locked bool                   `json:"locked"`
	Reason string                 `json:"reason,omitempty"`
}

// LocksResponse reports every locked position attribute for a status.
type LocksResponse struct {
	Status models.LifecycleStatus `json:"status"`
	Locked map[string]string      `json:"locked"`
}

// FieldChangeResponse is the re-rendered control after a field change.
type FieldChangeResponse struct {
	Control  *fieldrender.Control `json:"control"`
	Position *models.Position     `json:"position"`
}
