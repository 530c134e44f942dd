package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/dukex/hireflow/pkg/board"
	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/fieldrender"
	"github.com/dukex/hireflow/pkg/lifecycle"
	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// customValuesField is the update key that carries custom field values.
const customValuesField = "custom_field_values"

// customLockKey names a custom field value in lock rules. The prefix keeps
// custom keys from colliding with built-in attributes.
func customLockKey(key string) string {
	return "custom:" + key
}

// Attribute is a built-in position attribute as shown on the edit form.
type Attribute struct {
	Field      string          `json:"field"`
	Label      string          `json:"label"`
	Tab        fieldrender.Tab `json:"tab"`
	Locked     bool            `json:"locked"`
	LockReason string          `json:"lock_reason,omitempty"`
}

// Form is the edit form of a position at its current stage.
type Form struct {
	Position   *models.Position      `json:"position"`
	Stage      *models.Stage         `json:"stage,omitempty"`
	NextStage  *models.Stage         `json:"next_stage,omitempty"`
	Actions    lifecycle.ActionSet   `json:"actions"`
	Attributes []Attribute           `json:"attributes"`
	Fields     []fieldrender.Control `json:"fields"`
	Displays   []fieldrender.Display `json:"displays"`
	Missing    models.FieldErrors    `json:"missing,omitempty"`
	Pending    string                `json:"pending_action,omitempty"`
}

// Positions edits and acts on positions of loaded workflows.
type Positions struct {
	catalog    *Catalog
	remote     RemoteAPI
	controller *lifecycle.Controller
	logger     *slog.Logger
}

func NewPositions(catalog *Catalog, remote RemoteAPI, controller *lifecycle.Controller) *Positions {
	return &Positions{
		catalog:    catalog,
		remote:     remote,
		controller: controller,
		logger:     log.WithModule("positions"),
	}
}

// Controller exposes the lifecycle controller used for actions.
func (p *Positions) Controller() *lifecycle.Controller {
	return p.controller
}

func (p *Positions) lookup(ctx context.Context, workflowID, positionID string) (*View, *models.Position, error) {
	view, err := p.catalog.Open(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}

	position, ok := view.Board.Position(positionID)
	if !ok {
		return nil, nil, &ServiceError{
			Op:      "lookup",
			Code:    "POSITION_NOT_FOUND",
			Message: fmt.Sprintf("position %s is not in workflow %s", positionID, workflowID),
			Err:     ErrPositionNotInWorkflow,
		}
	}

	return view, position, nil
}

// Actions returns the actions available for the position's current status.
func (p *Positions) Actions(ctx context.Context, workflowID, positionID string) (lifecycle.ActionSet, error) {
	_, position, err := p.lookup(ctx, workflowID, positionID)
	if err != nil {
		return lifecycle.ActionSet{}, err
	}

	return p.controller.Available(position), nil
}

// Form renders the position's edit form for audience.
func (p *Positions) Form(ctx context.Context, workflowID, positionID string, audience customfields.Audience, locale fieldrender.Locale) (*Form, error) {
	view, position, err := p.lookup(ctx, workflowID, positionID)
	if err != nil {
		return nil, err
	}

	form := &Form{
		Position: position,
		Actions:  p.controller.Available(position),
		Missing:  view.Registry.MissingRequired(position.StageID, position.CustomFieldValues),
	}

	if stage, ok := view.Graph.Stage(position.StageID); ok {
		form.Stage = stage
	}

	if next, ok := view.Graph.Next(position.StageID); ok {
		form.NextStage = next
	}

	if action, ok := p.controller.Pending(positionID); ok {
		form.Pending = string(action)
	}

	if audience == customfields.AudienceAdmin {
		for _, field := range models.PositionAttributes {
			reason, locked := lifecycle.LockReason(position.Status, field)
			form.Attributes = append(form.Attributes, Attribute{
				Field:      field,
				Label:      customfields.HumanizeKey(field),
				Tab:        fieldrender.FormTab(field, false),
				Locked:     locked,
				LockReason: reason,
			})
		}
	}

	for _, res := range view.Registry.Fields(position.StageID, audience) {
		value := position.CustomFieldValues[res.Definition.Key]

		control := fieldrender.Input(res, value, audience)
		control.Locked = lifecycle.IsFieldLocked(position.Status, customLockKey(res.Definition.Key))

		form.Fields = append(form.Fields, control)
		form.Displays = append(form.Displays, fieldrender.RenderDisplay(res.Definition, value, locale))
	}

	return form, nil
}

// Update writes attribute changes. Locked fields are refused before any
// request is made.
func (p *Positions) Update(ctx context.Context, workflowID, positionID string, changes map[string]any) (*models.Position, error) {
	if len(changes) == 0 {
		return nil, NewValidationError("Update", "EMPTY_UPDATE", "no changes given", ErrInvalidRequest)
	}

	view, position, err := p.lookup(ctx, workflowID, positionID)
	if err != nil {
		return nil, err
	}

	for _, field := range slices.Sorted(maps.Keys(changes)) {
		if field == customValuesField {
			values, ok := changes[field].(map[string]any)
			if !ok {
				return nil, NewValidationError("Update", "INVALID_CUSTOM_VALUES", "custom_field_values must be an object", ErrInvalidRequest)
			}

			if err := p.checkCustomValues(view, position, values); err != nil {
				return nil, err
			}

			continue
		}

		if !slices.Contains(models.PositionAttributes, field) {
			return nil, NewValidationError("Update", "UNKNOWN_FIELD", "unknown field "+field, ErrUnknownField)
		}

		if reason, locked := lifecycle.LockReason(position.Status, field); locked {
			return nil, NewLockedFieldError("Update", field, reason)
		}
	}

	return p.write(ctx, view, positionID, changes)
}

func (p *Positions) checkCustomValues(view *View, position *models.Position, values map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		def, ok := view.Registry.Definition(key)
		if !ok {
			return NewValidationError("Update", "UNKNOWN_FIELD", "unknown custom field "+key, ErrUnknownField)
		}

		if reason, locked := lifecycle.LockReason(position.Status, customLockKey(key)); locked {
			return NewLockedFieldError("Update", key, reason)
		}

		if err := fieldrender.Validate(def, values[key]); err != nil {
			return NewValidationError("Update", "INVALID_VALUE", err.Error(), err)
		}
	}

	return nil
}

// ChangeField applies a control change to one custom field and saves it.
// It returns the re-rendered control.
func (p *Positions) ChangeField(ctx context.Context, workflowID, positionID, key string, change fieldrender.Change) (*fieldrender.Control, *models.Position, error) {
	view, position, err := p.lookup(ctx, workflowID, positionID)
	if err != nil {
		return nil, nil, err
	}

	res, ok := view.Registry.Resolve(position.StageID, key)
	if !ok {
		return nil, nil, NewValidationError("ChangeField", "UNKNOWN_FIELD", "unknown custom field "+key, ErrUnknownField)
	}

	if reason, locked := lifecycle.LockReason(position.Status, customLockKey(key)); locked {
		return nil, nil, NewLockedFieldError("ChangeField", key, reason)
	}

	value, err := fieldrender.Apply(res.Definition, position.CustomFieldValues[key], change)
	if err != nil {
		return nil, nil, NewValidationError("ChangeField", "INVALID_CHANGE", err.Error(), err)
	}

	values := maps.Clone(position.CustomFieldValues)
	if values == nil {
		values = make(map[string]any)
	}

	if value == nil {
		delete(values, key)
	} else {
		values[key] = value
	}

	updated, err := p.write(ctx, view, positionID, map[string]any{customValuesField: values})
	if err != nil {
		return nil, nil, err
	}

	control := fieldrender.Input(res, updated.CustomFieldValues[key], customfields.AudienceAdmin)

	return &control, updated, nil
}

func (p *Positions) write(ctx context.Context, view *View, positionID string, changes map[string]any) (*models.Position, error) {
	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("hireflow/services"), "positions.update",
		attribute.String(otelhelper.WorkflowIDKey, view.Workflow.ID),
		attribute.String(otelhelper.PositionIDKey, positionID),
	)
	defer span.End()

	updated, err := p.remote.UpdatePosition(ctx, positionID, changes)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := view.Board.Replace(updated); err != nil {
		p.logger.WarnContext(ctx, "Board closed before update landed", "position_id", positionID, "error", err)
	}

	return updated, nil
}

// Act performs a lifecycle action and refreshes the board with the result.
func (p *Positions) Act(ctx context.Context, workflowID, positionID string, req lifecycle.ActionRequest) (*models.Position, error) {
	view, position, err := p.lookup(ctx, workflowID, positionID)
	if err != nil {
		return nil, err
	}

	updated, err := p.controller.Perform(ctx, position, req)
	if err != nil {
		return nil, err
	}

	if updated.WorkflowID == "" || updated.WorkflowID == view.Workflow.ID {
		if err := view.Board.Replace(updated); err != nil {
			p.logger.WarnContext(ctx, "Board closed before action landed", "position_id", updated.ID, "error", err)
		}
	}

	return updated, nil
}

// Move moves a position on its workflow's board.
func (p *Positions) Move(ctx context.Context, workflowID, positionID, stageID string) (*board.MoveOutcome, error) {
	view, err := p.catalog.Open(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return view.Board.Move(ctx, positionID, stageID)
}

// Advance moves a position to the next stage in order.
func (p *Positions) Advance(ctx context.Context, workflowID, positionID string) (*board.MoveOutcome, error) {
	view, position, err := p.lookup(ctx, workflowID, positionID)
	if err != nil {
		return nil, err
	}

	next, ok := view.Graph.Next(position.StageID)
	if !ok {
		return nil, NewValidationError("Advance", "NO_NEXT_STAGE", "position is in the last stage", ErrInvalidRequest)
	}

	return view.Board.Move(ctx, positionID, next.ID)
}
