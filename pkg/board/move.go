package board

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/events"
	"github.com/dukex/hireflow/pkg/fieldrender"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/otelhelper"
	"github.com/dukex/hireflow/pkg/remote"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// FailedMoveMessage is shown when a move fails for reasons other than validation.
const FailedMoveMessage = "The position could not be moved. Please try again."

// OutcomeKind classifies the result of a move.
type OutcomeKind string

const (
	OutcomeNoop      OutcomeKind = "noop"
	OutcomeConfirmed OutcomeKind = "confirmed"
	OutcomeRejected  OutcomeKind = "rejected"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeDropped   OutcomeKind = "dropped" // response arrived after Close
)

// FieldError is one server-side validation failure, pointed at the form
// section where it can be fixed.
type FieldError struct {
	Field    string          `json:"field"`
	Label    string          `json:"label"`
	Messages []string        `json:"messages"`
	Tab      fieldrender.Tab `json:"tab"`
}

// Rejection explains why the server refused a move.
type Rejection struct {
	Errors   []FieldError          `json:"errors"`
	Controls []fieldrender.Control `json:"controls,omitempty"`
	EditPath string                `json:"edit_path"`
}

type MoveOutcome struct {
	MoveID      string           `json:"move_id,omitempty"`
	Kind        OutcomeKind      `json:"kind"`
	FromStage   string           `json:"from_stage_id,omitempty"`
	TargetStage string           `json:"to_stage_id"`
	Position    *models.Position `json:"position,omitempty"`
	Rejection   *Rejection       `json:"rejection,omitempty"`
	Message     string           `json:"message,omitempty"`
	Snapshot    Snapshot         `json:"snapshot"`
	Err         error            `json:"-"`
}

// Move places positionID in targetStageID immediately, asks the server to
// do the same and then either confirms the server's copy or puts the
// position back where it was. Errors are returned only for moves that were
// never attempted; server failures are reported through the outcome.
func (b *Board) Move(ctx context.Context, positionID, targetStageID string) (*MoveOutcome, error) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return nil, ErrClosed
	}

	current, ok := b.positions[positionID]
	if !ok {
		b.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, positionID)
	}

	if _, ok := b.graph.Stage(targetStageID); !ok {
		b.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, targetStageID)
	}

	if current.StageID == targetStageID {
		out := &MoveOutcome{
			Kind:        OutcomeNoop,
			Position:    current.Clone(),
			Snapshot:    b.snapshotLocked(),
			FromStage:   current.StageID,
			TargetStage: targetStageID,
		}
		b.mu.Unlock()

		return out, nil
	}

	if _, busy := b.pending[positionID]; busy {
		b.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrMovePending, positionID)
	}

	move := b.applyLocked(current, targetStageID)
	snap := b.commit(PhaseSpeculative)
	b.mu.Unlock()

	b.notify(snap)

	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("hireflow/board"), "board.move",
		attribute.String(otelhelper.WorkflowIDKey, b.WorkflowID()),
		attribute.String(otelhelper.PositionIDKey, positionID),
		attribute.String(otelhelper.StageIDKey, targetStageID),
		attribute.String(otelhelper.MoveIDKey, move.id),
	)
	defer span.End()

	moved, err := b.client.MoveToStage(ctx, positionID, targetStageID)
	if err != nil {
		otelhelper.SetError(span, err)

		return b.revert(ctx, positionID, targetStageID, move, err), nil
	}

	return b.confirm(ctx, positionID, targetStageID, move, moved), nil
}

// applyLocked moves the position into the target bucket and records how to undo it.
func (b *Board) applyLocked(current *models.Position, targetStageID string) *pendingMove {
	from := b.bucketFor(current.StageID)

	move := &pendingMove{
		id:        uuid.New().String(),
		fromStage: from,
		previous:  current.Clone(),
		loadGen:   b.loadGen,
		revision:  b.revisions[current.ID],
	}

	move.fromIndex = b.removeLocked(from, current.ID)
	b.buckets[targetStageID] = append(b.buckets[targetStageID], current.ID)

	speculative := current.Clone()
	speculative.StageID = targetStageID
	b.positions[current.ID] = speculative
	b.pending[current.ID] = move

	return move
}

// confirm reloads the position so that server side effects, such as a
// stage mapped to a lifecycle status, are reflected. The reloaded copy
// wins over both the move response and the speculative state.
func (b *Board) confirm(ctx context.Context, positionID, targetStageID string, move *pendingMove, moved *models.Position) *MoveOutcome {
	authoritative, err := b.client.GetPosition(ctx, positionID)
	if err != nil || authoritative == nil {
		b.logger.WarnContext(ctx, "Could not reload moved position, using move response",
			"position_id", positionID,
			"move_id", move.id,
			"error", err)

		authoritative = moved
	}

	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		b.logger.InfoContext(ctx, "Dropping move response after close", "position_id", positionID, "move_id", move.id)

		return &MoveOutcome{MoveID: move.id, Kind: OutcomeDropped, FromStage: move.fromStage, TargetStage: targetStageID}
	}

	delete(b.pending, positionID)

	if authoritative == nil {
		authoritative = move.previous.Clone()
		authoritative.StageID = targetStageID
	}

	b.placeLocked(authoritative)
	snap := b.commit(PhaseReconciled)
	b.mu.Unlock()

	b.notify(snap)

	if b.publisher != nil {
		event := events.PositionMoved{
			BaseEvent:   events.NewBaseEvent(events.PositionMovedEvent, b.WorkflowID()),
			MoveID:      move.id,
			PositionID:  positionID,
			FromStageID: move.fromStage,
			ToStageID:   authoritative.StageID,
			Status:      authoritative.Status,
		}

		if err := b.publisher.Publish(ctx, positionID, event); err != nil {
			b.logger.WarnContext(ctx, "Failed to publish move event", "position_id", positionID, "error", err)
		}
	}

	return &MoveOutcome{
		MoveID:      move.id,
		Kind:        OutcomeConfirmed,
		Position:    authoritative.Clone(),
		Snapshot:    snap,
		FromStage:   move.previous.StageID,
		TargetStage: targetStageID,
	}
}

// revert puts the position back at its previous index. A Load or Replace
// that landed while the move was in flight already holds the server's
// copy, so nothing is restored in that case.
func (b *Board) revert(ctx context.Context, positionID, targetStageID string, move *pendingMove, cause error) *MoveOutcome {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		b.logger.InfoContext(ctx, "Dropping move failure after close", "position_id", positionID, "move_id", move.id)

		return &MoveOutcome{MoveID: move.id, Kind: OutcomeDropped, Err: cause, FromStage: move.fromStage, TargetStage: targetStageID}
	}

	delete(b.pending, positionID)

	if move.loadGen == b.loadGen && move.revision == b.revisions[positionID] {
		if bucket, ok := b.locate(positionID); ok {
			b.removeLocked(bucket, positionID)
		}

		b.positions[positionID] = move.previous.Clone()
		b.insertLocked(move.fromStage, positionID, move.fromIndex)
	}

	var position *models.Position
	if p, ok := b.positions[positionID]; ok {
		position = p.Clone()
	}

	snap := b.commit(PhaseReverted)
	b.mu.Unlock()

	b.notify(snap)

	out := &MoveOutcome{
		MoveID:      move.id,
		Position:    position,
		Snapshot:    snap,
		Err:         cause,
		FromStage:   move.previous.StageID,
		TargetStage: targetStageID,
	}

	fields, rejected := remote.FieldErrorsOf(cause)
	if rejected {
		out.Kind = OutcomeRejected
		out.Rejection = b.rejection(move.previous, targetStageID, fields)

		b.logger.InfoContext(ctx, "Move rejected by server",
			"position_id", positionID,
			"stage_id", targetStageID,
			"fields", fields.Fields())
	} else {
		out.Kind = OutcomeFailed
		out.Message = FailedMoveMessage

		b.logger.ErrorContext(ctx, "Move failed",
			"position_id", positionID,
			"stage_id", targetStageID,
			"error", cause)
	}

	if b.publisher != nil {
		event := events.PositionMoveRejected{
			BaseEvent:   events.NewBaseEvent(events.PositionMoveRejectedEvent, b.WorkflowID()),
			MoveID:      move.id,
			PositionID:  positionID,
			FromStageID: move.fromStage,
			ToStageID:   targetStageID,
			Errors:      fields,
		}

		if !rejected {
			event.Error = cause.Error()
		}

		if err := b.publisher.Publish(ctx, positionID, event); err != nil {
			b.logger.WarnContext(ctx, "Failed to publish move event", "position_id", positionID, "error", err)
		}
	}

	return out
}

// rejection maps server field errors to labelled entries and correction
// controls for the fields that belong to the workflow's custom fields.
func (b *Board) rejection(position *models.Position, targetStageID string, fields models.FieldErrors) *Rejection {
	r := &Rejection{Errors: make([]FieldError, 0, len(fields))}

	var resolutions []customfields.Resolution

	for _, field := range fields.Fields() {
		fe := FieldError{
			Field:    field,
			Label:    customfields.HumanizeKey(field),
			Messages: fields[field],
			Tab:      fieldrender.FormTab(field, false),
		}

		if b.registry != nil {
			if res, ok := b.registry.Resolve(targetStageID, field); ok {
				fe.Label = res.Label
				fe.Tab = fieldrender.FormTab(field, true)
				resolutions = append(resolutions, res)
			}
		}

		r.Errors = append(r.Errors, fe)
	}

	if len(resolutions) > 0 {
		r.Controls = fieldrender.Correction(resolutions, position.CustomFieldValues, fields)
	}

	tab := fieldrender.TabDetails
	if len(r.Errors) > 0 {
		tab = r.Errors[0].Tab
	}

	r.EditPath = fmt.Sprintf("/positions/%s/edit?%s", url.PathEscape(position.ID), url.Values{"tab": {string(tab)}}.Encode())

	return r
}
