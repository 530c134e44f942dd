// Package events defines event types published when positions change lifecycle status or board placement.
package events

import (
	"time"

	"github.com/dukex/hireflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every hireflow event.
const Topic = "hireflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Lifecycle events.
	PositionStatusChangedEvent EventType = "position.status_changed"
	PositionClonedEvent        EventType = "position.cloned"

	// Board events.
	PositionMovedEvent        EventType = "position.moved"
	PositionMoveRejectedEvent EventType = "position.move_rejected"
	BoardUpdatedEvent         EventType = "board.updated"

	// Workflow view events.
	WorkflowReloadedEvent EventType = "workflow.reloaded"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

type PositionStatusChanged struct {
	BaseEvent

	PositionID string                 `json:"position_id"`
	Action     string                 `json:"action"`
	From       models.LifecycleStatus `json:"from"`
	To         models.LifecycleStatus `json:"to"`
	Reason     string                 `json:"reason,omitempty"`
}

func (e PositionStatusChanged) GetType() EventType {
	return PositionStatusChangedEvent
}

type PositionCloned struct {
	BaseEvent

	SourceID   string `json:"source_id"`
	PositionID string `json:"position_id"`
}

func (e PositionCloned) GetType() EventType {
	return PositionClonedEvent
}

type PositionMoved struct {
	BaseEvent

	MoveID      string                 `json:"move_id"`
	PositionID  string                 `json:"position_id"`
	FromStageID string                 `json:"from_stage_id"`
	ToStageID   string                 `json:"to_stage_id"`
	Status      models.LifecycleStatus `json:"status"`
}

func (e PositionMoved) GetType() EventType {
	return PositionMovedEvent
}

type PositionMoveRejected struct {
	BaseEvent

	MoveID      string             `json:"move_id"`
	PositionID  string             `json:"position_id"`
	FromStageID string             `json:"from_stage_id"`
	ToStageID   string             `json:"to_stage_id"`
	Errors      models.FieldErrors `json:"validation_errors,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func (e PositionMoveRejected) GetType() EventType {
	return PositionMoveRejectedEvent
}

type BoardUpdated struct {
	BaseEvent

	Phase   string              `json:"phase"`
	Version uint64              `json:"version"`
	Buckets map[string][]string `json:"buckets"`
}

func (e BoardUpdated) GetType() EventType {
	return BoardUpdatedEvent
}

type WorkflowReloaded struct {
	BaseEvent

	Generation uint64 `json:"generation"`
	Stages     int    `json:"stages"`
	Fields     int    `json:"fields"`
}

func (e WorkflowReloaded) GetType() EventType {
	return WorkflowReloadedEvent
}
