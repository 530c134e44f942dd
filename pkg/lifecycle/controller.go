package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dukex/hireflow/pkg/eventbus"
	"github.com/dukex/hireflow/pkg/events"
	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ActionClient performs lifecycle actions on the remote API. Each call
// returns the position as stored after the action.
type ActionClient interface {
	PerformAction(ctx context.Context, positionID, action string, payload map[string]string) (*models.Position, error)
}

// ActionRequest is the input for Perform. Reason is the rejection
// explanation for reject; CloseReason and Note apply to close.
type ActionRequest struct {
	Action      Action
	Reason      string
	CloseReason CloseReason
	Note        string
}

// Controller validates lifecycle actions against the transition table and
// forwards them to the remote API. At most one action per position is in
// flight at a time.
type Controller struct {
	client    ActionClient
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]Action
}

type Option func(*Controller)

// WithPublisher publishes status change events after successful actions.
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(client ActionClient, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		logger:   log.WithModule("lifecycle"),
		inflight: make(map[string]Action),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Available returns the actions the UI may offer for position.
func (c *Controller) Available(position *models.Position) ActionSet {
	return AvailableActions(position.Status)
}

// Pending returns the action currently in flight for positionID, if any.
func (c *Controller) Pending(positionID string) (Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	action, ok := c.inflight[positionID]

	return action, ok
}

// Perform validates and executes req against position. The input position
// is never modified; the returned position is the server's result. For
// clone the returned position is the new draft copy.
func (c *Controller) Perform(ctx context.Context, position *models.Position, req ActionRequest) (*models.Position, error) {
	if _, ok := actionSpecs[req.Action]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	if err := c.checkTransition(position, req.Action); err != nil {
		c.logger.WarnContext(ctx, "Rejected lifecycle action",
			"position_id", position.ID,
			"action", req.Action,
			"status", position.Status,
			"error", err)

		return nil, err
	}

	payload, err := buildPayload(req)
	if err != nil {
		return nil, err
	}

	if !c.acquire(position.ID, req.Action) {
		return nil, ErrActionPending
	}
	defer c.release(position.ID)

	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("hireflow/lifecycle"), "lifecycle.perform",
		attribute.String(otelhelper.PositionIDKey, position.ID),
		attribute.String(otelhelper.ActionKey, string(req.Action)),
	)
	defer span.End()

	updated, err := c.client.PerformAction(ctx, position.ID, string(req.Action), payload)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := c.checkResult(position, req.Action, updated); err != nil {
		otelhelper.SetError(span, err)
		c.logger.ErrorContext(ctx, "Server returned unexpected lifecycle status",
			"position_id", position.ID,
			"action", req.Action,
			"error", err)

		return nil, err
	}

	c.publish(ctx, position, req, updated)

	return updated, nil
}

func (c *Controller) checkTransition(position *models.Position, action Action) error {
	if action.AvailableFrom(position.Status) {
		return nil
	}

	target, _ := action.Target()

	return &TransitionError{Action: action, From: position.Status, To: target}
}

// checkResult guards against a response that would pair the position with
// a status the action could not have produced.
func (c *Controller) checkResult(before *models.Position, action Action, after *models.Position) error {
	if after == nil {
		return fmt.Errorf("%s: empty response for %s", before.ID, action)
	}

	if action == ActionClone {
		if after.Status != models.StatusDraft {
			return &TransitionError{Action: action, From: after.Status, To: models.StatusDraft}
		}

		return nil
	}

	target, _ := action.Target()
	if after.Status != target {
		return &TransitionError{Action: action, From: before.Status, To: after.Status}
	}

	return nil
}

func buildPayload(req ActionRequest) (map[string]string, error) {
	switch req.Action {
	case ActionReject:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, ErrReasonRequired
		}

		if utf8.RuneCountInString(reason) < MinRejectReasonLength {
			return nil, fmt.Errorf("%w: at least %d characters", ErrReasonTooShort, MinRejectReasonLength)
		}

		return map[string]string{"reason": reason}, nil
	case ActionClose:
		if req.CloseReason == "" {
			return nil, ErrReasonRequired
		}

		valid := false

		for _, r := range closeReasons {
			if r == req.CloseReason {
				valid = true

				break
			}
		}

		if !valid {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCloseReason, req.CloseReason)
		}

		note := strings.TrimSpace(req.Note)
		if req.CloseReason == CloseOther && note == "" {
			return nil, fmt.Errorf("%w: a note is required when the reason is %q", ErrReasonRequired, CloseOther)
		}

		payload := map[string]string{"reason": string(req.CloseReason)}
		if note != "" {
			payload["note"] = note
		}

		return payload, nil
	default:
		return nil, nil
	}
}

func (c *Controller) acquire(positionID string, action Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inflight[positionID]; busy {
		return false
	}

	c.inflight[positionID] = action

	return true
}

func (c *Controller) release(positionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, positionID)
}

func (c *Controller) publish(ctx context.Context, before *models.Position, req ActionRequest, after *models.Position) {
	if c.publisher == nil {
		return
	}

	var event eventbus.Event

	if req.Action == ActionClone {
		event = events.PositionCloned{
			BaseEvent:  events.NewBaseEvent(events.PositionClonedEvent, after.WorkflowID),
			SourceID:   before.ID,
			PositionID: after.ID,
		}
	} else {
		reason := req.Reason
		if req.Action == ActionClose {
			reason = string(req.CloseReason)
		}

		event = events.PositionStatusChanged{
			BaseEvent:  events.NewBaseEvent(events.PositionStatusChangedEvent, after.WorkflowID),
			PositionID: after.ID,
			Action:     string(req.Action),
			From:       before.Status,
			To:         after.Status,
			Reason:     reason,
		}
	}

	if err := c.publisher.Publish(ctx, after.ID, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish lifecycle event", "position_id", after.ID, "error", err)
	}
}
