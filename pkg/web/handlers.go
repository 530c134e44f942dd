// Package web provides HTTP handlers for boards, lifecycle actions and
// position forms.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/hireflow/pkg/board"
	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/fieldrender"
	"github.com/dukex/hireflow/pkg/lifecycle"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	catalog   *services.Catalog
	positions *services.Positions
	sessions  *services.Sessions
	validator *validator.Validate
}

func NewAPIHandlers(
	catalog *services.Catalog,
	positions *services.Positions,
	sessions *services.Sessions,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		catalog:   catalog,
		positions: positions,
		sessions:  sessions,
		validator: validator,
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	w := app.Group("/workflows")
	w.Get("/:id/board", h.GetBoard)
	w.Post("/:id/board/moves", h.MovePosition)
	w.Post("/:id/reload", h.ReloadWorkflow)
	w.Get("/:id/stages/:stageId/fields", h.GetStageFields)

	l := app.Group("/lifecycle")
	l.Get("/statuses/:status/transitions", h.GetTransitions)
	l.Get("/statuses/:status/locks", h.GetLocks)

	p := app.Group("/positions")
	p.Get("/:id/actions", h.GetActions)
	p.Post("/:id/actions/:action", h.PerformAction)
	p.Get("/:id/form", h.GetForm)
	p.Patch("/:id", h.UpdatePosition)
	p.Post("/:id/fields/:key/change", h.ChangeField)

	s := app.Group("/sessions")
	s.Put("/:viewer/workflow", h.SwitchWorkflow)
	s.Delete("/:viewer", h.EndSession)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checkers := fiber.Map{}
	healthy := true

	for _, id := range h.catalog.Loaded() {
		view, err := h.catalog.Get(id)
		if err != nil {
			continue
		}

		if err := view.Board.Check(); err != nil {
			healthy = false
			checkers[id] = err.Error()

			continue
		}

		checkers[id] = "ok"
	}

	status := "unhealthy"
	message := "Hireflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if healthy {
		status = "healthy"
		message = "Hireflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"checkers":  fiber.Map{"boards": checkers},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetBoard(c fiber.Ctx) error {
	view, err := h.catalog.Open(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewBoardResponse(view))
}

func (h *APIHandlers) ReloadWorkflow(c fiber.Ctx) error {
	view, err := h.catalog.Reload(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewBoardResponse(view))
}

func (h *APIHandlers) MovePosition(c fiber.Ctx) error {
	var req MoveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	outcome, err := h.positions.Move(c.Context(), c.Params("id"), req.PositionID, req.StageID)
	if err != nil {
		return handleServiceError(c, err)
	}

	switch outcome.Kind {
	case board.OutcomeRejected:
		errs := models.FieldErrors{}
		for _, fe := range outcome.Rejection.Errors {
			errs[fe.Field] = fe.Messages
		}

		return validationRejected(c, "the server refused the move", errs, outcome.Rejection)
	case board.OutcomeFailed:
		return badGateway(c, outcome.Message)
	default:
		return c.JSON(outcome)
	}
}

func (h *APIHandlers) GetStageFields(c fiber.Ctx) error {
	audience, ok := parseAudience(c.Query("audience"))
	if !ok {
		return badRequest(c, "audience must be admin or candidate")
	}

	view, err := h.catalog.Open(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	stageID := c.Params("stageId")
	if _, ok := view.Graph.Stage(stageID); !ok {
		return notFound(c, "Stage not found")
	}

	return c.JSON(StageFieldsResponse{
		StageID:  stageID,
		Audience: audience,
		Fields:   view.Registry.Fields(stageID, audience),
	})
}

func (h *APIHandlers) GetTransitions(c fiber.Ctx) error {
	status, err := models.ParseLifecycleStatus(c.Params("status"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(TransitionsResponse{
		Status:      status,
		Terminal:    lifecycle.Terminal(status),
		Transitions: lifecycle.Transitions(status),
		Actions:     lifecycle.AvailableActions(status).Options,
	})
}

func (h *APIHandlers) GetLocks(c fiber.Ctx) error {
	status, err := models.ParseLifecycleStatus(c.Params("status"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	if field := c.Query("field"); field != "" {
		reason, locked := lifecycle.LockReason(status, field)

		return c.JSON(LockResponse{Status: status, Field: field, Locked: locked, Reason: reason})
	}

	return c.JSON(LocksResponse{
		Status: status,
		Locked: lifecycle.LockedFields(status, models.PositionAttributes),
	})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	workflowID := c.Query("workflow_id")
	if workflowID == "" {
		return badRequest(c, "workflow_id is required")
	}

	actions, err := h.positions.Actions(c.Context(), workflowID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(actions)
}

func (h *APIHandlers) PerformAction(c fiber.Ctx) error {
	workflowID := c.Query("workflow_id")
	if workflowID == "" {
		return badRequest(c, "workflow_id is required")
	}

	action, err := lifecycle.ParseAction(c.Params("action"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req ActionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	position, err := h.positions.Act(c.Context(), workflowID, c.Params("id"), req.ToLifecycle(action))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(position)
}

func (h *APIHandlers) GetForm(c fiber.Ctx) error {
	workflowID := c.Query("workflow_id")
	if workflowID == "" {
		return badRequest(c, "workflow_id is required")
	}

	audience, ok := parseAudience(c.Query("audience"))
	if !ok {
		return badRequest(c, "audience must be admin or candidate")
	}

	form, err := h.positions.Form(c.Context(), workflowID, c.Params("id"), audience, fieldrender.NewLocale(c.Query("locale")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(form)
}

func (h *APIHandlers) UpdatePosition(c fiber.Ctx) error {
	workflowID := c.Query("workflow_id")
	if workflowID == "" {
		return badRequest(c, "workflow_id is required")
	}

	var changes map[string]any
	if err := c.Bind().JSON(&changes); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.positions.Update(c.Context(), workflowID, c.Params("id"), changes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ChangeField(c fiber.Ctx) error {
	workflowID := c.Query("workflow_id")
	if workflowID == "" {
		return badRequest(c, "workflow_id is required")
	}

	var change fieldrender.Change
	if err := c.Bind().JSON(&change); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(change); err != nil {
		return badRequest(c, err.Error())
	}

	control, position, err := h.positions.ChangeField(c.Context(), workflowID, c.Params("id"), c.Params("key"), change)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(FieldChangeResponse{Control: control, Position: position})
}

func (h *APIHandlers) SwitchWorkflow(c fiber.Ctx) error {
	var req SwitchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessions.For(c.Params("viewer")).Switch(c.Context(), req.WorkflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewBoardResponse(view))
}

func (h *APIHandlers) EndSession(c fiber.Ctx) error {
	h.sessions.End(c.Context(), c.Params("viewer"))

	return c.SendStatus(fiber.StatusNoContent)
}

func parseAudience(raw string) (customfields.Audience, bool) {
	switch customfields.Audience(raw) {
	case "", customfields.AudienceAdmin:
		return customfields.AudienceAdmin, true
	case customfields.AudienceCandidate:
		return customfields.AudienceCandidate, true
	default:
		return "", false
	}
}
