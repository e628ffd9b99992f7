package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/loomhq/loom/internal/cronmath"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/managers"
)

// ScheduleController handles the schedule-management API surface plus the
// deployment reconciliation and dispatch hooks.
type ScheduleController struct {
	schedules  *managers.ScheduleService
	reconciler domain.Reconciler
	dispatcher domain.Dispatcher
}

type ScheduleControllerDependencies struct {
	ScheduleService *managers.ScheduleService
	Reconciler      domain.Reconciler
	Dispatcher      domain.Dispatcher
}

func NewScheduleController(deps ScheduleControllerDependencies) *ScheduleController {
	return &ScheduleController{
		schedules:  deps.ScheduleService,
		reconciler: deps.Reconciler,
		dispatcher: deps.Dispatcher,
	}
}

type createScheduleRequest struct {
	OrganizationID string `json:"organization_id"`
	Type           string `json:"type"`
	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
	Enabled        *bool  `json:"enabled"`
	TriggerNodeID  string `json:"trigger_node_id"`
}

// CreateSchedule handles POST /v1/projects/:projectID/schedules.
func (c *ScheduleController) CreateSchedule(ctx fiber.Ctx) error {
	var req createScheduleRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	scheduleType := domain.ScheduleType(req.Type)
	if scheduleType == "" {
		scheduleType = domain.ScheduleTypeProject
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	record, err := c.schedules.CreateSchedule(ctx.RequestCtx(), managers.CreateScheduleParams{
		OrganizationID: req.OrganizationID,
		ProjectID:      ctx.Params("projectID"),
		Type:           scheduleType,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Enabled:        enabled,
		TriggerNodeID:  req.TriggerNodeID,
	})
	if err != nil {
		return scheduleError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(record)
}

// ListSchedules handles GET /v1/projects/:projectID/schedules.
func (c *ScheduleController) ListSchedules(ctx fiber.Ctx) error {
	records, err := c.schedules.ListSchedulesForProject(ctx.RequestCtx(), ctx.Params("projectID"))
	if err != nil {
		return scheduleError(err)
	}
	return ctx.JSON(fiber.Map{"schedules": records})
}

type updateScheduleRequest struct {
	CronExpression *string `json:"cron_expression"`
	Timezone       *string `json:"timezone"`
	Enabled        *bool   `json:"enabled"`
}

// UpdateSchedule handles PATCH /v1/schedules/:scheduleID.
func (c *ScheduleController) UpdateSchedule(ctx fiber.Ctx) error {
	var req updateScheduleRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	record, err := c.schedules.UpdateSchedule(ctx.RequestCtx(), ctx.Params("scheduleID"), managers.UpdateScheduleParams{
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Enabled:        req.Enabled,
	})
	if err != nil {
		return scheduleError(err)
	}
	return ctx.JSON(record)
}

// DeleteSchedule handles DELETE /v1/schedules/:scheduleID.
func (c *ScheduleController) DeleteSchedule(ctx fiber.Ctx) error {
	if err := c.schedules.DeleteSchedule(ctx.RequestCtx(), ctx.Params("scheduleID")); err != nil {
		return scheduleError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

type reconcileRequest struct {
	GraphID string `json:"graph_id"`
	ActorID string `json:"actor_id"`
}

// ReconcileDeployment handles POST /v1/projects/:projectID/reconcile. The
// report is returned even when individual schedules failed.
func (c *ScheduleController) ReconcileDeployment(ctx fiber.Ctx) error {
	var req reconcileRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	report, err := c.reconciler.ReconcileDeployment(ctx.RequestCtx(), domain.ReconcileDeploymentParams{
		ProjectID: ctx.Params("projectID"),
		GraphID:   req.GraphID,
		ActorID:   req.ActorID,
	})
	if err != nil {
		log.Error().Err(err).Str("project_id", ctx.Params("projectID")).Msg("Reconciliation failed")
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(report)
}

// Dispatch handles POST /internal/dispatch, called by the external
// scheduler's worker on each fire. The classified result always comes back
// with 200 so the worker's result backend has something to store.
func (c *ScheduleController) Dispatch(ctx fiber.Ctx) error {
	var req domain.DispatchRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result := c.dispatcher.Dispatch(ctx.RequestCtx(), req)
	return ctx.JSON(result)
}

type validateCronRequest struct {
	Expression string `json:"expression"`
	Timezone   string `json:"timezone"`
}

// ValidateCron handles POST /v1/cron/validate.
func (c *ScheduleController) ValidateCron(ctx fiber.Ctx) error {
	var req validateCronRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	validation, err := cronmath.Validate(req.Expression)
	if err != nil {
		return scheduleError(err)
	}
	return ctx.JSON(validation)
}

// ConvertCron handles POST /v1/cron/convert.
func (c *ScheduleController) ConvertCron(ctx fiber.Ctx) error {
	var req validateCronRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	conversion, err := cronmath.ConvertToUTC(req.Expression, req.Timezone)
	if err != nil {
		return scheduleError(err)
	}
	return ctx.JSON(conversion)
}

// ListTimezones handles GET /v1/timezones.
func (c *ScheduleController) ListTimezones(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"regions": cronmath.ListTimezones()})
}

func scheduleError(err error) error {
	var invalidCron *domain.InvalidCronError
	var unknownTZ *domain.UnknownTimezoneError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.As(err, &invalidCron), errors.As(err, &unknownTZ), errors.Is(err, domain.ErrInvalidSchedule):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
