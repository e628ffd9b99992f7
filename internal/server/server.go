package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/loomhq/loom/internal/controllers"
	"github.com/loomhq/loom/internal/version"
)

type HTTPServerDependencies struct {
	ScheduleController *controllers.ScheduleController
}

// NewHTTPServer wires the scheduling service's routes.
func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName: "loom-scheduler",
	})

	router.Use(cors.New())
	router.Use(logger.New())

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "loom-scheduler",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := router.Group("/v1")

	projects := v1.Group("/projects/:projectID")
	projects.Post("/schedules", deps.ScheduleController.CreateSchedule)
	projects.Get("/schedules", deps.ScheduleController.ListSchedules)
	projects.Post("/reconcile", deps.ScheduleController.ReconcileDeployment)

	v1.Patch("/schedules/:scheduleID", deps.ScheduleController.UpdateSchedule)
	v1.Delete("/schedules/:scheduleID", deps.ScheduleController.DeleteSchedule)

	v1.Post("/cron/validate", deps.ScheduleController.ValidateCron)
	v1.Post("/cron/convert", deps.ScheduleController.ConvertCron)
	v1.Get("/timezones", deps.ScheduleController.ListTimezones)

	// Called by the external scheduler's worker pool on each due fire.
	router.Post("/internal/dispatch", deps.ScheduleController.Dispatch)

	return router
}
