package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/initialization"
	"github.com/loomhq/loom/internal/server"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduling service",
		Long:  `Start the HTTP service that manages schedules, reconciles deployments and handles dispatch hooks from the external scheduler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}

	return cmd
}

func runStart() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("LOOM_DATABASE_URL is required")
	}
	if cfg.ServiceKey == "" {
		log.Fatal().Msg("LOOM_SERVICE_KEY is required, generate one with 'loom-scheduler keygen'")
	}

	deps, err := initialization.BuildSchedulerDependencies(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build scheduler dependencies")
	}
	defer deps.Close()

	app := server.NewHTTPServer(server.HTTPServerDependencies{
		ScheduleController: deps.ScheduleController,
	})

	log.Info().Str("address", cfg.HTTPAddress).Msg("Starting scheduling service")

	if err := app.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
	}

	log.Info().Msg("Scheduling service stopped")
	return nil
}
