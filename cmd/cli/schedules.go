package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/initialization"
)

func NewSchedulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect schedule records",
	}

	cmd.AddCommand(newSchedulesListCommand())

	return cmd
}

func newSchedulesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedulesList(cmd.Context(), args[0])
		},
	}
}

func runSchedulesList(ctx context.Context, projectID string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	deps, err := initialization.BuildSchedulerDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	records, err := deps.ScheduleService.ListSchedulesForProject(ctx, projectID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No schedules found")
		return nil
	}

	for _, record := range records {
		state := "disabled"
		if record.Enabled {
			state = "enabled"
		}
		trigger := "-"
		if record.Binding != nil {
			trigger = record.Binding.NodeInstanceID
		}
		fmt.Printf("%s  %s  %-9s  %-8s  %s  trigger=%s\n",
			record.ID, record.UUID, record.Type, state, record.CronExpression, trigger)
	}
	return nil
}
