package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/config"
	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/internal/initialization"
)

func NewReconcileCommand() *cobra.Command {
	var graphID string
	var actorID string

	cmd := &cobra.Command{
		Use:   "reconcile <project-id>",
		Short: "Run one reconciliation pass for a project's deployed graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), args[0], graphID, actorID)
		},
	}

	cmd.Flags().StringVar(&graphID, "graph", "", "Deployed graph ID (required)")
	cmd.Flags().StringVar(&actorID, "actor", "cli", "Actor recorded on credential operations")
	_ = cmd.MarkFlagRequired("graph")

	return cmd
}

func runReconcile(ctx context.Context, projectID, graphID, actorID string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	deps, err := initialization.BuildSchedulerDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	report, err := deps.Reconciler.ReconcileDeployment(ctx, domain.ReconcileDeploymentParams{
		ProjectID: projectID,
		GraphID:   graphID,
		ActorID:   actorID,
	})
	if err != nil {
		return err
	}

	if len(report.Errors) > 0 {
		log.Warn().Int("errors", len(report.Errors)).Msg("Reconciliation partially succeeded")
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
