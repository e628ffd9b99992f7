package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom-scheduler",
		Short: "Loom workflow scheduling service",
		Long: `Loom Scheduler keeps deployed workflow graphs and their cron schedules in
sync: it reconciles trigger nodes into schedule records, pushes them into the
periodic-task store, manages automation credentials and dispatches due runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewReconcileCommand())
	rootCmd.AddCommand(NewSchedulesCommand())
	rootCmd.AddCommand(NewKeygenCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
