package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Printf("loom-scheduler %s", info.Version)
			if info.GitCommit != "" {
				fmt.Printf(" (%s)", info.GitCommit)
			}
			fmt.Printf("\n%s %s\n", info.GoVersion, info.Platform)
		},
	}
}
