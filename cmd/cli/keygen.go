package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhq/loom/internal/managers"
)

func NewKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a service key for credential secret encryption",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := managers.GenerateServiceKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}
