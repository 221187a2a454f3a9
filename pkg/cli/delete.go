package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete mocks by ID",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		deleted := make([]string, 0, len(args))
		for _, id := range args {
			if err := client.DeleteMock(id); err != nil {
				return clientError(err)
			}
			deleted = append(deleted, id)
		}

		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), map[string]any{"deleted": deleted})
		}
		for _, id := range deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted mock %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
