package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Aliases: []string{"status"},
	Short:   "Check that a server is running",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := newClient().Health()
		if err != nil {
			return clientError(err)
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), h)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mimic %s at %s: %s\n", h.Version, adminURL, h.Status)
		fmt.Fprintf(cmd.OutOrStdout(), "Uptime:   %s\n", time.Duration(h.Uptime)*time.Second)
		fmt.Fprintf(cmd.OutOrStdout(), "Mocks:    %d\n", h.Mocks)
		fmt.Fprintf(cmd.OutOrStdout(), "Logs:     %d\n", h.LogEntries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
