package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
	"github.com/getmockd/mimic/pkg/mock"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a mock definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := newClient().GetMock(args[0])
		if err != nil {
			return clientError(err)
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), def)
		}
		printMock(cmd, def)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func printMock(cmd *cobra.Command, d *mock.Definition) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", d.ID)
	if d.Name != "" {
		fmt.Fprintf(out, "Name:     %s\n", d.Name)
	}
	fmt.Fprintf(out, "Route:    %s %s\n", d.Method, d.Path)
	fmt.Fprintf(out, "Mode:     %s\n", d.ResponseMode)

	switch d.ResponseMode {
	case mock.ModeScripted:
		if d.Scripting != nil {
			fmt.Fprintf(out, "Script:\n%s\n", d.Scripting.Script)
		}
	default:
		printResponse(cmd, "", &d.Response)
		if d.ResponseMode == mock.ModeJittered && d.Jitter != nil {
			fmt.Fprintf(out, "Jitter:   %d%%\n", d.Jitter.ProbabilityPercent)
			printResponse(cmd, "  ", &d.Jitter.Response)
		}
	}
}

func printResponse(cmd *cobra.Command, indent string, r *mock.Response) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%sStatus:   %d\n", indent, r.Status)
	if r.LatencyMs > 0 {
		fmt.Fprintf(out, "%sLatency:  %dms\n", indent, r.LatencyMs)
	}
	for _, h := range r.Headers {
		fmt.Fprintf(out, "%sHeader:   %s: %s\n", indent, h.Key, h.Value)
	}
	if len(r.Body) > 0 {
		body := string(r.Body)
		if r.BodyType == mock.BodyText {
			body = r.TextBody()
		}
		fmt.Fprintf(out, "%sBody:     %s\n", indent, output.Truncate(body, 200))
	}
}
