package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
	"github.com/getmockd/mimic/pkg/simulate"
)

var testCmd = &cobra.Command{
	Use:   "test <id>",
	Short: "Dry-run a mock and show the response it would produce",
	Long: `Run a mock through the full response pipeline without sending traffic.

The result is recorded in the traffic log with origin "simulation" and
includes a cURL command that sends the real request.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().TestMock(args[0])
		if err != nil {
			return clientError(err)
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), res)
		}
		printResult(cmd, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func printResult(cmd *cobra.Command, res *simulate.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s -> %d (%s, %s)\n", res.Method, res.Path, res.Status, res.Mode, res.Outcome)
	if res.JitterTriggered {
		fmt.Fprintln(out, "Jitter:   triggered")
	}
	if res.LatencyMs > 0 {
		fmt.Fprintf(out, "Latency:  %dms\n", res.LatencyMs)
	}
	for _, h := range res.Headers {
		fmt.Fprintf(out, "Header:   %s: %s\n", h.Key, h.Value)
	}
	if res.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", res.Error)
	}
	if body := resultBody(res.Body); body != "" {
		fmt.Fprintf(out, "Body:     %s\n", body)
	}
	fmt.Fprintf(out, "\n%s\n", res.Curl)
}

func resultBody(v any) string {
	switch b := v.(type) {
	case nil:
		return ""
	case string:
		return b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Sprint(b)
		}
		return string(data)
	}
}
