package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
	"github.com/getmockd/mimic/pkg/requestlog"
)

var (
	logsFilter  LogFilter
	logsFollow  bool
	logsVerbose bool
)

var logsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "Show the traffic log",
	Long: `Show recent requests handled by the server, newest first.

With an ID, show that single entry in full. With --follow, stream new
entries as they arrive.`,
	Example: `  mimic logs
  mimic logs -n 50 --outcome NO_MATCH
  mimic logs --mock 3f0c... --verbose
  mimic logs --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	f := logsCmd.Flags()
	f.IntVarP(&logsFilter.Limit, "limit", "n", 20, "Number of entries to show")
	f.StringVar(&logsFilter.Outcome, "outcome", "", "Filter by outcome: MATCH, NO_MATCH, SCRIPT_ERROR")
	f.StringVar(&logsFilter.MockID, "mock", "", "Filter by mock ID")
	f.StringVar(&logsFilter.Origin, "origin", "", "Filter by origin: traffic, simulation")
	f.StringVarP(&logsFilter.Method, "method", "m", "", "Filter by HTTP method")
	f.BoolVarP(&logsFollow, "follow", "f", false, "Stream logs in real-time (like tail -f)")
	f.BoolVarP(&logsVerbose, "verbose", "v", false, "Show headers and bodies")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	client := newClient()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		entry, err := client.GetLog(args[0])
		if err != nil {
			return clientError(err)
		}
		if jsonOutput {
			return output.JSON(out, entry)
		}
		printVerboseEntry(out, entry)
		return nil
	}

	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return followLogs(ctx, cmd, client)
	}

	result, err := client.GetLogs(&logsFilter)
	if err != nil {
		return clientError(err)
	}

	if jsonOutput {
		return output.JSON(out, result)
	}
	if len(result.Entries) == 0 {
		fmt.Fprintln(out, "No request logs")
		return nil
	}
	if logsVerbose {
		for i := range result.Entries {
			printVerboseEntry(out, &result.Entries[i])
		}
		return nil
	}

	w := output.Table(out)
	printTableHeader(w)
	for i := range result.Entries {
		printTableEntry(w, &result.Entries[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nShowing %d of %d entries (capacity %d)\n", result.Count, result.Total, result.Capacity)
	return nil
}

// followLogs streams entries until ctx is cancelled.
func followLogs(ctx context.Context, cmd *cobra.Command, client AdminClient) error {
	out := cmd.OutOrStdout()
	filter := logsFilter
	filter.Limit = 0

	if !jsonOutput {
		fmt.Fprintln(cmd.ErrOrStderr(), "Streaming logs (press Ctrl+C to stop)...")
	}
	err := client.StreamLogs(ctx, &filter, func(e requestlog.Entry) error {
		switch {
		case jsonOutput:
			return output.JSON(out, e)
		case logsVerbose:
			printVerboseEntry(out, &e)
		default:
			w := output.Table(out)
			printTableEntry(w, &e)
			return w.Flush()
		}
		return nil
	})
	if err != nil {
		return clientError(err)
	}
	return nil
}

func printTableHeader(w io.Writer) {
	fmt.Fprintln(w, "TIME\tMETHOD\tPATH\tSTATUS\tOUTCOME\tMOCK\tDURATION")
}

func printTableEntry(w io.Writer, e *requestlog.Entry) {
	mockID := e.MockID
	if mockID == "" {
		mockID = "(none)"
	}
	outcome := string(e.Outcome)
	if e.JitterTriggered {
		outcome += "*"
	}
	if e.Origin == requestlog.OriginSimulation {
		outcome += " (sim)"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%dms\n",
		e.Timestamp.Local().Format("15:04:05.000"),
		e.Method,
		output.Truncate(e.Path, 40),
		e.Response.Status,
		outcome,
		output.Truncate(mockID, 13),
		e.DurationMs,
	)
}

func printVerboseEntry(w io.Writer, e *requestlog.Entry) {
	fmt.Fprintf(w, "── %s %s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05.000"), e.Method, e.Path)
	fmt.Fprintf(w, "ID:       %s\n", e.ID)
	fmt.Fprintf(w, "Origin:   %s\n", e.Origin)
	fmt.Fprintf(w, "Outcome:  %s\n", e.Outcome)
	if e.MockID != "" {
		fmt.Fprintf(w, "Mock:     %s (%s)\n", e.MockID, e.Mode)
	}
	if e.JitterTriggered {
		fmt.Fprintln(w, "Jitter:   triggered")
	}
	if e.Query != "" {
		fmt.Fprintf(w, "Query:    %s\n", e.Query)
	}
	for k, vs := range e.Headers {
		for _, v := range vs {
			fmt.Fprintf(w, "  > %s: %s\n", k, v)
		}
	}
	if e.Body != "" {
		fmt.Fprintf(w, "Request:  %s\n", output.Truncate(e.Body, 500))
	}
	fmt.Fprintf(w, "Status:   %d in %dms\n", e.Response.Status, e.DurationMs)
	for _, h := range e.Response.Headers {
		fmt.Fprintf(w, "  < %s: %s\n", h.Key, h.Value)
	}
	if e.Response.Body != "" {
		fmt.Fprintf(w, "Response: %s\n", output.Truncate(e.Response.Body, 500))
	}
	if e.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", e.Error)
	}
	fmt.Fprintln(w)
}
