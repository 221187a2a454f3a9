package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
	"github.com/getmockd/mimic/pkg/mock"
)

var listMode string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured mocks",
	Example: `  mimic list
  mimic list --mode SCRIPTED
  mimic list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		defs, err := newClient().ListMocks()
		if err != nil {
			return clientError(err)
		}

		if listMode != "" {
			mode := mock.ResponseMode(strings.ToUpper(listMode))
			filtered := make([]*mock.Definition, 0, len(defs))
			for _, d := range defs {
				if d.ResponseMode == mode {
					filtered = append(filtered, d)
				}
			}
			defs = filtered
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(out, defs)
		}
		if len(defs) == 0 {
			fmt.Fprintln(out, "No mocks configured")
			return nil
		}
		return printMocksTable(cmd, defs)
	},
}

func init() {
	listCmd.Flags().StringVar(&listMode, "mode", "", "Filter by response mode: STATIC, SCRIPTED, JITTERED")
	rootCmd.AddCommand(listCmd)
}

func printMocksTable(cmd *cobra.Command, defs []*mock.Definition) error {
	w := output.Table(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tMETHOD\tPATH\tMODE\tSTATUS\tNAME")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Method, output.Truncate(d.Path, 40), d.ResponseMode, statusColumn(d), d.Name)
	}
	return w.Flush()
}

// statusColumn shows the baseline status, the jitter status beside it, or
// "lua" for scripted mocks whose status is decided at run time.
func statusColumn(d *mock.Definition) string {
	switch d.ResponseMode {
	case mock.ModeScripted:
		return "lua"
	case mock.ModeJittered:
		if d.Jitter != nil {
			return fmt.Sprintf("%d/%d@%d%%", d.Status, d.Jitter.Status, d.Jitter.ProbabilityPercent)
		}
	}
	return fmt.Sprint(d.Status)
}
