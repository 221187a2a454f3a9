package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/cli/internal/output"
	"github.com/getmockd/mimic/pkg/portability"
)

var importFormat string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all mocks with the contents of a JSON or YAML file",
	Long: `Replace every mock on the server with the definitions in a file.

The file holds an array of definitions as produced by "mimic export". The
import is all-or-nothing: if any definition is invalid nothing changes.
Use "-" to read from stdin.`,
	Example: `  mimic import mocks.json
  mimic import mocks.yaml
  cat mocks.yml | mimic import - --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(importFormat, args[0])
		if err != nil {
			return err
		}

		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		n, err := newClient().Import(data, format)
		if err != nil {
			return clientError(err)
		}

		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), map[string]int{"imported": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d mocks\n", n)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format: json, yaml (default from file extension)")
	rootCmd.AddCommand(importCmd)
}

// resolveFormat prefers an explicit format, then the file extension.
func resolveFormat(explicit, filename string) (portability.Format, error) {
	if explicit != "" {
		return portability.ParseFormat(explicit)
	}
	return portability.FormatFromFilename(filename), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
