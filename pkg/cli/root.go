package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mimic/pkg/config"
)

// DefaultAdminURL is used when neither --admin-url nor MIMIC_ADMIN_URL is set.
const DefaultAdminURL = "http://localhost:8080"

var (
	// Persistent flags available to all subcommands
	adminURL   string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mimic",
	Short: "mimic is an HTTP mock server with scripted and flaky responses",
	Long: `mimic serves mocked HTTP endpoints defined at runtime through its admin API.
Each mock answers with a static response, a Lua script, or a probabilistic
"jitter" response that simulates a misbehaving upstream.

Configuration can be provided via flags, environment variables (MIMIC_*), or
a configuration file (./mimic.yaml by default).`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminURL, "admin-url", defaultAdminURL(), "Base URL of a running mimic server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

func defaultAdminURL() string {
	if v := strings.TrimSpace(os.Getenv(config.EnvAdminURL)); v != "" {
		return v
	}
	return DefaultAdminURL
}

// newClient returns a client for the server selected by --admin-url.
func newClient() AdminClient {
	return NewAdminClient(adminURL)
}
