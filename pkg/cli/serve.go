package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/getmockd/mimic/pkg/config"
	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Start the mock server in the foreground.

Mocked traffic and the admin API share one port; the admin API lives under
/_admin. Flags override environment variables, which override the config file.`,
	Example: `  # Start on the default port with in-memory storage
  mimic serve

  # Keep mocks across restarts
  mimic serve --storage sqlite --storage-path ./mimic.db

  # Reproducible jitter decisions
  mimic serve --jitter-seed 42`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("config", "c", "", "Path to config file (default ./mimic.yaml if present, or MIMIC_CONFIG)")
	f.IntP("port", "p", config.DefaultPort, "Port for mocked traffic and the admin API")
	f.String("host", "", "Address to bind (default all interfaces)")
	f.String("public-url", "", "Base URL clients use to reach the server (used in cURL output)")
	f.String("storage", "memory", "Storage driver: memory, file, sqlite")
	f.String("storage-path", "", "Data file for the file or sqlite driver")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("log-format", "text", "Log format: text, json")
	f.String("log-file", "", "Write logs to a rotating file")
	f.Int("max-log-entries", 0, "Traffic log capacity")
	f.Duration("script-timeout", 0, "Maximum run time of a single script")
	f.Uint64("jitter-seed", 0, "Seed for jitter decisions (0 seeds from the clock)")
	f.Duration("shutdown-timeout", 0, "Grace period for in-flight requests on shutdown")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd.Flags())
	if err != nil {
		return err
	}

	log, closer := logging.New(cfg.Logging())
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, server.WithLogger(log), server.WithVersion(Version))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "mimic %s listening on %s (admin: %s/_admin)\n", Version, cfg.Addr(), cfg.BaseURL())
	return srv.Run(ctx)
}

// loadServeConfig resolves the configuration: defaults, then the config
// file, then MIMIC_* variables, then any flag set on the command line.
func loadServeConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyServeFlags(cfg, flags); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyServeFlags copies explicitly set flags onto cfg.
func applyServeFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key, e := applyFlag(cfg, flags, f.Name)
		if e != nil {
			err = fmt.Errorf("--%s: %w", f.Name, e)
			return
		}
		if key != "" {
			cfg.SetSource(key, config.SourceFlag)
		}
	})
	return err
}

// applyFlag sets one value and returns its config key.
func applyFlag(cfg *config.Config, flags *pflag.FlagSet, name string) (string, error) {
	var err error
	switch name {
	case "port":
		cfg.Port, err = flags.GetInt(name)
		return "port", err
	case "host":
		cfg.Host, err = flags.GetString(name)
		return "host", err
	case "public-url":
		cfg.PublicURL, err = flags.GetString(name)
		return "publicUrl", err
	case "storage":
		cfg.Storage.Driver, err = flags.GetString(name)
		return "storage.driver", err
	case "storage-path":
		cfg.Storage.Path, err = flags.GetString(name)
		return "storage.path", err
	case "log-level":
		cfg.Log.Level, err = flags.GetString(name)
		return "log.level", err
	case "log-format":
		cfg.Log.Format, err = flags.GetString(name)
		return "log.format", err
	case "log-file":
		cfg.Log.File, err = flags.GetString(name)
		return "log.file", err
	case "max-log-entries":
		cfg.MaxLogEntries, err = flags.GetInt(name)
		return "maxLogEntries", err
	case "script-timeout":
		cfg.ScriptTimeout, err = positiveDuration(flags, name)
		return "scriptTimeout", err
	case "jitter-seed":
		cfg.JitterSeed, err = flags.GetUint64(name)
		return "jitterSeed", err
	case "shutdown-timeout":
		cfg.ShutdownTimeout, err = positiveDuration(flags, name)
		return "shutdownTimeout", err
	}
	return "", nil
}

func positiveDuration(flags *pflag.FlagSet, name string) (time.Duration, error) {
	d, err := flags.GetDuration(name)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
