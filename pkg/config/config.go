// Package config holds the server configuration.
//
// Values come from several sources with the following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables (MIMIC_*)
//  3. Config file (--config, or ./mimic.yaml when present)
//  4. Default values (lowest priority)
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/script"
	"github.com/getmockd/mimic/pkg/store"
)

// DefaultFile is loaded when no config path is given and it exists.
const DefaultFile = "mimic.yaml"

// DefaultPort is the listen port for mocked traffic and the admin API.
const DefaultPort = 8080

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
)

// Sources identify where a config value originated.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is memory, file or sqlite.
	Driver string `yaml:"driver" json:"driver"`
	// Path of the data file. Empty selects the backend's default location.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMb,omitempty" json:"maxSizeMb,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty" json:"maxAgeDays,omitempty"`
	Compress   bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
	// Tee also writes to stderr when File is set.
	Tee bool `yaml:"tee,omitempty" json:"tee,omitempty"`
}

// Config is the complete server configuration.
type Config struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// PublicURL is how clients reach the server. It appears in rendered
	// cURL commands.
	PublicURL string `yaml:"publicUrl,omitempty" json:"publicUrl,omitempty"`

	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Log     LogConfig     `yaml:"log" json:"log"`

	MaxLogEntries int           `yaml:"maxLogEntries" json:"maxLogEntries"`
	ScriptTimeout time.Duration `yaml:"scriptTimeout" json:"scriptTimeout"`
	// JitterSeed makes jitter decisions reproducible. Zero seeds from the clock.
	JitterSeed uint64 `yaml:"jitterSeed,omitempty" json:"jitterSeed,omitempty"`

	// Sources tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Storage:         StorageConfig{Driver: string(store.BackendMemory)},
		Log:             LogConfig{Level: "info", Format: "text"},
		MaxLogEntries:   requestlog.DefaultCapacity,
		ScriptTimeout:   script.DefaultTimeout,
		Sources:         map[string]string{},
	}
}

// Load builds a configuration from defaults, the config file and the
// environment. An empty path loads DefaultFile if it exists; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.LoadFile(path); err != nil {
		if explicit || !errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path into cfg. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}

	var keys map[string]any
	if err := yaml.Unmarshal(data, &keys); err == nil {
		c.markSources(keys, "", SourceFile)
	}
	return nil
}

func (c *Config) markSources(keys map[string]any, prefix, source string) {
	if c.Sources == nil {
		c.Sources = map[string]string{}
	}
	for k, v := range keys {
		if nested, ok := v.(map[string]any); ok {
			c.markSources(nested, prefix+k+".", source)
			continue
		}
		c.Sources[prefix+k] = source
	}
}

// Source reports where the value for key came from.
func (c *Config) Source(key string) string {
	if s, ok := c.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// SetSource records that key was set by source.
func (c *Config) SetSource(key, source string) {
	if c.Sources == nil {
		c.Sources = map[string]string{}
	}
	c.Sources[key] = source
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns PublicURL or a URL derived from the listen address.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// Backend returns the parsed storage driver.
func (c *Config) Backend() store.Backend {
	b, err := store.ParseBackend(c.Storage.Driver)
	if err != nil {
		return store.BackendMemory
	}
	return b
}

// StoragePath returns the configured path or the backend default.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return c.Backend().DefaultPath()
}

// Logging converts the log section for pkg/logging.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Format = logging.ParseFormat(c.Log.Format)
	if c.Log.File != "" {
		cfg.File.Path = c.Log.File
		cfg.File.Compress = c.Log.Compress
		cfg.File.Tee = c.Log.Tee
		if c.Log.MaxSizeMB > 0 {
			cfg.File.MaxSizeMB = c.Log.MaxSizeMB
		}
		if c.Log.MaxBackups > 0 {
			cfg.File.MaxBackups = c.Log.MaxBackups
		}
		if c.Log.MaxAgeDays > 0 {
			cfg.File.MaxAgeDays = c.Log.MaxAgeDays
		}
	}
	return cfg
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if _, err := store.ParseBackend(c.Storage.Driver); err != nil {
		return err
	}
	if c.MaxLogEntries <= 0 {
		return fmt.Errorf("maxLogEntries must be positive, got %d", c.MaxLogEntries)
	}
	if c.ScriptTimeout <= 0 {
		return fmt.Errorf("scriptTimeout must be positive, got %s", c.ScriptTimeout)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation settings must not be negative")
	}
	return nil
}
