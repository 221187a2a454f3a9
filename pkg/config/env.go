package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variable names
const (
	EnvPort          = "MIMIC_PORT"
	EnvHost          = "MIMIC_HOST"
	EnvPublicURL     = "MIMIC_PUBLIC_URL"
	EnvStorageDriver = "MIMIC_STORAGE_DRIVER"
	EnvStoragePath   = "MIMIC_STORAGE_PATH"
	EnvLogLevel      = "MIMIC_LOG_LEVEL"
	EnvLogFormat     = "MIMIC_LOG_FORMAT"
	EnvLogFile       = "MIMIC_LOG_FILE"
	EnvMaxLogEntries = "MIMIC_MAX_LOG_ENTRIES"
	EnvScriptTimeout = "MIMIC_SCRIPT_TIMEOUT"
	EnvJitterSeed    = "MIMIC_JITTER_SEED"
	EnvConfig        = "MIMIC_CONFIG"
	EnvAdminURL      = "MIMIC_ADMIN_URL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with values present in the environment. Malformed
// numbers and durations are reported rather than ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(env, key string, dst *string) {
		if v, ok := lookup(env); ok && v != "" {
			*dst = v
			c.SetSource(key, SourceEnv)
		}
	}
	str(EnvHost, "host", &c.Host)
	str(EnvPublicURL, "publicUrl", &c.PublicURL)
	str(EnvStorageDriver, "storage.driver", &c.Storage.Driver)
	str(EnvStoragePath, "storage.path", &c.Storage.Path)
	str(EnvLogLevel, "log.level", &c.Log.Level)
	str(EnvLogFormat, "log.format", &c.Log.Format)
	str(EnvLogFile, "log.file", &c.Log.File)

	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = port
		c.SetSource("port", SourceEnv)
	}

	if v, ok := lookup(EnvMaxLogEntries); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", EnvMaxLogEntries, v)
		}
		c.MaxLogEntries = n
		c.SetSource("maxLogEntries", SourceEnv)
	}

	if v, ok := lookup(EnvScriptTimeout); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvScriptTimeout, err)
		}
		c.ScriptTimeout = d
		c.SetSource("scriptTimeout", SourceEnv)
	}

	if v, ok := lookup(EnvJitterSeed); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid seed %q", EnvJitterSeed, v)
		}
		c.JitterSeed = seed
		c.SetSource("jitterSeed", SourceEnv)
	}
	return nil
}

// parseDuration accepts Go duration strings and bare milliseconds.
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
