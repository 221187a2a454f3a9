// Package store persists mock definitions across restarts.
//
// Backends implement Store. The registry itself stays purely in memory;
// a Persister subscribed to registry changes writes each new snapshot to
// the backend after a short debounce, so bursts of admin calls cost a
// single write.
//
// Directory structure follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/mimic/ (mocks.json, mimic.db)
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/getmockd/mimic/pkg/mock"
)

// ErrClosed is returned when using a store after Close.
var ErrClosed = errors.New("store is closed")

// Backend represents a storage backend type.
type Backend string

const (
	// BackendMemory keeps definitions in memory only.
	BackendMemory Backend = "memory"
	// BackendFile stores definitions in a JSON file.
	BackendFile Backend = "file"
	// BackendSQLite stores definitions in an embedded SQLite database.
	BackendSQLite Backend = "sqlite"
)

// Backends lists the accepted backend names.
var Backends = []Backend{BackendMemory, BackendFile, BackendSQLite}

// ParseBackend parses a backend name case-insensitively.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BackendMemory, BackendFile, BackendSQLite:
		return b, nil
	case "":
		return BackendMemory, nil
	}
	return "", fmt.Errorf("unknown storage driver %q (supported: memory, file, sqlite)", s)
}

// DefaultPath returns the default location for a backend's data.
func (b Backend) DefaultPath() string {
	switch b {
	case BackendFile:
		return filepath.Join(DefaultDataDir(), "mocks.json")
	case BackendSQLite:
		return filepath.Join(DefaultDataDir(), "mimic.db")
	}
	return ""
}

// Store loads and saves the complete, ordered set of definitions.
type Store interface {
	// Load returns the stored definitions in creation order. A store with
	// no data yet returns an empty slice.
	Load(ctx context.Context) ([]*mock.Definition, error)
	// Save replaces the stored definitions with defs.
	Save(ctx context.Context, defs []*mock.Definition) error
	Close() error
}

// DefaultDataDir returns the default data directory following XDG spec.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "mimic")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mimic", "data")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "mimic")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "mimic")
		}
		return filepath.Join(home, "AppData", "Local", "mimic")
	}
	return filepath.Join(home, ".local", "share", "mimic")
}
