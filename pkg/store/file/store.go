// Package file provides a file-based implementation of store.Store.
// Definitions are kept in a single JSON document that is rewritten
// atomically on every save.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/store"
)

// Current data format version for migration support
const dataVersion = 1

// storeData is the on-disk document.
type storeData struct {
	Version int                `json:"version"`
	Mocks   []*mock.Definition `json:"mocks"`
}

// Store implements store.Store using a JSON file.
type Store struct {
	path   string
	mu     sync.Mutex
	closed bool
	log    *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a Store writing to path. The file and its directory are
// created on first save.
func New(path string) *Store {
	if path == "" {
		path = store.BackendFile.DefaultPath()
	}
	return &Store{path: path, log: logging.Nop()}
}

// SetLogger sets the operational logger.
func (s *Store) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// Path returns the data file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the data file. A missing file yields no definitions.
func (s *Store) Load(_ context.Context) ([]*mock.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*mock.Definition{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if stored.Version > dataVersion {
		return nil, fmt.Errorf("parse %s: unsupported data version %d", s.path, stored.Version)
	}
	if stored.Mocks == nil {
		stored.Mocks = []*mock.Definition{}
	}
	s.log.Debug("loaded mocks from file", "path", s.path, "count", len(stored.Mocks))
	return stored.Mocks, nil
}

// Save writes defs with an atomic rename.
func (s *Store) Save(_ context.Context, defs []*mock.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if defs == nil {
		defs = []*mock.Definition{}
	}

	data, err := json.MarshalIndent(storeData{Version: dataVersion, Mocks: defs}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, s.path); err != nil {
		_ = os.Remove(tmpFile) // Clean up temp file on failure
		return err
	}
	return nil
}

// Close marks the store closed. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
