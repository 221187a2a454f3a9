// Package sqlite provides an embedded SQLite implementation of store.Store
// built on gorm and the pure Go glebarez driver.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/store"
)

// batchSize bounds the rows inserted per statement.
const batchSize = 100

// mockRow is one stored definition. The full definition is kept as JSON;
// the other columns exist for ordering and ad hoc inspection.
type mockRow struct {
	ID         string `gorm:"primaryKey"`
	Position   int    `gorm:"index;not null"`
	Method     string `gorm:"not null"`
	Path       string `gorm:"index;not null"`
	Mode       string `gorm:"not null"`
	Definition string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (mockRow) TableName() string { return "mocks" }

// Store implements store.Store on SQLite.
type Store struct {
	db   *gorm.DB
	path string
	log  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the operational logger, which also receives gorm
// warnings and errors.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open opens or creates the database at path and migrates the schema.
// The path ":memory:" opens a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		path = store.BackendSQLite.DefaultPath()
	}
	s := &Store{path: path, log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(s.log),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive and shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&mockRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	s.db = db
	return s, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Load returns all stored definitions ordered by position.
func (s *Store) Load(ctx context.Context) ([]*mock.Definition, error) {
	var rows []mockRow
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load mocks: %w", err)
	}

	defs := make([]*mock.Definition, 0, len(rows))
	for _, row := range rows {
		var d mock.Definition
		if err := json.Unmarshal([]byte(row.Definition), &d); err != nil {
			return nil, fmt.Errorf("load mock %s: %w", row.ID, err)
		}
		defs = append(defs, &d)
	}
	s.log.Debug("loaded mocks from sqlite", "path", s.path, "count", len(defs))
	return defs, nil
}

// Save replaces the table content with defs in one transaction.
func (s *Store) Save(ctx context.Context, defs []*mock.Definition) error {
	rows := make([]mockRow, 0, len(defs))
	for i, d := range defs {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode mock %s: %w", d.ID, err)
		}
		rows = append(rows, mockRow{
			ID:         d.ID,
			Position:   i,
			Method:     d.Method,
			Path:       d.Path,
			Mode:       string(d.ResponseMode),
			Definition: string(data),
			CreatedAt:  d.CreatedAt,
			UpdatedAt:  d.UpdatedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&mockRow{}).Error; err != nil {
			return fmt.Errorf("clear mocks: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("insert mocks: %w", err)
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
