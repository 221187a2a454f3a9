// Package registry holds the live set of mock definitions.
//
// Reads are lock-free: the registry publishes an immutable snapshot through
// an atomic pointer and every write builds and installs a new one. A reader
// therefore sees either the state before a write or the state after it,
// never a mixture, which is what makes ReplaceAll atomic.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no definition has the requested id.
var ErrNotFound = errors.New("mock not found")

// ErrDuplicateID is returned by ReplaceAll when two definitions share an id.
var ErrDuplicateID = errors.New("duplicate mock id")

// Snapshot is an immutable view of the registry in creation order. Callers
// must not modify the definitions it holds.
type Snapshot struct {
	defs  []*mock.Definition
	index map[string]int
}

// Definitions returns the definitions in creation order.
func (s *Snapshot) Definitions() []*mock.Definition {
	return s.defs
}

// Len returns the number of definitions.
func (s *Snapshot) Len() int {
	return len(s.defs)
}

// Lookup returns the definition with id.
func (s *Snapshot) Lookup(id string) (*mock.Definition, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.defs[i], true
}

func newSnapshot(defs []*mock.Definition) *Snapshot {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}
	return &Snapshot{defs: defs, index: index}
}

// ChangeListener is notified after every successful write with the new
// snapshot. Listeners run on the writer's goroutine and must not block.
type ChangeListener func(*Snapshot)

// Registry is safe for concurrent use.
type Registry struct {
	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []ChangeListener
	now       func() time.Time
	log       *slog.Logger
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{
		now: time.Now,
		log: logging.Nop(),
	}
	r.current.Store(newSnapshot(nil))
	return r
}

// SetLogger sets the operational logger.
func (r *Registry) SetLogger(log *slog.Logger) {
	if log != nil {
		r.log = log
	}
}

// OnChange registers a listener for committed writes.
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot returns the current immutable view.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Count returns the number of stored definitions.
func (r *Registry) Count() int {
	return r.current.Load().Len()
}

// Get returns a copy of the definition with id.
func (r *Registry) Get(id string) (*mock.Definition, error) {
	d, ok := r.current.Load().Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.Clone(), nil
}

// List returns copies of all definitions in creation order.
func (r *Registry) List() []*mock.Definition {
	defs := r.current.Load().Definitions()
	out := make([]*mock.Definition, len(defs))
	for i, d := range defs {
		out[i] = d.Clone()
	}
	return out
}

// Create validates def, assigns a fresh id and appends it. Any id on the
// input is ignored.
func (r *Registry) Create(def *mock.Definition) (*mock.Definition, error) {
	d := def.Clone()
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	d.ID = uuid.New().String()
	d.CreatedAt = now
	d.UpdatedAt = now

	old := r.current.Load().defs
	defs := make([]*mock.Definition, len(old), len(old)+1)
	copy(defs, old)
	defs = append(defs, d)
	r.commit(newSnapshot(defs))

	r.log.Info("mock created", "id", d.ID, "method", d.Method, "path", d.Path, "mode", d.ResponseMode)
	return d.Clone(), nil
}

// Update replaces the definition with id. The id, creation time and
// position are kept. A non-empty id on the input must match.
func (r *Registry) Update(id string, def *mock.Definition) (*mock.Definition, error) {
	d := def.Clone()
	if d.ID != "" && d.ID != id {
		return nil, &mock.ValidationError{Field: "id", Message: "id in body does not match id in path"}
	}
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current.Load()
	i, ok := snap.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	d.ID = id
	d.CreatedAt = snap.defs[i].CreatedAt
	d.UpdatedAt = r.now()

	defs := make([]*mock.Definition, len(snap.defs))
	copy(defs, snap.defs)
	defs[i] = d
	r.commit(newSnapshot(defs))

	r.log.Info("mock updated", "id", id, "mode", d.ResponseMode)
	return d.Clone(), nil
}

// Delete removes the definition with id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current.Load()
	i, ok := snap.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	defs := make([]*mock.Definition, 0, len(snap.defs)-1)
	defs = append(defs, snap.defs[:i]...)
	defs = append(defs, snap.defs[i+1:]...)
	r.commit(newSnapshot(defs))

	r.log.Info("mock deleted", "id", id)
	return nil
}

// ReplaceAll swaps the entire content for defs. Every definition is
// validated before anything changes. Input ids are kept, missing ids are
// assigned, and slice order becomes creation order.
func (r *Registry) ReplaceAll(defs []*mock.Definition) error {
	next, err := r.prepare(defs)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commit(newSnapshot(next))

	r.log.Info("mocks replaced", "count", len(next))
	return nil
}

// Load installs defs without notifying listeners. It is used to seed the
// registry from persistent storage at startup.
func (r *Registry) Load(defs []*mock.Definition) error {
	next, err := r.prepare(defs)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Store(newSnapshot(next))
	return nil
}

func (r *Registry) prepare(defs []*mock.Definition) ([]*mock.Definition, error) {
	now := r.now()
	seen := make(map[string]int, len(defs))
	next := make([]*mock.Definition, 0, len(defs))
	for i, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("mock %d: %w", i, &mock.ValidationError{Field: "mock", Message: "definition is null"})
		}
		d := def.Clone()
		d.Normalize()
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("mock %d: %w", i, err)
		}
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if prev, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("mocks %d and %d: %w: %s", prev, i, ErrDuplicateID, d.ID)
		}
		seen[d.ID] = i
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = d.CreatedAt
		}
		next = append(next, d)
	}
	return next, nil
}

// commit installs snap and notifies listeners. Callers hold r.mu.
func (r *Registry) commit(snap *Snapshot) {
	r.current.Store(snap)
	for _, fn := range r.listeners {
		fn(snap)
	}
}
