package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/mock"
)

// DefaultDebounce is how long the persister waits for further changes
// before writing.
const DefaultDebounce = 250 * time.Millisecond

// maxDelayFactor caps how long a steady stream of changes can postpone a
// write, as a multiple of the debounce.
const maxDelayFactor = 8

// Persister writes definition snapshots to a Store in the background.
// Notify never blocks, so it is safe to call from registry change
// listeners while the registry write lock is held.
type Persister struct {
	store    Store
	debounce time.Duration
	maxDelay time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	latest  []*mock.Definition
	dirty   bool
	saveMu  sync.Mutex
	notify  chan struct{}
	closeCh chan struct{}
	closed  chan struct{}
	once    sync.Once
	started bool
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithDebounce sets the quiet period before a write.
func WithDebounce(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d >= 0 {
			p.debounce = d
		}
	}
}

// WithMaxDelay bounds the time between the first unsaved change and its
// write, however often changes keep arriving. The default is eight times
// the debounce.
func WithMaxDelay(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithPersisterLogger sets the operational logger.
func WithPersisterLogger(log *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPersister creates a Persister writing to s. Call Start to begin
// background saving.
func NewPersister(s Store, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:    s,
		debounce: DefaultDebounce,
		log:      logging.Nop(),
		notify:   make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxDelay == 0 {
		p.maxDelay = maxDelayFactor * p.debounce
	}
	return p
}

// Start launches the save loop.
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.loop()
}

// Notify records defs as the state to persist. The slice must not be
// modified afterwards; registry snapshots satisfy this.
func (p *Persister) Notify(defs []*mock.Definition) {
	p.mu.Lock()
	p.latest = defs
	p.dirty = true
	p.mu.Unlock()

	// Non-blocking send to trigger save
	select {
	case p.notify <- struct{}{}:
	default:
		// Channel full, save already pending
	}
}

// Flush writes pending changes immediately.
func (p *Persister) Flush(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	defs := p.latest
	p.dirty = false
	p.mu.Unlock()

	if err := p.store.Save(ctx, defs); err != nil {
		// latest is either defs or a newer snapshot, both still unsaved.
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		return err
	}
	p.log.Debug("mocks persisted", "count", len(defs))
	return nil
}

// loop writes once changes have been quiet for the debounce, or once the
// oldest unsaved change reaches maxDelay.
func (p *Persister) loop() {
	defer close(p.closed)
	var timer *time.Timer
	var fire <-chan time.Time
	var pendingSince time.Time
	for {
		select {
		case <-p.notify:
			if fire == nil {
				pendingSince = time.Now()
			}
			wait := min(p.debounce, max(p.maxDelay-time.Since(pendingSince), 0))
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := p.Flush(context.Background()); err != nil {
				p.log.Error("failed to persist mocks", "error", err)
			}
		case <-p.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Close stops the save loop and writes any pending changes. Safe to call
// multiple times. It does not close the underlying store.
func (p *Persister) Close() error {
	p.once.Do(func() {
		close(p.closeCh)
	})
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.closed
	}
	return p.Flush(context.Background())
}
