package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 1000

// Logger is the write side used by the request pipeline.
type Logger interface {
	Append(entry Entry) Entry
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Outcome Outcome
	MockID  string
	Origin  Origin
	Method  string
	Limit   int
}

// Matches reports whether e passes the filter. Limit is not considered.
func (f *Filter) Matches(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.MockID != "" && e.MockID != f.MockID {
		return false
	}
	if f.Origin != "" && e.Origin != f.Origin {
		return false
	}
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	return true
}

// Subscriber receives entries as they are appended.
type Subscriber chan Entry

// Log is a fixed-capacity ring buffer of entries. It is safe for concurrent
// use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	head    int // index of the next write
	size    int

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}

	now func() time.Time
}

// New creates a Log holding at most capacity entries.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:     make([]Entry, capacity),
		subscribers: make(map[Subscriber]struct{}),
		now:         time.Now,
	}
}

// Append stores a copy of entry, evicting the oldest one when full. It
// assigns an id and timestamp when missing and returns the stored entry.
// Stored entries are never handed out by reference.
func (l *Log) Append(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	if entry.Origin == "" {
		entry.Origin = OriginTraffic
	}

	l.mu.Lock()
	l.entries[l.head] = entry.clone()
	l.head = (l.head + 1) % len(l.entries)
	if l.size < len(l.entries) {
		l.size++
	}
	l.mu.Unlock()

	// Notify subscribers (non-blocking)
	l.subMu.RLock()
	for sub := range l.subscribers {
		select {
		case sub <- entry.clone():
		default:
			// Drop if subscriber is slow
		}
	}
	l.subMu.RUnlock()

	return entry.clone()
}

// Recent returns up to n entries, newest first. n <= 0 returns everything.
func (l *Log) Recent(n int) []Entry {
	return l.List(&Filter{Limit: n})
}

// List returns matching entries, newest first.
func (l *Log) List(filter *Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	limit := l.size
	if filter != nil && filter.Limit > 0 && filter.Limit < limit {
		limit = filter.Limit
	}

	out := make([]Entry, 0, limit)
	for i := 0; i < l.size && len(out) < limit; i++ {
		idx := (l.head - 1 - i + len(l.entries)) % len(l.entries)
		if filter.Matches(&l.entries[idx]) {
			out = append(out, l.entries[idx].clone())
		}
	}
	return out
}

// Get returns the entry with id.
func (l *Log) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := 0; i < l.size; i++ {
		if l.entries[i].ID == id {
			return l.entries[i].clone(), true
		}
	}
	return Entry{}, false
}

// Count returns the number of stored entries.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the maximum number of stored entries.
func (l *Log) Capacity() int {
	return len(l.entries)
}

// Subscribe registers a subscriber to receive new entries.
// Returns a channel that will receive entries and an unsubscribe function.
func (l *Log) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, 100)

	l.subMu.Lock()
	l.subscribers[ch] = struct{}{}
	l.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subscribers, ch)
			l.subMu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Clear removes every entry and returns how many were dropped.
func (l *Log) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.size
	clear(l.entries)
	l.head = 0
	l.size = 0
	return n
}
