package matching

import (
	"strings"

	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/registry"
)

// SnapshotSource supplies the current registry view.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// Matcher matches requests against the live registry snapshot. It takes no
// locks of its own.
type Matcher struct {
	source SnapshotSource
}

// New creates a Matcher reading from source.
func New(source SnapshotSource) *Matcher {
	return &Matcher{source: source}
}

// Match returns the newest definition for method and path. The returned
// definition belongs to the snapshot and must not be modified.
func (m *Matcher) Match(method, path string) (*mock.Definition, bool) {
	return MatchIn(m.source.Snapshot().Definitions(), method, path)
}

// Definitions returns the snapshot the next Match would scan.
func (m *Matcher) Definitions() []*mock.Definition {
	return m.source.Snapshot().Definitions()
}

// MatchIn scans defs, which are in creation order, from newest to oldest.
func MatchIn(defs []*mock.Definition, method, path string) (*mock.Definition, bool) {
	for i := len(defs) - 1; i >= 0; i-- {
		d := defs[i]
		if d.Path == path && MatchMethod(d.Method, method) {
			return d, true
		}
	}
	return nil, false
}

// MatchMethod reports whether a definition method accepts the request
// method. Comparison is case-insensitive and ANY accepts everything.
func MatchMethod(expected, actual string) bool {
	return strings.EqualFold(expected, mock.MethodAny) || strings.EqualFold(expected, actual)
}
