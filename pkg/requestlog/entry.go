package requestlog

import (
	"slices"
	"time"
	"unicode/utf8"

	"github.com/getmockd/mimic/pkg/mock"
)

// Outcome classifies how a request was handled.
type Outcome string

const (
	OutcomeMatch       Outcome = "MATCH"
	OutcomeNoMatch     Outcome = "NO_MATCH"
	OutcomeScriptError Outcome = "SCRIPT_ERROR"
)

// Origin tells genuine traffic apart from dry runs.
type Origin string

const (
	OriginTraffic    Origin = "traffic"
	OriginSimulation Origin = "simulation"
)

// MaxBodySize is the largest request or response body kept in an entry.
const MaxBodySize = 10 * 1024

// Response is the response that was actually served.
type Response struct {
	Status   int           `json:"status"`
	BodyType mock.BodyType `json:"bodyType,omitempty"`
	Body     string        `json:"body,omitempty"`
	Headers  []mock.Header `json:"headers"`
}

// Entry captures one handled request.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin"`

	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Query      string              `json:"query,omitempty"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       string              `json:"body,omitempty"`
	BodySize   int                 `json:"bodySize"`
	RemoteAddr string              `json:"remoteAddr,omitempty"`

	Outcome Outcome `json:"outcome"`

	// MockID is empty for NO_MATCH.
	MockID          string            `json:"mockId,omitempty"`
	Mode            mock.ResponseMode `json:"mode,omitempty"`
	JitterTriggered bool              `json:"jitterTriggered"`

	Response   Response `json:"response"`
	DurationMs int64    `json:"durationMs"`
	Error      string   `json:"error,omitempty"`
}

// Truncate shortens s to at most MaxBodySize bytes without splitting a
// UTF-8 sequence.
func Truncate(s string) string {
	if len(s) <= MaxBodySize {
		return s
	}
	cut := MaxBodySize
	for cut > 0 && cut > MaxBodySize-utf8.UTFMax && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// clone returns a copy of e that shares no maps or slices with it.
func (e Entry) clone() Entry {
	if e.Headers != nil {
		headers := make(map[string][]string, len(e.Headers))
		for k, v := range e.Headers {
			headers[k] = slices.Clone(v)
		}
		e.Headers = headers
	}
	e.Response.Headers = slices.Clone(e.Response.Headers)
	return e
}
