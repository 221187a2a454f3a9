// Package mock provides the Definition type that describes a single mocked
// HTTP endpoint: what it matches and how its response is produced.
package mock

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// ResponseMode selects which part of a Definition produces the response.
// Exactly one mode is active at a time; configuration belonging to the other
// modes may remain stored but is never evaluated.
type ResponseMode string

const (
	ModeStatic   ResponseMode = "STATIC"
	ModeScripted ResponseMode = "SCRIPTED"
	ModeJittered ResponseMode = "JITTERED"
)

// Valid reports whether m is one of the known response modes.
func (m ResponseMode) Valid() bool {
	switch m {
	case ModeStatic, ModeScripted, ModeJittered:
		return true
	}
	return false
}

// BodyType describes how a response body is serialized.
type BodyType string

const (
	BodyJSON BodyType = "json"
	BodyText BodyType = "text"
)

// MethodAny matches every HTTP verb.
const MethodAny = "ANY"

// Methods lists the accepted values for Definition.Method.
var Methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", MethodAny}

// Header is a single response header. Headers are kept as an ordered list so
// duplicates and author ordering survive storage and export.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is a fully static response description. It is used inline by
// Definition for the baseline response and by Jitter for the injected one.
type Response struct {
	Status    int             `json:"status"`
	BodyType  BodyType        `json:"bodyType"`
	Body      json.RawMessage `json:"body,omitempty"`
	Headers   []Header        `json:"headers"`
	LatencyMs int             `json:"latencyMs"`
}

// HeaderValue returns the first value configured for key (case-insensitive).
func (r *Response) HeaderValue(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// TextBody returns the body as a plain string when BodyType is text.
// A missing body yields the empty string.
func (r *Response) TextBody() string {
	if len(r.Body) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Body, &s); err != nil {
		return string(r.Body)
	}
	return s
}

// Jitter is the probabilistic alternate response of a JITTERED definition.
type Jitter struct {
	ProbabilityPercent int `json:"probabilityPercent"`
	Response
}

// Scripting holds the Lua source of a SCRIPTED definition.
type Scripting struct {
	Script string `json:"script"`
}

// Definition is a stored rule mapping method+path to a response strategy.
type Definition struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	Path         string       `json:"path"`
	Method       string       `json:"method"`
	ResponseMode ResponseMode `json:"responseMode"`

	// Baseline static response. Used by STATIC definitions and by JITTERED
	// definitions when the jitter roll does not trigger.
	Response

	Jitter    *Jitter    `json:"jitter,omitempty"`
	Scripting *Scripting `json:"scripting,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Normalize canonicalizes user input in place: upper-cased method, "*" as an
// alias for ANY, and defaults for an empty mode or body type. It is idempotent.
func (d *Definition) Normalize() {
	d.Method = strings.ToUpper(strings.TrimSpace(d.Method))
	if d.Method == "*" || d.Method == "" {
		d.Method = MethodAny
	}
	if d.ResponseMode == "" {
		d.ResponseMode = ModeStatic
	}
	d.ResponseMode = ResponseMode(strings.ToUpper(string(d.ResponseMode)))
	normalizeResponse(&d.Response)
	if d.Jitter != nil {
		normalizeResponse(&d.Jitter.Response)
	}
}

func normalizeResponse(r *Response) {
	if r.BodyType == "" {
		r.BodyType = BodyJSON
	}
	r.BodyType = BodyType(strings.ToLower(string(r.BodyType)))
	if bytes.Equal(bytes.TrimSpace(r.Body), []byte("null")) {
		r.Body = nil
	}
	if len(r.Body) > 0 && json.Valid(r.Body) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, r.Body); err == nil {
			r.Body = buf.Bytes()
		}
	}
	if r.Headers == nil {
		r.Headers = []Header{}
	}
}

// Clone returns a deep copy of d.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	c := *d
	c.Response = cloneResponse(d.Response)
	if d.Jitter != nil {
		j := *d.Jitter
		j.Response = cloneResponse(d.Jitter.Response)
		c.Jitter = &j
	}
	if d.Scripting != nil {
		s := *d.Scripting
		c.Scripting = &s
	}
	return &c
}

func cloneResponse(r Response) Response {
	out := r
	out.Body = bytes.Clone(r.Body)
	out.Headers = slices.Clone(r.Headers)
	return out
}

// MatchesMethod reports whether the definition accepts the given request verb.
func (d *Definition) MatchesMethod(method string) bool {
	return d.Method == MethodAny || strings.EqualFold(d.Method, method)
}

// JSONBody marshals v into a raw body for a json response.
func JSONBody(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// TextBody wraps s as the raw body of a text response.
func TextBody(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
