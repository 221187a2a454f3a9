package mimictest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/getmockd/mimic/pkg/mock"
)

// MockBuilder builds mock definitions using a fluent API.
type MockBuilder struct {
	server *MockServer
	def    *mock.Definition
	err    error // First error encountered during building
}

// setError records the first error encountered during building.
// Subsequent errors are ignored (first error wins pattern).
func (b *MockBuilder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns any error encountered during building.
func (b *MockBuilder) Err() error {
	return b.err
}

// WithName sets a human-readable name.
func (b *MockBuilder) WithName(name string) *MockBuilder {
	b.def.Name = name
	return b
}

// WithStatus sets the HTTP response status code.
// Default is 200 (OK).
func (b *MockBuilder) WithStatus(status int) *MockBuilder {
	b.def.Status = status
	return b
}

// WithJSON sets a JSON response body. Strings and byte slices are taken as
// already encoded JSON; anything else is marshaled.
func (b *MockBuilder) WithJSON(body any) *MockBuilder {
	raw, err := encodeJSON(body)
	if err != nil {
		b.setError(err)
		return b
	}
	b.def.BodyType = mock.BodyJSON
	b.def.Body = raw
	return b
}

// WithText sets a plain text response body.
func (b *MockBuilder) WithText(body string) *MockBuilder {
	b.def.BodyType = mock.BodyText
	b.def.Body = mock.TextBody(body)
	return b
}

// WithHeader adds a response header. Repeated keys are all sent.
func (b *MockBuilder) WithHeader(key, value string) *MockBuilder {
	b.def.Headers = append(b.def.Headers, mock.Header{Key: key, Value: value})
	return b
}

// WithHeaders adds several response headers.
func (b *MockBuilder) WithHeaders(headers map[string]string) *MockBuilder {
	for k, v := range headers {
		b.WithHeader(k, v)
	}
	return b
}

// WithDelay sets the simulated latency of the baseline response.
func (b *MockBuilder) WithDelay(d time.Duration) *MockBuilder {
	b.def.LatencyMs = int(d / time.Millisecond)
	return b
}

// WithScript switches the mock to SCRIPTED mode with the given Lua source.
// The script sees a global "request" table and returns a table with
// status, headers and body.
func (b *MockBuilder) WithScript(src string) *MockBuilder {
	b.def.ResponseMode = mock.ModeScripted
	b.def.Scripting = &mock.Scripting{Script: src}
	return b
}

// WithJitter switches the mock to JITTERED mode: with the given probability
// the text response below replaces the baseline.
func (b *MockBuilder) WithJitter(probabilityPercent, status int, body string) *MockBuilder {
	b.def.ResponseMode = mock.ModeJittered
	b.def.Jitter = &mock.Jitter{
		ProbabilityPercent: probabilityPercent,
		Response: mock.Response{
			Status:   status,
			BodyType: mock.BodyText,
			Body:     mock.TextBody(body),
		},
	}
	return b
}

// WithJitterDelay sets the latency of the jitter response.
// It has no effect before WithJitter.
func (b *MockBuilder) WithJitterDelay(d time.Duration) *MockBuilder {
	if b.def.Jitter != nil {
		b.def.Jitter.LatencyMs = int(d / time.Millisecond)
	}
	return b
}

// Build validates and registers the mock and returns its stored form.
// An invalid mock fails the test.
func (b *MockBuilder) Build() *mock.Definition {
	b.server.t.Helper()

	if b.err != nil {
		b.server.t.Fatalf("mimictest: building %s %s: %v", b.def.Method, b.def.Path, b.err)
		return nil
	}
	return b.server.addMock(b.def)
}

// Reply is Build without a result.
// More readable in fluent chains:
//
//	srv.Mock("GET", "/api").WithStatus(200).Reply()
func (b *MockBuilder) Reply() {
	b.server.t.Helper()
	b.Build()
}

// RespondWith is a shorthand for setting status and JSON body together.
func (b *MockBuilder) RespondWith(status int, body any) *MockBuilder {
	return b.WithStatus(status).WithJSON(body)
}

// RespondNotFound configures a 404 Not Found response.
func (b *MockBuilder) RespondNotFound() *MockBuilder {
	return b.RespondWith(http.StatusNotFound, map[string]string{"error": "not_found"})
}

// RespondServerError configures a 500 Internal Server Error response.
func (b *MockBuilder) RespondServerError(message string) *MockBuilder {
	return b.RespondWith(http.StatusInternalServerError, map[string]string{"error": message})
}

// RespondNoContent configures a 204 No Content response.
func (b *MockBuilder) RespondNoContent() *MockBuilder {
	b.def.Body = nil
	return b.WithStatus(http.StatusNoContent)
}

func encodeJSON(body any) (json.RawMessage, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return checkJSON([]byte(v))
	case []byte:
		return checkJSON(v)
	case json.RawMessage:
		return checkJSON(v)
	}
	return json.Marshal(body)
}

func checkJSON(data []byte) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
