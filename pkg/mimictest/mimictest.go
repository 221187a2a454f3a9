package mimictest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/getmockd/mimic/pkg/config"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/server"
)

// MockServer is a test helper for running mimic in tests.
// It provides a fluent API for configuring mock endpoints and assertions.
type MockServer struct {
	t       testing.TB
	server  *server.Server
	httpSrv *httptest.Server
	mu      sync.Mutex
	baseURL string
}

// Option configures a MockServer.
type Option func(*config.Config)

// WithJitterSeed makes jitter decisions reproducible across runs.
func WithJitterSeed(seed uint64) Option {
	return func(c *config.Config) { c.JitterSeed = seed }
}

// WithMaxLogEntries sets the traffic log capacity.
func WithMaxLogEntries(n int) Option {
	return func(c *config.Config) { c.MaxLogEntries = n }
}

// New creates a new mock server for testing.
// The mock server will be automatically cleaned up when the test completes.
func New(t testing.TB, opts ...Option) *MockServer {
	t.Helper()

	cfg := config.Default()
	for _, opt := range opts {
		opt(cfg)
	}

	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("mimictest: failed to create server: %v", err)
	}

	m := &MockServer{t: t, server: srv}
	t.Cleanup(m.Stop)
	return m
}

// Start starts serving and returns the base URL. Calling it again returns
// the same URL.
func (m *MockServer) Start() string {
	m.t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpSrv == nil {
		m.httpSrv = httptest.NewServer(m.server.Handler())
		m.baseURL = m.httpSrv.URL
	}
	return m.baseURL
}

// Stop stops the mock server. It is registered with t.Cleanup by New.
func (m *MockServer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpSrv != nil {
		m.httpSrv.Close()
		m.httpSrv = nil
	}
	_ = m.server.Shutdown(context.Background())
}

// URL returns the base URL of the mock server.
// Returns empty string if the server is not started.
func (m *MockServer) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseURL
}

// Client returns an http.Client configured to work with the mock server.
func (m *MockServer) Client() *http.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpSrv != nil {
		return m.httpSrv.Client()
	}
	return http.DefaultClient
}

// Server returns the underlying server for advanced use cases.
// Most tests should not need this.
func (m *MockServer) Server() *server.Server {
	return m.server
}

// Mock starts a mock endpoint definition. The default response is an empty
// 200. Call Reply to register it.
//
// Example:
//
//	srv.Mock("GET", "/users/123").
//	    WithStatus(200).
//	    WithJSON(map[string]string{"id": "123"}).
//	    Reply()
func (m *MockServer) Mock(method, path string) *MockBuilder {
	return &MockBuilder{
		server: m,
		def: &mock.Definition{
			Method:       method,
			Path:         path,
			ResponseMode: mock.ModeStatic,
			Response:     mock.Response{Status: http.StatusOK},
		},
	}
}

// Reset removes every mock and clears the traffic log.
// Use this between test cases to start fresh.
func (m *MockServer) Reset() {
	m.t.Helper()

	if err := m.server.Registry().ReplaceAll(nil); err != nil {
		m.t.Fatalf("mimictest: reset mocks: %v", err)
	}
	m.server.TrafficLog().Clear()
}

// Requests returns all logged requests for assertions.
// Requests are returned in reverse chronological order (newest first).
// Dry runs are excluded.
func (m *MockServer) Requests() []RequestLog {
	entries := m.server.TrafficLog().List(&requestlog.Filter{Origin: requestlog.OriginTraffic})
	result := make([]RequestLog, len(entries))
	for i := range entries {
		result[i] = newRequestLog(&entries[i])
	}
	return result
}

// AssertCalled asserts that an endpoint was called at least once.
func (m *MockServer) AssertCalled(t testing.TB, method, path string) {
	t.Helper()

	if m.countCalls(method, path) == 0 {
		t.Errorf("expected %s %s to be called, but it was not called", method, path)
	}
}

// AssertCalledTimes asserts that an endpoint was called exactly n times.
func (m *MockServer) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()

	count := m.countCalls(method, path)
	if count != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times",
			method, path, times, count)
	}
}

// AssertNotCalled asserts that an endpoint was not called.
func (m *MockServer) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()

	count := m.countCalls(method, path)
	if count > 0 {
		t.Errorf("expected %s %s to not be called, but it was called %d times",
			method, path, count)
	}
}

// AssertNoUnmatched asserts that every request hit a mock.
func (m *MockServer) AssertNoUnmatched(t testing.TB) {
	t.Helper()

	for _, r := range m.Requests() {
		if r.Outcome == requestlog.OutcomeNoMatch {
			t.Errorf("unexpected request without a mock: %s %s", r.Method, r.Path)
		}
	}
}

// countCalls counts how many times a method/path combination was called.
func (m *MockServer) countCalls(method, path string) int {
	count := 0
	for _, r := range m.Requests() {
		if strings.EqualFold(r.Method, method) && r.Path == path {
			count++
		}
	}
	return count
}

// addMock registers a definition. Called internally by MockBuilder.Reply().
func (m *MockServer) addMock(def *mock.Definition) *mock.Definition {
	m.t.Helper()

	created, err := m.server.Registry().Create(def)
	if err != nil {
		m.t.Fatalf("mimictest: invalid mock %s %s: %v", def.Method, def.Path, err)
		return nil
	}
	return created
}
