package mimictest

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/requestlog"
)

// recordingTB captures failures instead of failing the enclosing test.
type recordingTB struct {
	testing.TB
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func get(t *testing.T, m *MockServer, path string) (*http.Response, string) {
	t.Helper()
	resp, err := m.Client().Get(m.URL() + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNew(t *testing.T) {
	m := New(t)
	require.NotNil(t, m)
	assert.Same(t, t, m.t.(*testing.T))
	assert.Empty(t, m.URL())
}

func TestStartAndStop(t *testing.T) {
	m := New(t)

	m.Mock("GET", "/test").
		WithStatus(200).
		WithText("hello").
		Reply()

	url := m.Start()
	require.True(t, strings.HasPrefix(url, "http://"), url)
	assert.Equal(t, url, m.Start(), "second Start returns the same URL")

	resp, body := get(t, m, "/test")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", body)

	m.Stop()
	assert.Equal(t, url, m.URL())
	m.Stop()
}

func TestMock_JSON(t *testing.T) {
	m := New(t)
	def := m.Mock("GET", "/users/123").
		WithName("user").
		WithStatus(201).
		WithJSON(map[string]string{"id": "123"}).
		WithHeader("X-Request-Id", "abc").
		Build()
	require.NotNil(t, def)
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, mock.ModeStatic, def.ResponseMode)
	m.Start()

	resp, body := get(t, m, "/users/123")
	assert.Equal(t, 201, resp.StatusCode)
	assert.JSONEq(t, `{"id":"123"}`, body)
	assert.Equal(t, "abc", resp.Header.Get("X-Request-Id"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestMock_Script(t *testing.T) {
	m := New(t)
	m.Mock("ANY", "/echo").
		WithScript(`return { status = 202, body = { method = request.method } }`).
		Reply()
	m.Start()

	resp, err := m.Client().Post(m.URL()+"/echo", "application/json", strings.NewReader(`{"user":{"name":"ada"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 202, resp.StatusCode)
	assert.JSONEq(t, `{"method":"POST"}`, string(body))

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	reqs[0].AssertMethod(t, "POST")
	reqs[0].AssertPath(t, "/echo")
	reqs[0].AssertJSONField(t, "user.name", "ada")
	reqs[0].AssertHeader(t, "content-type", "application/json")
	assert.Nil(t, reqs[0].JSONField("user.missing"))
}

func TestMock_Jitter(t *testing.T) {
	m := New(t, WithJitterSeed(7))
	m.Mock("GET", "/flaky").
		WithJSON(`{"ok":true}`).
		WithJitter(100, 503, "down").
		WithJitterDelay(10 * time.Millisecond).
		Reply()
	m.Start()

	for range 3 {
		resp, body := get(t, m, "/flaky")
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, "down", body)
	}
	for _, r := range m.Requests() {
		assert.True(t, r.JitterTriggered)
		assert.Equal(t, 503, r.Status)
	}
}

func TestAssertions(t *testing.T) {
	m := New(t)
	m.Mock("GET", "/a").RespondWith(200, map[string]int{"n": 1}).Reply()
	m.Mock("DELETE", "/b").RespondNoContent().Reply()
	m.Start()

	get(t, m, "/a")
	get(t, m, "/a?page=2")

	m.AssertCalled(t, "GET", "/a")
	m.AssertCalledTimes(t, "get", "/a", 2)
	m.AssertNotCalled(t, "DELETE", "/b")
	m.AssertNoUnmatched(t)

	newest := m.Requests()[0]
	newest.AssertQueryParam(t, "page", "2")
	assert.Equal(t, requestlog.OutcomeMatch, newest.Outcome)
	assert.NotEmpty(t, newest.MatchedID)
}

func TestAssertNoUnmatched_Fails(t *testing.T) {
	m := New(t)
	m.Start()
	resp, _ := get(t, m, "/nothing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	rec := &recordingTB{TB: t}
	m.AssertNoUnmatched(rec)
	require.Len(t, rec.errors, 1)
	assert.Contains(t, rec.errors[0], "GET /nothing")
}

func TestReset(t *testing.T) {
	m := New(t)
	m.Mock("GET", "/gone").Reply()
	m.Start()
	get(t, m, "/gone")
	require.Len(t, m.Requests(), 1)

	m.Reset()

	assert.Empty(t, m.Requests())
	assert.Zero(t, m.Server().Registry().Count())
	resp, _ := get(t, m, "/gone")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMockBuilder_InvalidJSON(t *testing.T) {
	m := New(t)
	b := m.Mock("GET", "/bad").WithJSON(`{"unterminated"`)
	first := b.Err()
	require.Error(t, first)

	b.WithJSON(`{"fine":true}`).WithJSON(make(chan int))
	assert.Equal(t, first, b.Err(), "first error wins")
}

func TestRespondServerError(t *testing.T) {
	m := New(t)
	m.Mock("GET", "/boom").RespondServerError("kaput").Reply()
	m.Start()

	resp, body := get(t, m, "/boom")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "kaput")
}
