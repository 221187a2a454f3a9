package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mimic/internal/matching"
	"github.com/getmockd/mimic/pkg/engine"
	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/metrics"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/portability"
	"github.com/getmockd/mimic/pkg/registry"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/simulate"
)

type testEnv struct {
	reg      *registry.Registry
	traffic  *requestlog.Log
	composer *engine.Composer
	api      *API
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		reg:     registry.New(),
		traffic: requestlog.New(50),
	}
	m := metrics.New()
	env.composer = engine.NewComposer(matching.New(env.reg),
		engine.WithTrafficLog(env.traffic),
		engine.WithMetrics(m),
	)
	sim := simulate.New(env.reg, env.composer)
	all := append([]Option{WithMetrics(m), WithVersion("test")}, opts...)
	env.api = New(env.reg, sim, portability.New(env.reg), env.traffic, all...)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.api.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.reg.Create(&mock.Definition{Path: "/x", Method: "GET", Response: mock.Response{Status: 200}})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/_admin/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 1, resp.Mocks)
}

func TestMocksCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/_admin/mocks",
		`{"path":"/users/{id}","method":"get","response":null,"status":200,"body":{"id":"{{path[1]}}"}}`)
	// "response" is not a field of a definition.
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.ErrInvalidJSON, decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, "/_admin/mocks",
		`{"path":"/users/{id}","method":"get","status":200,"body":{"id":"{{path[1]}}"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created mock.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "GET", created.Method)
	assert.Equal(t, mock.ModeStatic, created.ResponseMode)
	assert.Equal(t, "/_admin/mocks/"+created.ID, rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/_admin/mocks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []mock.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodPut, "/_admin/mocks/"+created.ID,
		`{"path":"/users/{id}","method":"GET","status":404,"bodyType":"text","body":"gone"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated mock.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 404, updated.Status)

	rec = env.do(t, http.MethodGet, "/_admin/mocks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gone"`)

	rec = env.do(t, http.MethodDelete, "/_admin/mocks/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/_admin/mocks/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httputil.ErrNotFound, decodeError(t, rec).Error)
}

func TestCreateMock_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing path", `{"method":"GET","status":200}`, "path"},
		{"bad status", `{"path":"/a","method":"GET","status":700}`, "status"},
		{"reserved path", `{"path":"/_admin/x","method":"GET","status":200}`, "path"},
		{"bad probability", `{"path":"/a","method":"GET","status":200,"responseMode":"JITTERED","jitter":{"probabilityPercent":150,"status":500}}`, "jitter.probabilityPercent"},
		{"broken script", `{"path":"/a","method":"GET","responseMode":"SCRIPTED","scripting":{"script":"return {"}}`, "scripting.script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPost, "/_admin/mocks", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, httputil.ErrValidation, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
			assert.Zero(t, env.reg.Count())
		})
	}
}

func TestUpdateMock_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/_admin/mocks/missing", `{"path":"/a","method":"GET","status":200}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestMock(t *testing.T) {
	env := newTestEnv(t)
	def, err := env.reg.Create(&mock.Definition{
		Path:     "/auto-test",
		Method:   "GET",
		Response: mock.Response{Status: 200, Body: json.RawMessage(`{"ok":true}`)},
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/_admin/mocks/"+def.ID+"/test", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var res simulate.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "curl -X GET 'http://localhost:8080/auto-test'", res.Curl)

	entries := env.traffic.List(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OriginSimulation, entries[0].Origin)

	rec = env.do(t, http.MethodGet, "/_admin/mocks/nope/test", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.reg.Create(&mock.Definition{Path: "/a", Method: "GET", Response: mock.Response{Status: 200}})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/_admin/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "mocks.json")
	exported := rec.Body.String()

	rec = env.do(t, http.MethodGet, "/_admin/export?format=yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "path: /a")

	rec = env.do(t, http.MethodGet, "/_admin/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/_admin/import", `[{"path":"/b","method":"POST","status":201},{"path":"/c","status":204}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported":2}`, rec.Body.String())
	assert.Equal(t, 2, env.reg.Count())

	rec = env.do(t, http.MethodPost, "/_admin/import", exported)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.reg.Count())
	assert.Equal(t, "/a", env.reg.List()[0].Path)

	rec = env.do(t, http.MethodPost, "/_admin/import", "- path: /y\n  method: GET\n  status: 200\n", "Content-Type", "application/yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/y", env.reg.List()[0].Path)
}

func TestImport_RejectsAndKeepsState(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.reg.Create(&mock.Definition{Path: "/keep", Method: "GET", Response: mock.Response{Status: 200}})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/_admin/import", `[{"path":"/ok","status":200},{"path":"/bad","status":999}]`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, httputil.ErrImportFormat, resp.Error)
	assert.Equal(t, "status", resp.Field)
	assert.Contains(t, resp.Message, "mock 1")
	require.Equal(t, 1, env.reg.Count())
	assert.Equal(t, "/keep", env.reg.List()[0].Path)

	rec = env.do(t, http.MethodPost, "/_admin/import", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.ErrImportFormat, decodeError(t, rec).Error)
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t)
	def, err := env.reg.Create(&mock.Definition{Path: "/a", Method: "GET", Response: mock.Response{Status: 200}})
	require.NoError(t, err)

	ctx := context.Background()
	env.composer.Compose(ctx, &engine.Request{Method: "GET", Path: "/a", Headers: http.Header{}})
	env.composer.Compose(ctx, &engine.Request{Method: "POST", Path: "/nothing", Headers: http.Header{}})

	rec := env.do(t, http.MethodGet, "/_admin/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LogListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 50, resp.Capacity)
	assert.Equal(t, requestlog.OutcomeNoMatch, resp.Entries[0].Outcome, "newest first")

	rec = env.do(t, http.MethodGet, "/_admin/logs?outcome=match&mockId="+def.ID, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	id := resp.Entries[0].ID

	rec = env.do(t, http.MethodGet, "/_admin/logs?limit=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = env.do(t, http.MethodGet, "/_admin/logs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry requestlog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, def.ID, entry.MockID)

	rec = env.do(t, http.MethodGet, "/_admin/logs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogStream(t *testing.T) {
	env := newTestEnv(t, WithStreamHeartbeat(time.Hour))
	srv := httptest.NewServer(env.api)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/_admin/logs/stream?outcome=NO_MATCH", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, _ := readEvent()
	require.Equal(t, "connected", event)

	// Filtered out, then delivered.
	env.traffic.Append(requestlog.Entry{Method: "GET", Path: "/hit", Outcome: requestlog.OutcomeMatch})
	env.traffic.Append(requestlog.Entry{Method: "GET", Path: "/miss", Outcome: requestlog.OutcomeNoMatch})

	event, data := readEvent()
	assert.Equal(t, "request", event)
	var entry requestlog.Entry
	require.NoError(t, json.Unmarshal([]byte(data), &entry))
	assert.Equal(t, "/miss", entry.Path)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/_admin/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mimic_uptime_seconds")
}

func TestUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/_admin/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httputil.ErrNotFound, decodeError(t, rec).Error)
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	big := `[` + strings.Repeat(" ", MaxBodySize+1) + `]`
	rec := env.do(t, http.MethodPost, "/_admin/import", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
