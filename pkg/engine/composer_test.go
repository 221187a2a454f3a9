package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mimic/internal/matching"
	"github.com/getmockd/mimic/pkg/jitter"
	"github.com/getmockd/mimic/pkg/metrics"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/registry"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/script"
)

type fixture struct {
	reg      *registry.Registry
	log      *requestlog.Log
	metrics  *metrics.Metrics
	composer *Composer
	waits    []time.Duration
}

func newFixture(t *testing.T, opts ...ComposerOption) *fixture {
	t.Helper()
	f := &fixture{
		reg:     registry.New(),
		log:     requestlog.New(100),
		metrics: metrics.New(),
	}
	all := append([]ComposerOption{
		WithTrafficLog(f.log),
		WithMetrics(f.metrics),
	}, opts...)
	f.composer = NewComposer(matching.New(f.reg), all...)
	f.composer.wait = func(_ context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return nil
	}
	return f
}

func (f *fixture) create(t *testing.T, def *mock.Definition) *mock.Definition {
	t.Helper()
	created, err := f.reg.Create(def)
	require.NoError(t, err)
	return created
}

func get(path string) *Request {
	return &Request{Method: http.MethodGet, Path: path, Headers: http.Header{}, Origin: requestlog.OriginTraffic}
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestCompose_Static(t *testing.T) {
	f := newFixture(t)
	def := f.create(t, &mock.Definition{
		Path:     "/a",
		Method:   "GET",
		Response: mock.Response{Status: 202, BodyType: mock.BodyJSON, Body: json.RawMessage(`{"ok": true}`)},
	})

	out := f.composer.Compose(context.Background(), get("/a"))

	assert.Equal(t, 202, out.Status)
	assert.JSONEq(t, `{"ok":true}`, string(out.Body))
	assert.Equal(t, "application/json", out.HeaderValue("Content-Type"))
	assert.Equal(t, requestlog.OutcomeMatch, out.Outcome)
	assert.Equal(t, def.ID, out.MockID)
	assert.Empty(t, f.waits, "zero latency must not wait")

	entries := f.log.Recent(10)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OutcomeMatch, entries[0].Outcome)
	assert.Equal(t, def.ID, entries[0].MockID)
	assert.Equal(t, 202, entries[0].Response.Status)
	assert.Equal(t, out.LogID, entries[0].ID)
}

func TestCompose_StaticConfiguredContentType(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:   "/xml",
		Method: "GET",
		Response: mock.Response{
			Status:   200,
			BodyType: mock.BodyText,
			Body:     mock.TextBody("<ok/>"),
			Headers:  []mock.Header{{Key: "Content-Type", Value: "application/xml"}},
		},
	})

	out := f.composer.Compose(context.Background(), get("/xml"))

	assert.Equal(t, "<ok/>", string(out.Body))
	assert.Equal(t, "application/xml", out.HeaderValue("Content-Type"))
	require.Len(t, out.Headers, 1)
}

func TestCompose_StaticTextWithoutContentType(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:     "/t",
		Method:   "GET",
		Response: mock.Response{Status: 200, BodyType: mock.BodyText, Body: mock.TextBody("plain")},
	})

	out := f.composer.Compose(context.Background(), get("/t"))

	assert.Equal(t, "plain", string(out.Body))
	assert.Empty(t, out.HeaderValue("Content-Type"))
}

func TestCompose_StaticTemplates(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:   "/users/42",
		Method: "ANY",
		Response: mock.Response{
			Status:   200,
			BodyType: mock.BodyJSON,
			Body:     json.RawMessage(`{"id":"{{path[1]}}","method":"{{request.method}}"}`),
			Headers:  []mock.Header{{Key: "X-Path", Value: "{{request.path}}"}},
		},
	})

	req := get("/users/42")
	req.Method = http.MethodPut
	out := f.composer.Compose(context.Background(), req)

	assert.JSONEq(t, `{"id":42,"method":"PUT"}`, string(out.Body))
	assert.Equal(t, "/users/42", out.HeaderValue("X-Path"))
}

func TestCompose_Latency(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:     "/slow",
		Method:   "GET",
		Response: mock.Response{Status: 200, LatencyMs: 100},
	})

	out := f.composer.Compose(context.Background(), get("/slow"))

	assert.Equal(t, 100, out.LatencyMs)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, f.waits)
	assert.Empty(t, out.Body)
	assert.Empty(t, out.HeaderValue("Content-Type"))
}

func TestCompose_LatencyCancelled(t *testing.T) {
	f := newFixture(t)
	f.composer.wait = sleepContext
	f.create(t, &mock.Definition{
		Path:     "/slow",
		Method:   "GET",
		Response: mock.Response{Status: 200, LatencyMs: 5000},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	out := f.composer.Compose(ctx, get("/slow"))

	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestCompose_NoMatch(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Name:     "create order",
		Path:     "/orders",
		Method:   "POST",
		Response: mock.Response{Status: 201},
	})

	out := f.composer.Compose(context.Background(), get("/orders"))

	assert.Equal(t, http.StatusNotFound, out.Status)
	assert.Equal(t, requestlog.OutcomeNoMatch, out.Outcome)
	assert.Empty(t, out.MockID)

	body := decode(t, out.Body)
	assert.Equal(t, "no_match", body["error"])
	assert.Equal(t, NoMatchMessage, body["message"])
	assert.Equal(t, "GET", body["method"])
	assert.Equal(t, "/orders", body["path"])
	misses, ok := body["nearMisses"].([]any)
	require.True(t, ok)
	require.Len(t, misses, 1)

	entries := f.log.Recent(1)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OutcomeNoMatch, entries[0].Outcome)
	assert.Equal(t, float64(1), f.metrics.RequestsTotal.With("NO_MATCH", "").Value())
}

func TestCompose_NewestDefinitionWins(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{Path: "/dup", Method: "GET", Response: mock.Response{Status: 200}})
	newest := f.create(t, &mock.Definition{Path: "/dup", Method: "ANY", Response: mock.Response{Status: 201}})

	out := f.composer.Compose(context.Background(), get("/dup"))

	assert.Equal(t, 201, out.Status)
	assert.Equal(t, newest.ID, out.MockID)
}

func TestCompose_Scripted(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:         "/lua",
		Method:       "POST",
		ResponseMode: mock.ModeScripted,
		Scripting: &mock.Scripting{Script: `
			return {
				status = 201,
				headers = { ["X-From-Lua"] = "UI-Test" },
				body = { msg = "Hello from Lua UI!", method = request.method },
			}`},
	})

	req := get("/lua")
	req.Method = http.MethodPost
	out := f.composer.Compose(context.Background(), req)

	require.NoError(t, out.Err)
	assert.Equal(t, 201, out.Status)
	assert.Equal(t, "UI-Test", out.HeaderValue("X-From-Lua"))
	assert.Equal(t, "application/json", out.HeaderValue("Content-Type"))
	body := decode(t, out.Body)
	assert.Equal(t, "POST", body["method"])
	assert.Equal(t, "Hello from Lua UI!", body["msg"])
	assert.Equal(t, mock.ModeScripted, out.Mode)
}

func TestCompose_ScriptedHeadersSorted(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:         "/h",
		Method:       "GET",
		ResponseMode: mock.ModeScripted,
		Scripting:    &mock.Scripting{Script: `return { status = 200, headers = { ["X-B"] = "2", ["X-A"] = "1", ["X-C"] = 3 }, body = "ok" }`},
	})

	out := f.composer.Compose(context.Background(), get("/h"))

	require.Len(t, out.Headers, 3)
	assert.Equal(t, []mock.Header{{Key: "X-A", Value: "1"}, {Key: "X-B", Value: "2"}, {Key: "X-C", Value: "3"}}, out.Headers)
	assert.Equal(t, mock.BodyText, out.BodyType)
	assert.Equal(t, "ok", string(out.Body))
}

func TestCompose_ScriptRuntimeError(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:         "/boom",
		Method:       "GET",
		ResponseMode: mock.ModeScripted,
		Scripting:    &mock.Scripting{Script: `error("kaput")`},
	})

	out := f.composer.Compose(context.Background(), get("/boom"))

	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, requestlog.OutcomeScriptError, out.Outcome)
	require.Error(t, out.Err)
	body := decode(t, out.Body)
	assert.Equal(t, "script_error", body["error"])
	assert.Contains(t, body["message"], "kaput")

	entries := f.log.Recent(1)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OutcomeScriptError, entries[0].Outcome)
	assert.NotEmpty(t, entries[0].Error)
	assert.Equal(t, float64(1), f.metrics.ScriptErrors.With("error").Value())
}

func TestCompose_ScriptTimeout(t *testing.T) {
	f := newFixture(t, WithScriptRunner(script.New(script.WithTimeout(50*time.Millisecond))))
	f.create(t, &mock.Definition{
		Path:         "/spin",
		Method:       "GET",
		ResponseMode: mock.ModeScripted,
		Scripting:    &mock.Scripting{Script: `while true do end`},
	})

	out := f.composer.Compose(context.Background(), get("/spin"))

	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, requestlog.OutcomeScriptError, out.Outcome)
	assert.Equal(t, float64(1), f.metrics.ScriptErrors.With("timeout").Value())
}

func TestCompose_JitterAlwaysTriggers(t *testing.T) {
	f := newFixture(t)
	f.create(t, &mock.Definition{
		Path:         "/flaky",
		Method:       "GET",
		ResponseMode: mock.ModeJittered,
		Response:     mock.Response{Status: 200, Body: json.RawMessage(`{"ok":true}`)},
		Jitter: &mock.Jitter{
			ProbabilityPercent: 100,
			Response: mock.Response{
				Status:    418,
				BodyType:  mock.BodyText,
				Body:      mock.TextBody("Jitter Error Page"),
				LatencyMs: 50,
			},
		},
	})

	for range 5 {
		out := f.composer.Compose(context.Background(), get("/flaky"))
		assert.Equal(t, 418, out.Status)
		assert.Equal(t, "Jitter Error Page", string(out.Body))
		assert.True(t, out.JitterTriggered)
	}
	assert.Len(t, f.waits, 5)
	for _, d := range f.waits {
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Equal(t, float64(5), f.metrics.JitterTriggered.With().Value())
}

func TestCompose_JitterUsesSource(t *testing.T) {
	src := jitter.Sequence(0.10, 0.90)
	f := newFixture(t, WithJitterSource(src))
	f.create(t, &mock.Definition{
		Path:         "/coin",
		Method:       "GET",
		ResponseMode: mock.ModeJittered,
		Response:     mock.Response{Status: 200},
		Jitter:       &mock.Jitter{ProbabilityPercent: 50, Response: mock.Response{Status: 503}},
	})

	first := f.composer.Compose(context.Background(), get("/coin"))
	second := f.composer.Compose(context.Background(), get("/coin"))

	assert.Equal(t, 503, first.Status)
	assert.True(t, first.JitterTriggered)
	assert.Equal(t, 200, second.Status)
	assert.False(t, second.JitterTriggered)
	assert.Equal(t, 2, src.Draws())
}

func TestCompose_ModeSwitchIgnoresStaleConfig(t *testing.T) {
	f := newFixture(t)
	def := f.create(t, &mock.Definition{
		Path:         "/switch",
		Method:       "GET",
		ResponseMode: mock.ModeJittered,
		Response:     mock.Response{Status: 200},
		Jitter:       &mock.Jitter{ProbabilityPercent: 100, Response: mock.Response{Status: 418}},
	})

	update := def.Clone()
	update.ResponseMode = mock.ModeScripted
	update.Scripting = &mock.Scripting{Script: `return { status = 299 }`}
	_, err := f.reg.Update(def.ID, update)
	require.NoError(t, err)

	out := f.composer.Compose(context.Background(), get("/switch"))

	assert.Equal(t, 299, out.Status)
	assert.False(t, out.JitterTriggered)
	assert.Empty(t, out.Body)
}

func TestCompose_MalformedScriptUpdateRejected(t *testing.T) {
	f := newFixture(t)
	def := f.create(t, &mock.Definition{
		Path:     "/keep",
		Method:   "GET",
		Response: mock.Response{Status: 200},
	})

	update := def.Clone()
	update.ResponseMode = mock.ModeScripted
	update.Scripting = &mock.Scripting{Script: `return {`}
	_, err := f.reg.Update(def.ID, update)
	require.Error(t, err)

	out := f.composer.Compose(context.Background(), get("/keep"))
	assert.Equal(t, 200, out.Status)
	assert.Equal(t, mock.ModeStatic, out.Mode)
}

func TestCompose_MalformedScriptResultLeavesDefinition(t *testing.T) {
	f := newFixture(t)
	def := f.create(t, &mock.Definition{
		Path:         "/bad",
		Method:       "GET",
		ResponseMode: mock.ModeScripted,
		Scripting:    &mock.Scripting{Script: `return { body = "no status" }`},
	})

	out := f.composer.Compose(context.Background(), get("/bad"))
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, requestlog.OutcomeScriptError, out.Outcome)

	stored, err := f.reg.Get(def.ID)
	require.NoError(t, err)
	assert.Equal(t, def, stored)
}

func TestComposeDefinition_SimulationOrigin(t *testing.T) {
	f := newFixture(t)
	def := f.create(t, &mock.Definition{Path: "/sim", Method: "GET", Response: mock.Response{Status: 204}})

	req := get("/sim")
	req.Origin = requestlog.OriginSimulation
	out := f.composer.ComposeDefinition(context.Background(), def, req)

	assert.Equal(t, 204, out.Status)
	entries := f.log.Recent(1)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OriginSimulation, entries[0].Origin)
}
