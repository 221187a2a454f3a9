package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mimic/internal/matching"
	"github.com/getmockd/mimic/pkg/engine"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/registry"
	"github.com/getmockd/mimic/pkg/requestlog"
)

func setup(t *testing.T, opts ...Option) (*Service, *registry.Registry, *requestlog.Log) {
	t.Helper()
	reg := registry.New()
	log := requestlog.New(10)
	composer := engine.NewComposer(matching.New(reg), engine.WithTrafficLog(log))
	return New(reg, composer, opts...), reg, log
}

func TestSimulate_StaticJSON(t *testing.T) {
	svc, reg, log := setup(t)
	def, err := reg.Create(&mock.Definition{
		Path:     "/auto-test",
		Method:   "ANY",
		Response: mock.Response{Status: 202, Body: json.RawMessage(`{"ok":true}`)},
	})
	require.NoError(t, err)

	res, err := svc.Simulate(context.Background(), def.ID)
	require.NoError(t, err)

	assert.Equal(t, "GET", res.Method)
	assert.Equal(t, 202, res.Status)
	assert.Equal(t, mock.BodyJSON, res.BodyType)
	assert.Equal(t, requestlog.OutcomeMatch, res.Outcome)
	assert.Equal(t, "curl -X GET 'http://localhost:8080/auto-test'", res.Curl)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body":{"ok":true}`)

	entries := log.Recent(1)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.OriginSimulation, entries[0].Origin)
	assert.Equal(t, res.LogID, entries[0].ID)
}

func TestSimulate_TextBody(t *testing.T) {
	svc, reg, _ := setup(t, WithBaseURL("https://mocks.example.com/"))
	def, err := reg.Create(&mock.Definition{
		Path:     "/text-test",
		Method:   "post",
		Response: mock.Response{Status: 200, BodyType: mock.BodyText, Body: mock.TextBody("Hello World <html>")},
	})
	require.NoError(t, err)

	res, err := svc.Simulate(context.Background(), def.ID)
	require.NoError(t, err)

	assert.Equal(t, "Hello World <html>", res.Body)
	assert.Equal(t, "curl -X POST 'https://mocks.example.com/text-test'", res.Curl)
	assert.NotContains(t, res.Curl, "Content-Type")
	assert.Empty(t, res.Headers)
}

func TestSimulate_ScriptError(t *testing.T) {
	svc, reg, _ := setup(t)
	def, err := reg.Create(&mock.Definition{
		Path:         "/lua",
		Method:       "GET",
		ResponseMode: mock.ModeScripted,
		Scripting:    &mock.Scripting{Script: `error("nope")`},
	})
	require.NoError(t, err)

	res, err := svc.Simulate(context.Background(), def.ID)
	require.NoError(t, err)

	assert.Equal(t, 500, res.Status)
	assert.Equal(t, requestlog.OutcomeScriptError, res.Outcome)
	assert.Contains(t, res.Error, "nope")
}

func TestSimulate_NotFound(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Simulate(context.Background(), "missing")
	assert.True(t, errors.Is(err, registry.ErrNotFound))
}

func TestRenderCurl(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		headers []mock.Header
		body    []byte
		want    string
	}{
		{
			name:   "bare",
			method: "GET",
			target: "http://h/a",
			want:   "curl -X GET 'http://h/a'",
		},
		{
			name:   "json body adds content type",
			method: "POST",
			target: "http://h/a",
			body:   []byte(`{"a":1}`),
			want:   `curl -X POST 'http://h/a' -H 'Content-Type: application/json' --data '{"a":1}'`,
		},
		{
			name:    "configured content type wins",
			method:  "PUT",
			target:  "http://h/a",
			headers: []mock.Header{{Key: "content-type", Value: "text/plain"}},
			body:    []byte(`1`),
			want:    `curl -X PUT 'http://h/a' -H 'content-type: text/plain' --data '1'`,
		},
		{
			name:   "text body",
			method: "POST",
			target: "http://h/a",
			body:   []byte(`hello`),
			want:   `curl -X POST 'http://h/a' --data 'hello'`,
		},
		{
			name:   "single quotes escaped",
			method: "GET",
			target: "http://h/it's",
			want:   `curl -X GET 'http://h/it'\''s'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderCurl(tt.method, tt.target, tt.headers, tt.body))
		})
	}
}
