package template

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, doc string, ctx *Context) string {
	t.Helper()
	out, err := New().RenderJSON(json.RawMessage(doc), ctx)
	require.NoError(t, err)
	return string(out)
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{"user", "123"}, Segments("/user/123"))
	assert.Equal(t, []string{"a", "b"}, Segments("//a//b/"))
	assert.Empty(t, Segments("/"))
}

func TestRenderJSON_PathTypes(t *testing.T) {
	tests := []struct {
		name string
		path string
		doc  string
		want string
	}{
		{"integer segment", "/user/123", `{"id":"{{path[1]}}"}`, `{"id":123}`},
		{"bool segment", "/convert/true", `{"v":"{{path[1]}}","s":"{{path[1]:string}}"}`, `{"v":true,"s":"true"}`},
		{"float segment", "/price/1.5", `{"v":"{{path[1]}}"}`, `{"v":1.5}`},
		{"string segment", "/user/ada", `{"v":"{{path[1]}}"}`, `{"v":"ada"}`},
		{"missing segment", "/user", `{"v":"{{path[4]}}"}`, `{"v":"null"}`},
		{"partial", "/user/123", `{"v":"id-{{path[1]}}-{{path[0]}}"}`, `{"v":"id-123-user"}`},
		{"whitespace", "/user/7", `{"v":"{{ path[1] }}"}`, `{"v":7}`},
		{"nested array", "/a/b", `[["{{path[0]}}"],{"x":"{{path[1]}}"}]`, `[["a"],{"x":"b"}]`},
		{"not a number", "/v/NaN", `{"v":"{{path[1]}}"}`, `{"v":"NaN"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext("GET", tt.path, nil, nil, nil)
			assert.JSONEq(t, tt.want, render(t, tt.doc, ctx))
		})
	}
}

func TestRenderJSON_BodyTypes(t *testing.T) {
	body := []byte(`{"num":42,"big":12345678901234567890,"flag":true,"data":{"a":[1,2]},"name":"ada","items":[{"id":"x"}]}`)
	ctx := NewContext("POST", "/echo", nil, nil, body)

	doc := `{
		"number": "{{body.num}}",
		"big": "{{body.big}}",
		"bool": "{{body.flag}}",
		"obj": "{{body.data}}",
		"first": "{{body.data.a[0]}}",
		"item": "{{body.items[0].id}}",
		"num_str": "{{body.num:string}}",
		"flag_str": "{{body.flag:string}}",
		"obj_str": "{{body.data:string}}",
		"missing": "{{body.nope}}",
		"greeting": "hi {{body.name}}, you sent {{body.num}}"
	}`
	want := `{
		"number": 42,
		"big": 12345678901234567890,
		"bool": true,
		"obj": {"a":[1,2]},
		"first": 1,
		"item": "x",
		"num_str": "42",
		"flag_str": "true",
		"obj_str": "{\"a\":[1,2]}",
		"missing": null,
		"greeting": "hi ada, you sent 42"
	}`
	assert.JSONEq(t, want, render(t, doc, ctx))
}

func TestRenderJSON_ArrayBody(t *testing.T) {
	ctx := NewContext("POST", "/", nil, nil, []byte(`[{"name":"first"}]`))
	assert.JSONEq(t, `{"v":"first"}`, render(t, `{"v":"{{body[0].name}}"}`, ctx))
}

func TestRenderJSON_NonJSONBody(t *testing.T) {
	ctx := NewContext("POST", "/", nil, nil, []byte("plain text"))
	assert.JSONEq(t, `{"v":null,"s":"x null"}`, render(t, `{"v":"{{body.a}}","s":"x {{body.a}}"}`, ctx))
}

func TestRenderJSON_RequestFields(t *testing.T) {
	ctx := NewContext("PUT", "/things",
		http.Header{"X-Tenant": []string{"acme"}},
		url.Values{"page": []string{"3"}},
		nil)
	doc := `{"m":"{{request.method}}","p":"{{request.path}}","page":"{{request.query.page}}","tenant":"{{request.header.x-tenant}}"}`
	assert.JSONEq(t, `{"m":"PUT","p":"/things","page":3,"tenant":"acme"}`, render(t, doc, ctx))
}

func TestRenderJSON_Builtins(t *testing.T) {
	e := New()
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	out, err := e.RenderJSON(json.RawMessage(`{"now":"{{now}}","ts":"{{timestamp}}","id":"{{uuid}}"}`), nil)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "2024-05-01T12:00:00Z", m["now"])
	assert.Equal(t, float64(1714564800), m["ts"])
	assert.Len(t, m["id"], 36)
}

func TestRenderJSON_UnknownExpressionUntouched(t *testing.T) {
	ctx := NewContext("GET", "/", nil, nil, nil)
	assert.JSONEq(t, `{"v":"{{faker.name}}","w":"a {{nope}} b"}`, render(t, `{"v":"{{faker.name}}","w":"a {{nope}} b"}`, ctx))
}

func TestRenderJSON_NoMarkersPassThrough(t *testing.T) {
	doc := json.RawMessage(`{"b":1,"a":"<tag>"}`)
	out, err := New().RenderJSON(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, string(doc), string(out))
}

func TestRenderJSON_NoHTMLEscaping(t *testing.T) {
	ctx := NewContext("GET", "/x", nil, nil, nil)
	assert.Equal(t, `{"v":"<b>x</b>"}`, render(t, `{"v":"<b>{{path[0]}}</b>"}`, ctx))
}

func TestRenderJSON_InvalidDocument(t *testing.T) {
	_, err := New().RenderJSON(json.RawMessage(`{"v":"{{path[0]}}"`), nil)
	assert.Error(t, err)
}

func TestRenderString(t *testing.T) {
	ctx := NewContext("GET", "/user/42", nil, nil, []byte(`{"n":{"x":1}}`))
	e := New()
	assert.Equal(t, "user 42 has {\"x\":1}", e.RenderString("user {{path[1]}} has {{body.n}}", ctx))
	assert.Equal(t, "no markers", e.RenderString("no markers", ctx))
}
