package template

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Context is the request data available to expressions.
type Context struct {
	Method   string
	Path     string
	Segments []string
	Query    url.Values
	Header   http.Header

	// Body is the decoded JSON request body, or nil when the body is empty
	// or not JSON.
	Body    any
	hasBody bool
}

// NewContext builds a Context from request parts.
func NewContext(method, path string, header http.Header, query url.Values, body []byte) *Context {
	c := &Context{
		Method:   method,
		Path:     path,
		Segments: Segments(path),
		Query:    query,
		Header:   header,
	}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			c.Body = v
			c.hasBody = true
		}
	}
	return c
}

// Segments splits a path into its non-empty segments.
func Segments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
