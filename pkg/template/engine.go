package template

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
)

// templateRegex matches {{expression}} with optional surrounding whitespace.
var templateRegex = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

var (
	pathPattern = regexp.MustCompile(`^path\[(\d+)\]$`)
	bodyPattern = regexp.MustCompile(`^body([.\[][A-Za-z0-9._\[\]-]+)$`)
)

const stringFilter = ":string"

// Engine evaluates expressions. It caches compiled body paths and is safe
// for concurrent use.
type Engine struct {
	paths sync.Map // string -> jp.Expr
	now   func() time.Time
}

// New creates an Engine.
func New() *Engine {
	return &Engine{now: time.Now}
}

// HasTemplate reports whether data contains an expression marker.
func HasTemplate(data []byte) bool {
	return bytes.Contains(data, []byte("{{"))
}

// RenderJSON resolves expressions inside the string values of a JSON
// document. Documents without markers are returned unchanged.
func (e *Engine) RenderJSON(doc json.RawMessage, ctx *Context) (json.RawMessage, error) {
	if !HasTemplate(doc) {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.walk(v, ctx)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RenderString substitutes every expression in s as text.
func (e *Engine) RenderString(s string, ctx *Context) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return templateRegex.ReplaceAllStringFunc(s, func(match string) string {
		expr := templateRegex.FindStringSubmatch(match)[1]
		v, known := e.evaluate(expr, ctx)
		if !known {
			return match
		}
		return textValue(v)
	})
}

func (e *Engine) walk(v any, ctx *Context) any {
	switch val := v.(type) {
	case string:
		return e.renderValue(val, ctx)
	case []any:
		for i := range val {
			val[i] = e.walk(val[i], ctx)
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = e.walk(val[k], ctx)
		}
		return val
	default:
		return v
	}
}

// renderValue returns a typed value when s is a single expression and a
// substituted string otherwise.
func (e *Engine) renderValue(s string, ctx *Context) any {
	loc := templateRegex.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	if loc[0] != 0 || loc[1] != len(s) {
		return e.RenderString(s, ctx)
	}
	expr := s[loc[2]:loc[3]]
	v, known := e.evaluate(expr, ctx)
	if !known {
		return s
	}
	return v
}

// evaluate resolves expr. The bool result is false for expressions the
// engine does not understand.
func (e *Engine) evaluate(expr string, ctx *Context) (any, bool) {
	expr = strings.TrimSpace(expr)
	asString := strings.HasSuffix(expr, stringFilter)
	expr = strings.TrimSpace(strings.TrimSuffix(expr, stringFilter))

	if m := bodyPattern.FindStringSubmatch(expr); m != nil {
		v, ok := e.lookupBody(m[1], ctx)
		if !ok {
			if asString {
				return "null", true
			}
			return nil, true
		}
		if asString {
			return textValue(v), true
		}
		return v, true
	}

	raw, known := e.scalar(expr, ctx)
	if !known {
		return nil, false
	}
	if asString {
		return raw, true
	}
	return parseScalar(raw), true
}

// scalar resolves the string valued expressions.
func (e *Engine) scalar(expr string, ctx *Context) (string, bool) {
	if m := pathPattern.FindStringSubmatch(expr); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err != nil || ctx == nil || idx >= len(ctx.Segments) {
			return "null", true
		}
		return ctx.Segments[idx], true
	}

	switch expr {
	case "uuid":
		return uuid.New().String(), true
	case "now":
		return e.now().UTC().Format(time.RFC3339), true
	case "timestamp":
		return strconv.FormatInt(e.now().Unix(), 10), true
	}

	if ctx == nil {
		return "", false
	}
	switch expr {
	case "request.method":
		return ctx.Method, true
	case "request.path":
		return ctx.Path, true
	}
	if name, ok := strings.CutPrefix(expr, "request.query."); ok {
		return ctx.Query.Get(name), true
	}
	if name, ok := strings.CutPrefix(expr, "request.header."); ok {
		return ctx.Header.Get(name), true
	}
	return "", false
}

func (e *Engine) lookupBody(selector string, ctx *Context) (any, bool) {
	if ctx == nil || !ctx.hasBody {
		return nil, false
	}
	x, err := e.compile("$" + selector)
	if err != nil {
		return nil, false
	}
	results := x.Get(ctx.Body)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

func (e *Engine) compile(path string) (jp.Expr, error) {
	if cached, ok := e.paths.Load(path); ok {
		return cached.(jp.Expr), nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, err
	}
	e.paths.Store(path, x)
	return x, nil
}

// parseScalar turns "true", "42" or "1.5" into typed values.
func parseScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXnN") {
		return f
	}
	return s
}

// textValue renders v for substitution into a string.
func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "null"
		}
		return string(data)
	}
}
