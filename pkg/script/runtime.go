package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/mimic/pkg/logging"
	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 2 * time.Second

// callStackSize limits recursion depth inside a script.
const callStackSize = 256

// removedGlobals are base library functions that could load code or touch
// the host.
var removedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require", "module", "collectgarbage",
}

// Request is the read-only view of an HTTP request handed to a script.
type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Query   url.Values
	Body    []byte
}

// Result is the response produced by a script.
type Result struct {
	Status int
	// Headers as returned by the script. Callers emit them sorted by key.
	Headers map[string]string
	// Text is true when the script returned a string body.
	Text bool
	Body json.RawMessage
}

// Error is returned for every script failure: a syntax or runtime error,
// a malformed result, a panic inside the VM or a timeout.
type Error struct {
	Message string
	Timeout bool
}

func (e *Error) Error() string {
	if e.Timeout {
		return "script timed out: " + e.Message
	}
	return "script error: " + e.Message
}

// Runtime executes scripts. It holds no interpreter state and is safe for
// concurrent use.
type Runtime struct {
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTimeout sets the per-call execution limit. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger that receives print() output.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runtime) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		timeout: DefaultTimeout,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured execution limit.
func (r *Runtime) Timeout() time.Duration {
	return r.timeout
}

// Run executes src against req. The returned error is always a *Error.
func (r *Runtime) Run(ctx context.Context, src string, req *Request) (res *Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	L := r.newState()
	defer L.Close()

	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &Error{Message: fmt.Sprintf("panic: %v", p)}
		}
	}()

	L.SetContext(ctx)
	L.SetGlobal("request", requestTable(L, req))

	top := L.GetTop()
	if runErr := L.DoString(src); runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Message: fmt.Sprintf("execution exceeded %s", r.timeout), Timeout: errors.Is(ctxErr, context.DeadlineExceeded)}
		}
		return nil, &Error{Message: runErr.Error()}
	}
	if L.GetTop() == top {
		return nil, &Error{Message: "script must return a table, got nothing"}
	}
	return toResult(L.Get(-1))
}

func (r *Runtime) newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:    true,
		CallStackSize:   callStackSize,
		RegistryMaxSize: registryMaxSize,
	})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(r.print))
	installLimits(L)
	return L
}

func (r *Runtime) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.log.Debug("script output", "message", strings.Join(parts, "\t"))
	return 0
}

// requestTable builds the global "request" table.
func requestTable(L *lua.LState, req *Request) *lua.LTable {
	t := L.NewTable()
	if req == nil {
		return t
	}
	t.RawSetString("method", lua.LString(req.Method))
	t.RawSetString("path", lua.LString(req.Path))

	headers := L.NewTable()
	for name, values := range req.Headers {
		if len(values) == 0 {
			continue
		}
		v := lua.LString(values[0])
		headers.RawSetString(http.CanonicalHeaderKey(name), v)
		headers.RawSetString(strings.ToLower(name), v)
	}
	t.RawSetString("headers", headers)

	query := L.NewTable()
	for name, values := range req.Query {
		if len(values) > 0 {
			query.RawSetString(name, lua.LString(values[0]))
		}
	}
	t.RawSetString("query", query)

	t.RawSetString("body", bodyValue(L, req.Body))
	return t
}

// bodyValue exposes a JSON body as Lua values and anything else as a string.
func bodyValue(L *lua.LState, body []byte) lua.LValue {
	if len(body) == 0 {
		return lua.LNil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return toLua(L, v)
	}
	return lua.LString(body)
}

// Check parses src without executing it.
func Check(src string) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	if _, err := L.LoadString(src); err != nil {
		return &Error{Message: err.Error()}
	}
	return nil
}
