package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/getmockd/mimic/internal/matching"
	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/jitter"
	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/metrics"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/script"
	"github.com/getmockd/mimic/pkg/template"
)

const contentTypeJSON = "application/json"

// NoMatchMessage is the message of the 404 served when nothing matches.
const NoMatchMessage = "No matching response found"

// Matcher finds the definition for a request.
type Matcher interface {
	Match(method, path string) (*mock.Definition, bool)
	Definitions() []*mock.Definition
}

// ScriptRunner executes response scripts.
type ScriptRunner interface {
	Run(ctx context.Context, src string, req *script.Request) (*script.Result, error)
}

// Request is the transport-independent view of an incoming request.
type Request struct {
	Method     string
	Path       string
	Query      url.Values
	RawQuery   string
	Headers    http.Header
	Body       []byte
	RemoteAddr string
	Origin     requestlog.Origin
}

// Composed is the outcome of one pipeline run.
type Composed struct {
	Status   int
	Headers  []mock.Header
	BodyType mock.BodyType
	Body     []byte

	Outcome         requestlog.Outcome
	Mode            mock.ResponseMode
	MockID          string
	JitterTriggered bool
	LatencyMs       int
	Duration        time.Duration

	// Err is set for script failures and when the latency wait was
	// interrupted by cancellation.
	Err error
	// LogID is the id of the traffic log entry, when a log is attached.
	LogID string
}

// HeaderValue returns the first value of the named header.
func (c *Composed) HeaderValue(name string) string {
	for _, h := range c.Headers {
		if strings.EqualFold(h.Key, name) {
			return h.Value
		}
	}
	return ""
}

// Composer runs the request pipeline. It is safe for concurrent use.
type Composer struct {
	matcher   Matcher
	scripts   ScriptRunner
	source    jitter.Source
	templates *template.Engine
	traffic   requestlog.Logger
	metrics   *metrics.Metrics
	log       *slog.Logger
	wait      func(ctx context.Context, d time.Duration) error
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithScriptRunner sets the script runtime.
func WithScriptRunner(r ScriptRunner) ComposerOption {
	return func(c *Composer) { c.scripts = r }
}

// WithJitterSource sets the random source for jitter decisions.
func WithJitterSource(src jitter.Source) ComposerOption {
	return func(c *Composer) { c.source = src }
}

// WithTrafficLog sets where pipeline outcomes are recorded.
func WithTrafficLog(l requestlog.Logger) ComposerOption {
	return func(c *Composer) { c.traffic = l }
}

// WithMetrics enables metrics recording.
func WithMetrics(m *metrics.Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) ComposerOption {
	return func(c *Composer) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTemplates sets the body template engine. Nil disables templating.
func WithTemplates(e *template.Engine) ComposerOption {
	return func(c *Composer) { c.templates = e }
}

// NewComposer creates a Composer. Without options it uses a default script
// runtime, a time-seeded jitter source and templating, and records nothing.
func NewComposer(m Matcher, opts ...ComposerOption) *Composer {
	c := &Composer{
		matcher:   m,
		scripts:   script.New(),
		source:    jitter.NewSource(0),
		templates: template.New(),
		log:       logging.Nop(),
		wait:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose matches req and produces its response.
func (c *Composer) Compose(ctx context.Context, req *Request) *Composed {
	start := time.Now()
	def, ok := c.matcher.Match(req.Method, req.Path)
	if !ok {
		out := c.noMatch(req)
		out.Duration = time.Since(start)
		c.record(req, out)
		return out
	}
	return c.ComposeDefinition(ctx, def, req)
}

// ComposeDefinition runs the pipeline for a known definition, skipping the
// match step.
func (c *Composer) ComposeDefinition(ctx context.Context, def *mock.Definition, req *Request) *Composed {
	start := time.Now()
	out := &Composed{
		Outcome: requestlog.OutcomeMatch,
		Mode:    def.ResponseMode,
		MockID:  def.ID,
	}

	var tctx *template.Context
	if c.templates != nil {
		tctx = template.NewContext(req.Method, req.Path, req.Headers, req.Query, req.Body)
	}

	switch def.ResponseMode {
	case mock.ModeScripted:
		c.scripted(ctx, out, def, req)
	case mock.ModeJittered:
		resp := &def.Response
		if def.Jitter != nil && jitter.ShouldTrigger(def.Jitter.ProbabilityPercent, c.source) {
			resp = &def.Jitter.Response
			out.JitterTriggered = true
		}
		c.static(out, resp, tctx)
	default:
		c.static(out, &def.Response, tctx)
	}

	if out.LatencyMs > 0 {
		if err := c.wait(ctx, time.Duration(out.LatencyMs)*time.Millisecond); err != nil {
			out.Err = err
		}
	}

	out.Duration = time.Since(start)
	c.record(req, out)
	return out
}

func (c *Composer) scripted(ctx context.Context, out *Composed, def *mock.Definition, req *Request) {
	src := ""
	if def.Scripting != nil {
		src = def.Scripting.Script
	}
	res, err := c.scripts.Run(ctx, src, &script.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: req.Headers,
		Query:   req.Query,
		Body:    req.Body,
	})
	if err != nil {
		c.scriptError(out, def, err)
		return
	}

	out.Status = res.Status
	keys := make([]string, 0, len(res.Headers))
	for k := range res.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out.Headers = make([]mock.Header, 0, len(keys)+1)
	for _, k := range keys {
		out.Headers = append(out.Headers, mock.Header{Key: k, Value: res.Headers[k]})
	}

	if res.Text {
		out.BodyType = mock.BodyText
		var s string
		_ = json.Unmarshal(res.Body, &s)
		out.Body = []byte(s)
		return
	}
	out.BodyType = mock.BodyJSON
	out.Body = res.Body
	if len(out.Body) > 0 && !hasHeader(out.Headers, "Content-Type") {
		out.Headers = append(out.Headers, mock.Header{Key: "Content-Type", Value: contentTypeJSON})
	}
}

func (c *Composer) scriptError(out *Composed, def *mock.Definition, err error) {
	out.Outcome = requestlog.OutcomeScriptError
	out.Err = err
	out.Status = http.StatusInternalServerError
	out.BodyType = mock.BodyJSON
	out.Headers = []mock.Header{{Key: "Content-Type", Value: contentTypeJSON}}
	out.Body = mustJSON(httputil.ErrorResponse{Error: httputil.ErrScript, Message: err.Error()})

	kind := "error"
	var se *script.Error
	if errors.As(err, &se) && se.Timeout {
		kind = "timeout"
	}
	if c.metrics != nil {
		c.metrics.ScriptErrors.With(kind).Inc()
	}
	c.log.Warn("script failed", "id", def.ID, "path", def.Path, "error", err)
}

// static serializes a configured response block.
func (c *Composer) static(out *Composed, resp *mock.Response, tctx *template.Context) {
	out.Status = resp.Status
	out.LatencyMs = resp.LatencyMs
	out.BodyType = resp.BodyType

	out.Headers = make([]mock.Header, 0, len(resp.Headers)+1)
	for _, h := range resp.Headers {
		if tctx != nil {
			h.Value = c.templates.RenderString(h.Value, tctx)
		}
		out.Headers = append(out.Headers, h)
	}

	if resp.BodyType == mock.BodyText {
		body := resp.TextBody()
		if tctx != nil {
			body = c.templates.RenderString(body, tctx)
		}
		out.Body = []byte(body)
		return
	}

	if len(resp.Body) == 0 {
		return
	}
	body := []byte(resp.Body)
	if tctx != nil {
		rendered, err := c.templates.RenderJSON(resp.Body, tctx)
		if err != nil {
			c.log.Warn("template rendering failed", "error", err)
		} else {
			body = rendered
		}
	}
	out.Body = body
	if !hasHeader(out.Headers, "Content-Type") {
		out.Headers = append(out.Headers, mock.Header{Key: "Content-Type", Value: contentTypeJSON})
	}
}

// noMatchBody is served with the 404 for unmatched requests.
type noMatchBody struct {
	httputil.ErrorResponse
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	NearMisses []matching.NearMiss `json:"nearMisses,omitempty"`
}

func (c *Composer) noMatch(req *Request) *Composed {
	body := noMatchBody{
		ErrorResponse: httputil.ErrorResponse{Error: httputil.ErrNoMatch, Message: NoMatchMessage},
		Method:        req.Method,
		Path:          req.Path,
		NearMisses:    matching.CollectNearMisses(c.matcher.Definitions(), req.Method, req.Path, matching.DefaultNearMisses),
	}
	return &Composed{
		Status:   http.StatusNotFound,
		Headers:  []mock.Header{{Key: "Content-Type", Value: contentTypeJSON}},
		BodyType: mock.BodyJSON,
		Body:     mustJSON(body),
		Outcome:  requestlog.OutcomeNoMatch,
	}
}

// record appends the log entry and updates metrics.
func (c *Composer) record(req *Request, out *Composed) {
	if c.metrics != nil {
		c.metrics.RequestsTotal.With(string(out.Outcome), string(out.Mode)).Inc()
		c.metrics.RequestDuration.With(string(out.Outcome)).Observe(out.Duration.Seconds())
		if out.JitterTriggered {
			c.metrics.JitterTriggered.Inc()
		}
	}

	if c.traffic == nil {
		return
	}
	entry := requestlog.Entry{
		Origin:          req.Origin,
		Method:          req.Method,
		Path:            req.Path,
		Query:           req.RawQuery,
		Headers:         req.Headers.Clone(),
		Body:            requestlog.Truncate(string(req.Body)),
		BodySize:        len(req.Body),
		RemoteAddr:      req.RemoteAddr,
		Outcome:         out.Outcome,
		MockID:          out.MockID,
		Mode:            out.Mode,
		JitterTriggered: out.JitterTriggered,
		Response: requestlog.Response{
			Status:   out.Status,
			BodyType: out.BodyType,
			Body:     requestlog.Truncate(string(out.Body)),
			Headers:  append([]mock.Header{}, out.Headers...),
		},
		DurationMs: out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	out.LogID = c.traffic.Append(entry).ID
}

func hasHeader(headers []mock.Header, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h.Key, name) {
			return true
		}
	}
	return false
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal_error"}`)
	}
	return data
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
