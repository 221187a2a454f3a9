// Package simulate dry-runs a stored definition through the response
// pipeline without a network round trip.
package simulate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/getmockd/mimic/pkg/engine"
	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/requestlog"
)

// DefaultBaseURL is used in rendered cURL commands when no public URL is
// configured.
const DefaultBaseURL = "http://localhost:8080"

// Definitions looks up stored definitions.
type Definitions interface {
	Get(id string) (*mock.Definition, error)
}

// Composer runs the pipeline for a given definition.
type Composer interface {
	ComposeDefinition(ctx context.Context, def *mock.Definition, req *engine.Request) *engine.Composed
}

// Result is the outcome of a simulation.
type Result struct {
	MockID string `json:"mockId"`
	Method string `json:"method"`
	Path   string `json:"path"`
	URL    string `json:"url"`

	Status   int           `json:"status"`
	Headers  []mock.Header `json:"headers"`
	BodyType mock.BodyType `json:"bodyType"`
	// Body is the decoded JSON value for json responses and the raw
	// string for text responses.
	Body any `json:"body"`

	LatencyMs       int                `json:"latencyMs"`
	Mode            mock.ResponseMode  `json:"mode"`
	Outcome         requestlog.Outcome `json:"outcome"`
	JitterTriggered bool               `json:"jitterTriggered"`
	DurationMs      int64              `json:"durationMs"`
	Error           string             `json:"error,omitempty"`
	LogID           string             `json:"logId,omitempty"`

	Curl string `json:"curl"`
}

// Service runs simulations.
type Service struct {
	defs     Definitions
	composer Composer
	baseURL  string
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL sets the externally reachable server URL used in cURL output.
func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Service.
func New(defs Definitions, composer Composer, opts ...Option) *Service {
	s := &Service{
		defs:     defs,
		composer: composer,
		baseURL:  DefaultBaseURL,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate builds a synthetic request for the definition with id and runs
// it through the pipeline. The lookup error is returned unchanged so
// callers can test it with errors.Is.
func (s *Service) Simulate(ctx context.Context, id string) (*Result, error) {
	def, err := s.defs.Get(id)
	if err != nil {
		return nil, err
	}

	method := def.Method
	if method == mock.MethodAny {
		method = http.MethodGet
	}

	out := s.composer.ComposeDefinition(ctx, def, &engine.Request{
		Method:  method,
		Path:    def.Path,
		Query:   url.Values{},
		Headers: http.Header{},
		Origin:  requestlog.OriginSimulation,
	})

	target := s.baseURL + def.Path
	res := &Result{
		MockID:          def.ID,
		Method:          method,
		Path:            def.Path,
		URL:             target,
		Status:          out.Status,
		Headers:         out.Headers,
		BodyType:        out.BodyType,
		Body:            bodyValue(out),
		LatencyMs:       out.LatencyMs,
		Mode:            out.Mode,
		Outcome:         out.Outcome,
		JitterTriggered: out.JitterTriggered,
		DurationMs:      out.Duration.Milliseconds(),
		LogID:           out.LogID,
		Curl:            RenderCurl(method, target, nil, nil),
	}
	if res.Headers == nil {
		res.Headers = []mock.Header{}
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}

	s.log.Debug("simulated mock", "id", def.ID, "status", res.Status, "outcome", res.Outcome)
	return res, nil
}

func bodyValue(out *engine.Composed) any {
	if len(out.Body) == 0 {
		return nil
	}
	if out.BodyType == mock.BodyText || !json.Valid(out.Body) {
		return string(out.Body)
	}
	return json.RawMessage(out.Body)
}
