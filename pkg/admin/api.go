// Package admin provides the REST API for managing mock definitions,
// mounted under /_admin next to the mocked traffic.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/metrics"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/portability"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/simulate"
)

// Prefix is where the admin API is mounted.
const Prefix = mock.AdminPrefix

// MaxBodySize limits admin request bodies, including imports.
const MaxBodySize = 10 << 20

// Registry is the definition storage the API manages.
type Registry interface {
	List() []*mock.Definition
	Get(id string) (*mock.Definition, error)
	Create(def *mock.Definition) (*mock.Definition, error)
	Update(id string, def *mock.Definition) (*mock.Definition, error)
	Delete(id string) error
	Count() int
}

// Simulator dry-runs definitions.
type Simulator interface {
	Simulate(ctx context.Context, id string) (*simulate.Result, error)
}

// TrafficLog is the read side of the request log.
type TrafficLog interface {
	List(filter *requestlog.Filter) []requestlog.Entry
	Get(id string) (requestlog.Entry, bool)
	Subscribe() (requestlog.Subscriber, func())
	Count() int
	Capacity() int
}

// API exposes the admin endpoints.
type API struct {
	registry  Registry
	simulator Simulator
	codec     *portability.Codec
	traffic   TrafficLog
	metrics   *metrics.Metrics
	version   string
	startTime time.Time
	heartbeat time.Duration
	log       *slog.Logger
	handler   http.Handler

	closing   chan struct{}
	closeOnce sync.Once
}

// Option configures an API.
type Option func(*API)

// WithMetrics exposes m at /_admin/metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *API) { a.metrics = m }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithStreamHeartbeat sets the keep-alive interval of the log stream.
func WithStreamHeartbeat(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// New creates the admin API.
func New(reg Registry, sim Simulator, codec *portability.Codec, traffic TrafficLog, opts ...Option) *API {
	a := &API{
		registry:  reg,
		simulator: sim,
		codec:     codec,
		traffic:   traffic,
		version:   "dev",
		startTime: time.Now(),
		heartbeat: 15 * time.Second,
		log:       logging.Nop(),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	mux := http.NewServeMux()
	a.registerRoutes(mux)
	a.handler = a.recoverer(mux)
	return a
}

// ServeHTTP implements http.Handler. Paths carry the /_admin prefix.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Uptime returns the time since the API was created.
func (a *API) Uptime() time.Duration {
	return time.Since(a.startTime)
}

// Close ends open log streams so a graceful HTTP shutdown does not wait on
// them. Other endpoints keep working.
func (a *API) Close() {
	a.closeOnce.Do(func() { close(a.closing) })
}
