package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/mimic/internal/matching"
	"github.com/getmockd/mimic/pkg/admin"
	"github.com/getmockd/mimic/pkg/config"
	"github.com/getmockd/mimic/pkg/engine"
	"github.com/getmockd/mimic/pkg/jitter"
	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/metrics"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/portability"
	"github.com/getmockd/mimic/pkg/registry"
	"github.com/getmockd/mimic/pkg/requestlog"
	"github.com/getmockd/mimic/pkg/script"
	"github.com/getmockd/mimic/pkg/simulate"
	"github.com/getmockd/mimic/pkg/store"
	"github.com/getmockd/mimic/pkg/store/file"
	"github.com/getmockd/mimic/pkg/store/sqlite"
)

// ErrAlreadyRunning is returned by Start on a running server.
var ErrAlreadyRunning = errors.New("server is already running")

// Server is a fully wired mock server.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	version string

	registry  *registry.Registry
	traffic   *requestlog.Log
	metrics   *metrics.Metrics
	composer  *engine.Composer
	admin     *admin.API
	handler   http.Handler
	store     store.Store
	persister *store.Persister

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan error
	closed     bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger for all components.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithStore uses st instead of the backend named in the configuration.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// New builds a server from cfg. Stored definitions are loaded before New
// returns; the HTTP listener is not opened until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		log:     logging.Nop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry = registry.New()
	s.registry.SetLogger(s.log.With("component", "registry"))

	if err := s.openStore(ctx); err != nil {
		return nil, err
	}

	s.traffic = requestlog.New(cfg.MaxLogEntries)
	s.metrics = metrics.New()
	s.metrics.Registry.OnCollect(s.collectGauges)

	s.composer = engine.NewComposer(matching.New(s.registry),
		engine.WithScriptRunner(script.New(
			script.WithTimeout(cfg.ScriptTimeout),
			script.WithLogger(s.log.With("component", "script")),
		)),
		engine.WithJitterSource(jitter.NewSource(cfg.JitterSeed)),
		engine.WithTrafficLog(s.traffic),
		engine.WithMetrics(s.metrics),
		engine.WithLogger(s.log.With("component", "engine")),
	)
	traffic := engine.NewHandler(s.composer)
	traffic.SetLogger(s.log.With("component", "handler"))

	sim := simulate.New(s.registry, s.composer,
		simulate.WithBaseURL(cfg.BaseURL()),
		simulate.WithLogger(s.log.With("component", "simulate")),
	)
	codec := portability.New(s.registry)
	codec.SetLogger(s.log.With("component", "portability"))

	s.admin = admin.New(s.registry, sim, codec, s.traffic,
		admin.WithMetrics(s.metrics),
		admin.WithVersion(s.version),
		admin.WithLogger(s.log.With("component", "admin")),
	)

	s.handler = s.accessLog(route(s.admin, traffic))
	return s, nil
}

// openStore opens the configured backend, seeds the registry from it and
// subscribes a persister to registry changes.
func (s *Server) openStore(ctx context.Context) error {
	if s.store == nil {
		st, err := openBackend(s.cfg, s.log.With("component", "store"))
		if err != nil {
			return err
		}
		if st == nil {
			return nil
		}
		s.store = st
	}

	defs, err := s.store.Load(ctx)
	if err != nil {
		_ = s.store.Close()
		return fmt.Errorf("failed to load mocks: %w", err)
	}
	if err := s.registry.Load(defs); err != nil {
		_ = s.store.Close()
		return fmt.Errorf("failed to load mocks: %w", err)
	}
	s.log.Info("loaded mocks from storage", "count", len(defs), "driver", s.cfg.Backend())

	s.persister = store.NewPersister(s.store,
		store.WithPersisterLogger(s.log.With("component", "persister")))
	s.persister.Start()
	s.registry.OnChange(func(snap *registry.Snapshot) {
		s.persister.Notify(snap.Definitions())
	})
	return nil
}

// openBackend returns nil for the memory backend.
func openBackend(cfg *config.Config, log *slog.Logger) (store.Store, error) {
	path := cfg.StoragePath()
	switch cfg.Backend() {
	case store.BackendFile:
		fs := file.New(path)
		fs.SetLogger(log)
		return fs, nil
	case store.BackendSQLite:
		st, err := sqlite.Open(path, sqlite.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	}
	return nil, nil
}

// collectGauges refreshes the state gauges before each scrape.
func (s *Server) collectGauges() {
	counts := map[mock.ResponseMode]int{
		mock.ModeStatic:   0,
		mock.ModeScripted: 0,
		mock.ModeJittered: 0,
	}
	for _, def := range s.registry.Snapshot().Definitions() {
		counts[def.ResponseMode]++
	}
	for mode, n := range counts {
		s.metrics.Mocks.With(string(mode)).Set(float64(n))
	}
	s.metrics.LogEntries.Set(float64(s.traffic.Count()))
}

// Handler returns the root handler serving admin and mocked traffic.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the live definition registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// TrafficLog returns the request log.
func (s *Server) TrafficLog() *requestlog.Log {
	return s.traffic
}

// Start opens the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if s.httpServer != nil {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	s.httpServer.RegisterOnShutdown(s.admin.Close)
	s.done = make(chan error, 1)

	srv := s.httpServer
	done := s.done
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	s.log.Info("mock server started", "addr", ln.Addr().String(), "admin", s.cfg.BaseURL()+admin.Prefix)
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is cancelled or serving fails,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}

// Shutdown stops accepting connections, waits for in-flight requests,
// flushes pending definition writes and closes the store. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if s.persister != nil {
		if err := s.persister.Close(); err != nil {
			errs = append(errs, fmt.Errorf("persist mocks: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	s.log.Info("mock server stopped")
	return errors.Join(errs...)
}
