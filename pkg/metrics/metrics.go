package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Type is the Prometheus metric type.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeHistogram Type = "histogram"
)

// DefaultBuckets are request duration buckets in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// atomicFloat64 stores float64 bits in a uint64 for atomic access.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 { return math.Float64frombits(a.bits.Load()) }

func (a *atomicFloat64) Store(v float64) { a.bits.Store(math.Float64bits(v)) }

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// sample is one exposition line.
type sample struct {
	suffix string
	labels []label
	value  float64
}

type label struct {
	name, value string
}

type metric interface {
	name() string
	help() string
	kind() Type
	collect() []sample
}

// family holds one child per label value combination.
type family[C any] struct {
	metricName string
	metricHelp string
	labelNames []string
	newChild   func() *C

	mu       sync.RWMutex
	children map[string]*C
	labels   map[string][]label
	order    []string
}

func newFamily[C any](name, help string, labelNames []string, newChild func() *C) *family[C] {
	return &family[C]{
		metricName: name,
		metricHelp: help,
		labelNames: labelNames,
		newChild:   newChild,
		children:   make(map[string]*C),
		labels:     make(map[string][]label),
	}
}

// with returns the child for values, creating it on first use. A label
// count mismatch is a programming error and panics.
func (f *family[C]) with(values ...string) *C {
	if len(values) != len(f.labelNames) {
		panic(fmt.Sprintf("metrics: %s expects %d labels, got %d", f.metricName, len(f.labelNames), len(values)))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	c, ok := f.children[key]
	f.mu.RUnlock()
	if ok {
		return c
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok = f.children[key]; ok {
		return c
	}
	c = f.newChild()
	ls := make([]label, len(values))
	for i, v := range values {
		ls[i] = label{name: f.labelNames[i], value: v}
	}
	f.children[key] = c
	f.labels[key] = ls
	f.order = append(f.order, key)
	return c
}

// each visits children sorted by label values.
func (f *family[C]) each(fn func(labels []label, c *C)) {
	f.mu.RLock()
	keys := append([]string(nil), f.order...)
	f.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		f.mu.RLock()
		c, ls := f.children[k], f.labels[k]
		f.mu.RUnlock()
		fn(ls, c)
	}
}

func (f *family[C]) name() string { return f.metricName }
func (f *family[C]) help() string { return f.metricHelp }

// Counter is a monotonically increasing metric.
type Counter struct {
	*family[CounterChild]
}

// CounterChild is a counter for one label combination.
type CounterChild struct {
	v atomicFloat64
}

// Inc adds one.
func (c *CounterChild) Inc() { c.v.Add(1) }

// Add adds delta. Negative deltas are ignored.
func (c *CounterChild) Add(delta float64) {
	if delta > 0 {
		c.v.Add(delta)
	}
}

// Value returns the current count.
func (c *CounterChild) Value() float64 { return c.v.Load() }

// With returns the child for the given label values.
func (c *Counter) With(values ...string) *CounterChild { return c.with(values...) }

// Inc increments an unlabeled counter.
func (c *Counter) Inc() { c.with().Inc() }

func (c *Counter) kind() Type { return TypeCounter }

func (c *Counter) collect() []sample {
	var out []sample
	c.each(func(ls []label, child *CounterChild) {
		out = append(out, sample{labels: ls, value: child.Value()})
	})
	return out
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	*family[GaugeChild]
}

// GaugeChild is a gauge for one label combination.
type GaugeChild struct {
	v atomicFloat64
}

// Set replaces the value.
func (g *GaugeChild) Set(v float64) { g.v.Store(v) }

// Add adds delta, which may be negative.
func (g *GaugeChild) Add(delta float64) { g.v.Add(delta) }

// Value returns the current value.
func (g *GaugeChild) Value() float64 { return g.v.Load() }

// With returns the child for the given label values.
func (g *Gauge) With(values ...string) *GaugeChild { return g.with(values...) }

// Set sets an unlabeled gauge.
func (g *Gauge) Set(v float64) { g.with().Set(v) }

func (g *Gauge) kind() Type { return TypeGauge }

func (g *Gauge) collect() []sample {
	var out []sample
	g.each(func(ls []label, child *GaugeChild) {
		out = append(out, sample{labels: ls, value: child.Value()})
	})
	return out
}

// Histogram tracks a distribution in cumulative buckets.
type Histogram struct {
	*family[HistogramChild]
	buckets []float64
}

// HistogramChild is a histogram for one label combination.
type HistogramChild struct {
	buckets []float64
	counts  []atomic.Uint64
	sum     atomicFloat64
	count   atomic.Uint64
}

// Observe records v.
func (h *HistogramChild) Observe(v float64) {
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i].Add(1)
			break
		}
	}
	h.sum.Add(v)
	h.count.Add(1)
}

// Count returns the number of observations.
func (h *HistogramChild) Count() uint64 { return h.count.Load() }

// With returns the child for the given label values.
func (h *Histogram) With(values ...string) *HistogramChild { return h.with(values...) }

func (h *Histogram) kind() Type { return TypeHistogram }

func (h *Histogram) collect() []sample {
	var out []sample
	h.each(func(ls []label, child *HistogramChild) {
		var cumulative uint64
		for i, bound := range child.buckets {
			cumulative += child.counts[i].Load()
			le := "+Inf"
			if !math.IsInf(bound, 1) {
				le = formatFloat(bound)
			}
			bl := append(append([]label(nil), ls...), label{name: "le", value: le})
			out = append(out, sample{suffix: "_bucket", labels: bl, value: float64(cumulative)})
		}
		out = append(out,
			sample{suffix: "_sum", labels: ls, value: child.sum.Load()},
			sample{suffix: "_count", labels: ls, value: float64(child.Count())},
		)
	})
	return out
}

// Registry holds metrics and serves them.
type Registry struct {
	mu         sync.RWMutex
	metrics    []metric
	names      map[string]struct{}
	collectors []func()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{newFamily(name, help, labels, func() *CounterChild { return &CounterChild{} })}
	r.register(c)
	return c
}

// NewGauge registers a gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{newFamily(name, help, labels, func() *GaugeChild { return &GaugeChild{} })}
	r.register(g)
	return g
}

// NewHistogram registers a histogram. A +Inf bucket is always added.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	bs := append([]float64(nil), buckets...)
	sort.Float64s(bs)
	if len(bs) == 0 || !math.IsInf(bs[len(bs)-1], 1) {
		bs = append(bs, math.Inf(1))
	}
	h := &Histogram{buckets: bs}
	h.family = newFamily(name, help, labels, func() *HistogramChild {
		return &HistogramChild{buckets: bs, counts: make([]atomic.Uint64, len(bs))}
	})
	r.register(h)
	return h
}

// OnCollect registers fn to run before every scrape.
func (r *Registry) OnCollect(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = append(r.collectors, fn)
}

// register panics on duplicate names, which would produce invalid output.
func (r *Registry) register(m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.name()]; exists {
		panic("metrics: duplicate metric name " + m.name())
	}
	r.names[m.name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// WriteTo writes every metric in text format.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	collectors := append([]func(){}, r.collectors...)
	metrics := append([]metric(nil), r.metrics...)
	r.mu.RUnlock()

	for _, fn := range collectors {
		fn()
	}

	var b strings.Builder
	for _, m := range metrics {
		samples := m.collect()
		if len(samples) == 0 {
			continue
		}
		fmt.Fprintf(&b, "# HELP %s %s\n", m.name(), escapeHelp(m.help()))
		fmt.Fprintf(&b, "# TYPE %s %s\n", m.name(), m.kind())
		for _, s := range samples {
			b.WriteString(m.name())
			b.WriteString(s.suffix)
			if len(s.labels) > 0 {
				b.WriteByte('{')
				b.WriteString(formatLabels(s.labels))
				b.WriteByte('}')
			}
			b.WriteByte(' ')
			b.WriteString(formatFloat(s.value))
			b.WriteByte('\n')
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = r.WriteTo(w)
	})
}

func formatLabels(ls []label) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = l.name + `="` + escapeLabelValue(l.value) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
