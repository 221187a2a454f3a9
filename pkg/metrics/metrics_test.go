package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	return rec.Body.String()
}

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "A test counter", "outcome")
	c.With("MATCH").Inc()
	c.With("MATCH").Add(2)
	c.With("MATCH").Add(-5)
	c.With("NO_MATCH").Inc()

	assert.Equal(t, 3.0, c.With("MATCH").Value())

	out := scrape(t, r)
	assert.Contains(t, out, "# HELP test_total A test counter\n")
	assert.Contains(t, out, "# TYPE test_total counter\n")
	assert.Contains(t, out, `test_total{outcome="MATCH"} 3`+"\n")
	assert.Contains(t, out, `test_total{outcome="NO_MATCH"} 1`+"\n")
	assert.Less(t, strings.Index(out, `"MATCH"`), strings.Index(out, `"NO_MATCH"`))
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.NewGauge("test_gauge", "A gauge")
	g.Set(5)
	g.With().Add(-2)
	assert.Contains(t, scrape(t, r), "test_gauge 3\n")
}

func TestHistogram(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("test_seconds", "A histogram", []float64{0.1, 1}, "outcome")
	h.With("MATCH").Observe(0.05)
	h.With("MATCH").Observe(0.5)
	h.With("MATCH").Observe(5)

	out := scrape(t, r)
	assert.Contains(t, out, "# TYPE test_seconds histogram\n")
	assert.Contains(t, out, `test_seconds_bucket{outcome="MATCH",le="0.1"} 1`)
	assert.Contains(t, out, `test_seconds_bucket{outcome="MATCH",le="1"} 2`)
	assert.Contains(t, out, `test_seconds_bucket{outcome="MATCH",le="+Inf"} 3`)
	assert.Contains(t, out, `test_seconds_sum{outcome="MATCH"} 5.5`)
	assert.Contains(t, out, `test_seconds_count{outcome="MATCH"} 3`)
	assert.Equal(t, uint64(3), h.With("MATCH").Count())
}

func TestEmptyMetricsAreOmitted(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("unused_total", "never touched", "x")
	assert.NotContains(t, scrape(t, r), "unused_total")
}

func TestLabelEscaping(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("esc_total", "line one\nline two", "path")
	c.With(`/a"b\c`).Inc()

	out := scrape(t, r)
	assert.Contains(t, out, `# HELP esc_total line one\nline two`)
	assert.Contains(t, out, `esc_total{path="/a\"b\\c"} 1`)
}

func TestRegistryPanics(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("dup_total", "x", "a")
	assert.Panics(t, func() { r.NewCounter("dup_total", "x") })
	assert.Panics(t, func() { c.With("a", "b") })
}

func TestOnCollect(t *testing.T) {
	r := NewRegistry()
	g := r.NewGauge("live", "refreshed on scrape")
	calls := 0
	r.OnCollect(func() {
		calls++
		g.Set(float64(calls * 10))
	})

	assert.Contains(t, scrape(t, r), "live 10\n")
	assert.Contains(t, scrape(t, r), "live 20\n")
}

func TestConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("conc_total", "x", "k")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.With("v").Inc()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 2000.0, c.With("v").Value())
}

func TestNew(t *testing.T) {
	m := New()
	m.RequestsTotal.With("MATCH", "STATIC").Inc()
	m.JitterTriggered.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	out := rec.Body.String()

	assert.Contains(t, out, `mimic_requests_total{outcome="MATCH",mode="STATIC"} 1`)
	assert.Contains(t, out, "mimic_jitter_triggered_total 1")
	assert.Contains(t, out, "go_goroutines ")
	assert.Contains(t, out, "mimic_uptime_seconds ")
}
