// Package metrics exposes Prometheus text-format metrics for the mock
// server.
//
// It implements the text exposition format (text/plain; version=0.0.4)
// directly. Counters, gauges and histograms are safe for concurrent use.
//
//	m := metrics.New()
//	m.RequestsTotal.With("MATCH", "STATIC").Inc()
//	m.RequestDuration.With("MATCH").Observe(0.012)
//	mux.Handle("GET /_admin/metrics", m.Handler())
//
// Collectors registered with Registry.OnCollect run before every scrape,
// which is how gauges derived from other state are refreshed.
package metrics
