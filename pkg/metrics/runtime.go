package metrics

import (
	"runtime"
	"time"
)

// registerRuntime adds Go runtime gauges refreshed on every scrape.
func registerRuntime(r *Registry, start time.Time) {
	goroutines := r.NewGauge("go_goroutines", "Number of goroutines that currently exist")
	heapAlloc := r.NewGauge("go_memstats_heap_alloc_bytes", "Number of heap bytes allocated and still in use")
	heapObjects := r.NewGauge("go_memstats_heap_objects", "Number of allocated heap objects")
	gcCycles := r.NewGauge("go_gc_cycles_total", "Total number of completed GC cycles")
	uptime := r.NewGauge("mimic_uptime_seconds", "Seconds since the server started")
	info := r.NewGauge("go_info", "Information about the Go environment", "version")
	info.With(runtime.Version()).Set(1)

	r.OnCollect(func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(float64(runtime.NumGoroutine()))
		heapAlloc.Set(float64(ms.HeapAlloc))
		heapObjects.Set(float64(ms.HeapObjects))
		gcCycles.Set(float64(ms.NumGC))
		uptime.Set(time.Since(start).Seconds())
	})
}
