package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a point-in-time view of the Go runtime
type RuntimeStats struct {
	Goroutines int64
	HeapAlloc  int64
	Sys        int64
	NumGC      int64
	Uptime     time.Duration
}

// ReadRuntimeStats samples the runtime. start is the process start time.
func ReadRuntimeStats(start time.Time) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		Goroutines: int64(runtime.NumGoroutine()),
		HeapAlloc:  int64(mem.HeapAlloc),
		Sys:        int64(mem.Sys),
		NumGC:      int64(mem.NumGC),
		Uptime:     time.Since(start),
	}
}

// Map renders the stats for health responses.
func (s RuntimeStats) Map() map[string]interface{} {
	return map[string]interface{}{
		"go_version":     runtime.Version(),
		"goroutines":     s.Goroutines,
		"heap_alloc_mb":  float64(s.HeapAlloc) / 1024 / 1024,
		"sys_mb":         float64(s.Sys) / 1024 / 1024,
		"gc_cycles":      s.NumGC,
		"uptime_seconds": s.Uptime.Seconds(),
	}
}

// RegisterRuntimeMetrics exposes goroutine, memory and uptime gauges on meter.
// Values are sampled on each collection, so no background goroutine is needed.
func RegisterRuntimeMetrics(meter metric.Meter, start time.Time) (metric.Registration, error) {
	goroutines, err := meter.Int64ObservableGauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	heap, err := meter.Int64ObservableGauge(
		"system_memory_heap_bytes",
		metric.WithDescription("Heap bytes allocated and in use"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	sys, err := meter.Int64ObservableGauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64ObservableCounter(
		"system_gc_count",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	uptime, err := meter.Float64ObservableGauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := ReadRuntimeStats(start)
		o.ObserveInt64(goroutines, stats.Goroutines)
		o.ObserveInt64(heap, stats.HeapAlloc)
		o.ObserveInt64(sys, stats.Sys)
		o.ObserveInt64(gcCount, stats.NumGC)
		o.ObserveFloat64(uptime, stats.Uptime.Seconds())
		return nil
	}, goroutines, heap, sys, gcCount, uptime)
}
