package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var perfMeter = otel.Meter("lotkeeper.perf")
var cpuGauge, _ = perfMeter.Float64Gauge("agent_cpu_usage")
var heapGauge, _ = perfMeter.Int64Gauge("agent_heap_mb")
var liveObjectsGauge, _ = perfMeter.Int64Gauge("agent_live_objects")
var goroutineGauge, _ = perfMeter.Int64Gauge("agent_goroutines")

// InstrumentPerfStats samples process health on a slow tick for the
// lifetime of ctx. The agent idles for hours between sweeps, so a
// leak in a scraper goroutine shows up here long before anything
// user-visible breaks.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				samplePerfStats(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func samplePerfStats(ctx context.Context) {
	// usage since the previous sample, never a blocking measurement
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		slog.Warn("failed to read cpu usage", "err", err)
	} else if len(usage) > 0 {
		cpuGauge.Record(ctx, usage[0])
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	heapGauge.Record(ctx, int64(memStats.HeapAlloc/1_000_000))
	liveObjectsGauge.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
	goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
}
