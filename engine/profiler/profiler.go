package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
)

// Profiler tracks frame rate, memory statistics and the renderer's hot-reload counters.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	counters     *gfx.Counters
	lastCounters gfx.Snapshot
	logger       *slog.Logger
	now          func() time.Time

	last Stats
}

// Stats is the report of one interval.
type Stats struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64

	// Counter deltas over the interval.
	PipelineRebuilds uint64
	ShaderRecompiles uint64
	BarrierFlushes   uint64
	BarriersRecorded uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - opts: optional ProfilerBuilderOption values
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.Or(p.logger)
	p.lastTime = p.now()
	if p.counters != nil {
		p.lastCounters = p.counters.Snapshot()
	}
	return p
}

// Last returns the stats of the most recent completed interval.
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory and
// the pipeline rebuilds, shader recompiles and barrier flushes since the last report.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	s := Stats{FPS: float64(p.frameCount) / elapsed.Seconds()}

	runtime.ReadMemStats(&p.memStats)
	// Alloc is live heap; TotalAlloc only grows and tracks churn; Sys is the process footprint.
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	s.GCCount = p.memStats.NumGC
	if s.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses.
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	attrs := []any{
		"fps", round2(s.FPS),
		"heap_mb", round2(s.HeapMB),
		"alloc_mb_s", round2(s.AllocRateMB),
		"gc", s.GCCount,
		"gc_last_us", s.LastPauseUs,
		"gc_max_us", s.MaxPauseUs,
		"sys_mb", round2(s.SysMB),
	}
	if p.counters != nil {
		snap := p.counters.Snapshot()
		s.PipelineRebuilds = snap.PipelineRebuilds - p.lastCounters.PipelineRebuilds
		s.ShaderRecompiles = snap.ShaderRecompiles - p.lastCounters.ShaderRecompiles
		s.BarrierFlushes = snap.BarrierFlushes - p.lastCounters.BarrierFlushes
		s.BarriersRecorded = snap.BarriersRecorded - p.lastCounters.BarriersRecorded
		p.lastCounters = snap
		attrs = append(attrs,
			"pipeline_rebuilds", s.PipelineRebuilds,
			"shader_recompiles", s.ShaderRecompiles,
			"barrier_flushes", s.BarrierFlushes,
			"barriers", s.BarriersRecorded,
		)
	}
	p.logger.Info("profiler", attrs...)

	p.last = s
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
