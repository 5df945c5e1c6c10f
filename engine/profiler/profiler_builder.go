package profiler

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
)

// ProfilerBuilderOption is a functional option applied to a Profiler during construction via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often stats are reported. Values <= 0 keep the default of one second.
//
// Parameters:
//   - d: the report interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the option
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithCounters reports the deltas of the renderer's counters alongside the frame stats.
//
// Parameters:
//   - c: the counters, usually the renderer context's
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the option
func WithCounters(c *gfx.Counters) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.counters = c
	}
}

// WithLogger sets the logger stats are written to.
func WithLogger(l *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
