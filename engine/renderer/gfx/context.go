// Package gfx holds the context object shared by the renderer's core components.
package gfx

import (
	"log/slog"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-reload/engine/dirwatch"
	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

// Context is created once by the application and passed by reference to every component that
// creates GPU objects or compiles shaders.
type Context struct {
	Device    gpu.Device
	Allocator gpu.Allocator
	Revisions dirwatch.RevisionSource
	Shaders   *shader.Environment
	Counters  *Counters
	Logger    *slog.Logger
}

// Log returns the context logger, or the package default when none is set.
func (c *Context) Log() *slog.Logger {
	if c == nil {
		return logger.Logger()
	}
	return logger.Or(c.Logger)
}

// Count returns the context counters. A nil context or nil Counters yields a throwaway set.
func (c *Context) Count() *Counters {
	if c == nil || c.Counters == nil {
		return &Counters{}
	}
	return c.Counters
}

// Counters tracks the work done by the hot-reload and barrier subsystems.
type Counters struct {
	PipelineRebuilds atomic.Uint64
	ShaderRecompiles atomic.Uint64
	BarrierFlushes   atomic.Uint64
	BarriersRecorded atomic.Uint64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	PipelineRebuilds uint64
	ShaderRecompiles uint64
	BarrierFlushes   uint64
	BarriersRecorded uint64
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PipelineRebuilds: c.PipelineRebuilds.Load(),
		ShaderRecompiles: c.ShaderRecompiles.Load(),
		BarrierFlushes:   c.BarrierFlushes.Load(),
		BarriersRecorded: c.BarriersRecorded.Load(),
	}
}
