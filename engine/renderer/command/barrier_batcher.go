package command

import (
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
)

// BarrierCapacity is the number of transitions a BarrierBatcher holds before it flushes.
const BarrierCapacity = 32

// BarrierBatcher collects resource transitions and submits them as a single barrier call,
// either when it fills up or before work that depends on them is recorded.
type BarrierBatcher struct {
	rec      gpu.Recorder
	counters *gfx.Counters
	items    [BarrierCapacity]gpu.Transition
	n        int
}

var _ resource.BarrierQueue = &BarrierBatcher{}

// NewBarrierBatcher creates an empty batcher recording into rec.
//
// Parameters:
//   - rec: the recorder flushes are submitted to
//   - counters: optional counters for flushes and recorded transitions
//
// Returns:
//   - *BarrierBatcher: the batcher
func NewBarrierBatcher(rec gpu.Recorder, counters *gfx.Counters) *BarrierBatcher {
	if counters == nil {
		counters = &gfx.Counters{}
	}
	return &BarrierBatcher{rec: rec, counters: counters}
}

// PeekAndPush reserves the next slot. A full batcher is flushed first, so the returned slot is
// slot 0 in that case.
func (b *BarrierBatcher) PeekAndPush() *gpu.Transition {
	if b.n == BarrierCapacity {
		b.Flush()
	}
	slot := &b.items[b.n]
	*slot = gpu.Transition{}
	b.n++
	return slot
}

// Flush submits the pending transitions as one ResourceBarrier call. It does nothing when empty.
func (b *BarrierBatcher) Flush() {
	if b.n == 0 {
		return
	}
	b.rec.ResourceBarrier(b.items[:b.n])
	b.counters.BarrierFlushes.Add(1)
	b.counters.BarriersRecorded.Add(uint64(b.n))
	b.n = 0
}

// Reset drops the pending transitions without submitting them.
func (b *BarrierBatcher) Reset() {
	b.n = 0
}

// Len returns the number of pending transitions.
func (b *BarrierBatcher) Len() int {
	return b.n
}
