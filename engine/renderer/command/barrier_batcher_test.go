package command_test

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushEmptyIsNoop(t *testing.T) {
	rec := gputest.NewRecorder()
	b := command.NewBarrierBatcher(rec, nil)
	b.Flush()
	assert.Empty(t, rec.Calls)
}

func TestBatcherFlushesOnOverflow(t *testing.T) {
	rec := gputest.NewRecorder()
	counters := &gfx.Counters{}
	b := command.NewBarrierBatcher(rec, counters)

	resources := make([]*resource.TrackedResource, command.BarrierCapacity+1)
	for i := range resources {
		resources[i] = resource.NewTrackedResource(&gputest.Resource{Name: fmt.Sprint(i)}, gpu.StateCommon)
	}
	for _, r := range resources[:command.BarrierCapacity] {
		require.True(t, r.EnsureResourceState(b, gpu.StateCopyDest))
	}
	assert.Equal(t, command.BarrierCapacity, b.Len())
	assert.Empty(t, rec.Barriers, "a full batcher has not flushed yet")

	require.True(t, resources[command.BarrierCapacity].EnsureResourceState(b, gpu.StateCopyDest))
	require.Len(t, rec.Barriers, 1)
	assert.Len(t, rec.Barriers[0], command.BarrierCapacity)
	assert.Equal(t, 1, b.Len(), "the pushed transition lands in slot 0")

	b.Flush()
	require.Len(t, rec.Barriers, 2)
	assert.Equal(t, "32", rec.Barriers[1][0].Resource.Label())
	assert.Zero(t, b.Len())
	assert.Equal(t, uint64(2), counters.BarrierFlushes.Load())
	assert.Equal(t, uint64(command.BarrierCapacity+1), counters.BarriersRecorded.Load())
}

func TestBatcherResetDropsPending(t *testing.T) {
	rec := gputest.NewRecorder()
	b := command.NewBarrierBatcher(rec, nil)
	r := resource.NewTrackedResource(&gputest.Resource{}, gpu.StateCommon)
	r.EnsureResourceState(b, gpu.StateRenderTarget)

	b.Reset()
	b.Flush()
	assert.Zero(t, b.Len())
	assert.Empty(t, rec.Barriers)
}

func TestRepeatedTransitionIsNotQueued(t *testing.T) {
	rec := gputest.NewRecorder()
	b := command.NewBarrierBatcher(rec, nil)
	r := resource.NewTrackedResource(&gputest.Resource{}, gpu.StateCommon)

	assert.True(t, r.EnsureResourceState(b, gpu.StateRenderTarget))
	assert.False(t, r.EnsureResourceState(b, gpu.StateRenderTarget))
	assert.Equal(t, 1, b.Len())
}
