package resource_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceQueue struct {
	slots []gpu.Transition
}

func (q *sliceQueue) PeekAndPush() *gpu.Transition {
	q.slots = append(q.slots, gpu.Transition{})
	return &q.slots[len(q.slots)-1]
}

func TestEnsureResourceState(t *testing.T) {
	native := &gputest.Resource{Name: "albedo"}
	tr := resource.NewTrackedResource(native, gpu.StateCommon)
	q := &sliceQueue{}

	assert.False(t, tr.EnsureResourceState(q, gpu.StateCommon))
	assert.Empty(t, q.slots)

	assert.True(t, tr.EnsureResourceState(q, gpu.StateRenderTarget))
	require.Len(t, q.slots, 1)
	assert.Equal(t, gpu.Transition{
		Resource:    native,
		Subresource: gpu.AllSubresources,
		Before:      gpu.StateCommon,
		After:       gpu.StateRenderTarget,
		Flags:       gpu.BarrierFlagNone,
	}, q.slots[0])
	assert.Equal(t, gpu.StateRenderTarget, tr.State())

	assert.False(t, tr.EnsureResourceState(q, gpu.StateRenderTarget))
	assert.True(t, tr.EnsureResourceState(q, gpu.StatePixelShaderResource))
	require.Len(t, q.slots, 2)
	assert.Equal(t, gpu.StateRenderTarget, q.slots[1].Before)
}

func TestSetStateSkipsBarrier(t *testing.T) {
	tr := resource.NewTrackedResource(&gputest.Resource{}, gpu.StateRenderTarget)
	tr.SetState(gpu.StatePresent)
	q := &sliceQueue{}
	assert.False(t, tr.EnsureResourceState(q, gpu.StatePresent))
}

func TestCloneSharesNativeResource(t *testing.T) {
	native := &gputest.Resource{}
	tr := resource.NewTrackedResource(native, gpu.StateCopyDest)
	clone := tr.Clone()

	tr.Release()
	assert.Zero(t, native.Released)
	assert.Nil(t, tr.Resource())
	assert.Same(t, native, clone.Resource())
	assert.Equal(t, gpu.StateCopyDest, clone.State())

	clone.Release()
	assert.Equal(t, 1, native.Released)
}

func TestReleasedResourcePanicsOnTransition(t *testing.T) {
	tr := resource.NewTrackedResource(&gputest.Resource{}, gpu.StateCommon)
	tr.Release()
	assert.Panics(t, func() { tr.EnsureResourceState(&sliceQueue{}, gpu.StateCopyDest) })
}
