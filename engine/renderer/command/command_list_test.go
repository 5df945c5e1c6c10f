package command_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/rootconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPassTransitionsAndRestores(t *testing.T) {
	rec := gputest.NewRecorder()
	cl := command.NewCommandList("frame", nil, rec)
	backBuffer := resource.NewTrackedResource(&gputest.Resource{Name: "back buffer"}, gpu.StatePresent)
	depth := resource.NewTrackedResource(&gputest.Resource{Name: "depth"}, gpu.StateDepthWrite)

	cl.BeginRender(
		[]command.RenderTarget{{Target: backBuffer, Load: gpu.LoadActionClear, RestoreState: gpu.StatePresent}},
		&command.DepthTarget{Target: depth, RestoreState: gpu.StateDepthWrite},
	)
	assert.True(t, cl.Rendering())
	assert.Equal(t, []string{"ResourceBarrier 1", "SetRenderTargets 1"}, rec.Calls)
	assert.Equal(t, gpu.StateRenderTarget, rec.Barriers[0][0].After)
	require.NotNil(t, rec.Depth)
	assert.Equal(t, gpu.LoadActionClear, rec.RenderTargets[0].Load)

	cl.Draw(3, 1)
	cl.EndRender()
	assert.Equal(t, gpu.StatePresent, backBuffer.State())
	assert.Equal(t, 1, cl.Barriers().Len(), "restore is queued, not flushed")

	require.NoError(t, cl.Close())
	assert.Equal(t, []string{
		"ResourceBarrier 1",
		"SetRenderTargets 1",
		"DrawInstanced 3 1",
		"ResourceBarrier 1",
		"Close",
	}, rec.Calls)
	assert.Equal(t, gpu.StatePresent, rec.Barriers[1][0].After)
}

func TestBeginRenderPanics(t *testing.T) {
	cl := command.NewCommandList("frame", nil, gputest.NewRecorder())
	assert.Panics(t, func() { cl.BeginRender(make([]command.RenderTarget, gpu.MaxRenderTargets+1), nil) })

	cl.BeginRender(nil, nil)
	assert.Panics(t, func() { cl.BeginRender(nil, nil) })
	assert.Panics(t, func() { _ = cl.Close() })
	cl.EndRender()
	assert.Panics(t, func() { cl.EndRender() })
}

func TestDrawFollowsIndexBinding(t *testing.T) {
	rec := gputest.NewRecorder()
	cl := command.NewCommandList("mesh", nil, rec)
	buf := &gputest.Resource{}

	cl.SetVertexBuffers(0, []gpu.VertexBufferView{{Buffer: buf, Stride: 12}})
	cl.SetTopology(gpu.TopologyTriangleList)
	cl.Draw(3, 1)
	cl.SetIndexBuffer(&gpu.IndexBufferView{Buffer: buf, Format: gpu.IndexFormatUint16})
	cl.Draw(6, 2)
	cl.SetIndexBuffer(nil)
	cl.Draw(4, 1)

	assert.Equal(t, 1, rec.Count("DrawIndexedInstanced 6 2"))
	assert.Equal(t, 1, rec.Count("DrawInstanced 3 1"))
	assert.Equal(t, 1, rec.Count("DrawInstanced 4 1"))
	assert.Equal(t, gpu.TopologyTriangleList, rec.Topology)
}

func TestDrawAndDispatchFlushBarriers(t *testing.T) {
	rec := gputest.NewRecorder()
	cl := command.NewCommandList("compute", nil, rec)
	buf := resource.NewTrackedResource(&gputest.Resource{}, gpu.StateCommon)

	assert.True(t, cl.Transition(buf, gpu.StateUnorderedAccess))
	cl.Dispatch(8, 8, 1)
	assert.Equal(t, []string{"ResourceBarrier 1", "Dispatch 8 8 1"}, rec.Calls)
}

func TestSetViewportDerivesScissor(t *testing.T) {
	rec := gputest.NewRecorder()
	cl := command.NewCommandList("frame", nil, rec)

	cl.SetViewport(gpu.Viewport{X: 10, Y: 20, Width: 640, Height: 480, MaxDepth: 1})
	assert.Equal(t, []gpu.Rect{{Left: 10, Top: 20, Right: 650, Bottom: 500}}, rec.Scissors)

	cl.SetViewports([]gpu.Viewport{{Width: 100, Height: 50}, {X: 100, Width: 100, Height: 50}})
	assert.Len(t, rec.Viewports, 2)
	assert.Equal(t, gpu.Rect{Left: 100, Right: 200, Bottom: 50}, rec.Scissors[1])
}

func TestOutputMergerAndStreamOutput(t *testing.T) {
	rec := gputest.NewRecorder()
	cl := command.NewCommandList("om", nil, rec)

	cl.SetBlendFactor([4]float32{1, 1, 1, 1})
	cl.SetStencilRef(3)
	cl.SetDepthBounds(0, 1)
	cl.SetStreamOutputTargets(0, []gpu.StreamOutputView{{Buffer: &gputest.Resource{}}})

	assert.Equal(t, []string{"OMSetBlendFactor", "OMSetStencilRef 3", "OMSetDepthBounds", "SOSetTargets 0 1"}, rec.Calls)
}

func TestBindRootConfiguration(t *testing.T) {
	rec := gputest.NewRecorder()
	cl := command.NewCommandList("frame", nil, rec)
	rc, err := rootconfig.NewRootConfiguration(gpu.PipelineTypeGraphics, []rootconfig.Entry{
		rootconfig.RootConstants{Values: []uint32{42}},
	})
	require.NoError(t, err)

	cl.BindRootConfiguration(rc)
	assert.Equal(t, []string{"SetRootConstants graphics 0"}, rec.Calls)
}

func TestExecuteSyncResetsForNextFrame(t *testing.T) {
	rec := gputest.NewRecorder()
	native := gputest.NewQueue(true)
	q := queue.NewQueue(native)
	cl := command.NewCommandList("frame", nil, rec)
	buf := resource.NewTrackedResource(&gputest.Resource{}, gpu.StateCommon)

	cl.Transition(buf, gpu.StateCopyDest)
	require.NoError(t, cl.ExecuteSync(q))

	assert.Equal(t, []string{"ResourceBarrier 1", "Close", "Reset"}, rec.Calls)
	assert.Equal(t, 1, rec.Resets)
	assert.False(t, rec.Closed)
	assert.Len(t, native.Submitted, 1)
	assert.True(t, q.IsFinished(1))
	assert.Zero(t, cl.Barriers().Len())
}
