// Package command records GPU work: render passes, draws, dispatches and batched resource
// transitions.
package command

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/rootconfig"
)

// RenderTarget is a colour target for BeginRender. The target is moved to the render-target state
// for the pass and back to RestoreState by EndRender.
type RenderTarget struct {
	Target       *resource.TrackedResource
	View         gpu.View
	Load         gpu.LoadAction
	ClearColor   [4]float64
	RestoreState gpu.ResourceState
}

// DepthTarget is the depth-stencil target for BeginRender.
type DepthTarget struct {
	Target       *resource.TrackedResource
	View         gpu.View
	Load         gpu.LoadAction
	ClearDepth   float32
	ClearStencil uint32
	ReadOnly     bool
	RestoreState gpu.ResourceState
}

// CommandList wraps a recorder with a barrier batcher and tracks the current render pass and
// index-buffer binding.
type CommandList struct {
	key      string
	rec      gpu.Recorder
	barriers *BarrierBatcher
	logger   *slog.Logger

	targets   []RenderTarget
	depth     *DepthTarget
	indexed   bool
	rendering bool
}

// NewCommandList creates a command list over an open recorder.
//
// Parameters:
//   - key: a debug name
//   - ctx: the renderer context, used for counters and logging; may be nil
//   - rec: the open recorder
//   - opts: optional CommandListBuilderOption values
//
// Returns:
//   - *CommandList: the command list
func NewCommandList(key string, ctx *gfx.Context, rec gpu.Recorder, opts ...CommandListBuilderOption) *CommandList {
	if rec == nil {
		panic(fmt.Sprintf("command: %s needs a recorder", key))
	}
	c := &CommandList{
		key:      key,
		rec:      rec,
		barriers: NewBarrierBatcher(rec, ctx.Count()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = ctx.Log()
	}
	c.logger = c.logger.With("commands", key)
	return c
}

// Recorder returns the underlying recorder.
func (c *CommandList) Recorder() gpu.Recorder {
	return c.rec
}

// Barriers returns the list's barrier batcher.
func (c *CommandList) Barriers() *BarrierBatcher {
	return c.barriers
}

// Transition queues a transition of r to state through the batcher.
//
// Returns:
//   - bool: true if a transition was queued
func (c *CommandList) Transition(r *resource.TrackedResource, state gpu.ResourceState) bool {
	return r.EnsureResourceState(c.barriers, state)
}

// BeginRender moves each target to the render-target state, flushes the pending transitions and
// binds the targets. It panics for more than gpu.MaxRenderTargets targets or a nested call.
//
// Parameters:
//   - targets: the colour targets in slot order
//   - depth: the depth-stencil target, or nil
func (c *CommandList) BeginRender(targets []RenderTarget, depth *DepthTarget) {
	if len(targets) > gpu.MaxRenderTargets {
		panic(fmt.Sprintf("command: %d render targets, at most %d", len(targets), gpu.MaxRenderTargets))
	}
	if c.rendering {
		panic(fmt.Sprintf("command: %s: BeginRender inside a render pass", c.key))
	}

	bindings := make([]gpu.RenderTargetBinding, len(targets))
	for i, t := range targets {
		if t.Target != nil {
			c.Transition(t.Target, gpu.StateRenderTarget)
		}
		bindings[i] = gpu.RenderTargetBinding{View: t.View, Load: t.Load, ClearColor: t.ClearColor}
	}
	var depthBinding *gpu.DepthStencilBinding
	if depth != nil {
		state := gpu.StateDepthWrite
		if depth.ReadOnly {
			state = gpu.StateDepthRead
		}
		if depth.Target != nil {
			c.Transition(depth.Target, state)
		}
		depthBinding = &gpu.DepthStencilBinding{
			View:         depth.View,
			Load:         depth.Load,
			ClearDepth:   depth.ClearDepth,
			ClearStencil: depth.ClearStencil,
			ReadOnly:     depth.ReadOnly,
		}
	}

	c.barriers.Flush()
	c.rec.SetRenderTargets(bindings, depthBinding)
	c.targets = append(c.targets[:0], targets...)
	c.depth = depth
	c.rendering = true
}

// EndRender queues the transitions back to each target's RestoreState.
func (c *CommandList) EndRender() {
	if !c.rendering {
		panic(fmt.Sprintf("command: %s: EndRender without BeginRender", c.key))
	}
	for _, t := range c.targets {
		if t.Target != nil {
			c.Transition(t.Target, t.RestoreState)
		}
	}
	if c.depth != nil && c.depth.Target != nil {
		c.Transition(c.depth.Target, c.depth.RestoreState)
	}
	clear(c.targets)
	c.targets = c.targets[:0]
	c.depth = nil
	c.rendering = false
}

// Rendering reports whether a render pass is open.
func (c *CommandList) Rendering() bool {
	return c.rendering
}

// SetVertexBuffers binds vertex buffers starting at startSlot.
func (c *CommandList) SetVertexBuffers(startSlot uint32, views []gpu.VertexBufferView) {
	c.rec.IASetVertexBuffers(startSlot, views)
}

// SetIndexBuffer binds an index buffer; nil unbinds it. Draw is indexed while one is bound.
func (c *CommandList) SetIndexBuffer(view *gpu.IndexBufferView) {
	c.rec.IASetIndexBuffer(view)
	c.indexed = view != nil
}

// SetTopology sets the primitive topology used by draws.
func (c *CommandList) SetTopology(t gpu.PrimitiveTopology) {
	c.rec.IASetPrimitiveTopology(t)
}

// SetStreamOutputTargets binds stream-output buffers starting at startSlot.
func (c *CommandList) SetStreamOutputTargets(startSlot uint32, views []gpu.StreamOutputView) {
	c.rec.SOSetTargets(startSlot, views)
}

// SetViewport sets one viewport and a scissor rectangle covering it.
func (c *CommandList) SetViewport(vp gpu.Viewport) {
	c.rec.RSSetViewports([]gpu.Viewport{vp})
	c.rec.RSSetScissorRects([]gpu.Rect{ScissorFor(vp)})
}

// SetViewports sets several viewports with matching scissor rectangles.
func (c *CommandList) SetViewports(vps []gpu.Viewport) {
	rects := make([]gpu.Rect, len(vps))
	for i, vp := range vps {
		rects[i] = ScissorFor(vp)
	}
	c.rec.RSSetViewports(vps)
	c.rec.RSSetScissorRects(rects)
}

// ScissorFor returns the pixel rectangle covered by a viewport.
func ScissorFor(vp gpu.Viewport) gpu.Rect {
	return gpu.Rect{
		Left:   int32(vp.X),
		Top:    int32(vp.Y),
		Right:  int32(vp.X + vp.Width),
		Bottom: int32(vp.Y + vp.Height),
	}
}

// SetBlendFactor sets the constant blend colour.
func (c *CommandList) SetBlendFactor(factor [4]float32) {
	c.rec.OMSetBlendFactor(factor)
}

// SetStencilRef sets the stencil reference value.
func (c *CommandList) SetStencilRef(ref uint32) {
	c.rec.OMSetStencilRef(ref)
}

// SetDepthBounds sets the depth-bounds test range.
func (c *CommandList) SetDepthBounds(min, max float32) {
	c.rec.OMSetDepthBounds(min, max)
}

// BindPipeline brings p up to date and binds it.
//
// Returns:
//   - bool: false when p has nothing to bind; draws should be skipped
func (c *CommandList) BindPipeline(p pipeline.Pipeline) bool {
	return p.Bind(c.rec)
}

// BindRootConfiguration records the root arguments of rc.
func (c *CommandList) BindRootConfiguration(rc *rootconfig.RootConfiguration) {
	rc.Bind(c.rec)
}

// Draw flushes pending transitions and draws, indexed if an index buffer is bound.
//
// Parameters:
//   - count: vertices, or indices when indexed
//   - instances: instance count
func (c *CommandList) Draw(count, instances uint32) {
	c.barriers.Flush()
	if c.indexed {
		c.rec.DrawIndexedInstanced(count, instances, 0, 0, 0)
		return
	}
	c.rec.DrawInstanced(count, instances, 0, 0)
}

// Dispatch flushes pending transitions and dispatches a compute grid.
func (c *CommandList) Dispatch(x, y, z uint32) {
	c.barriers.Flush()
	c.rec.Dispatch(x, y, z)
}

// Close flushes pending transitions and finishes recording.
func (c *CommandList) Close() error {
	if c.rendering {
		panic(fmt.Sprintf("command: %s: Close inside a render pass", c.key))
	}
	c.barriers.Flush()
	if err := c.rec.Close(); err != nil {
		return fmt.Errorf("command: %s: close: %w", c.key, err)
	}
	return nil
}

// Reset reopens the list for recording and drops pending transitions.
func (c *CommandList) Reset() error {
	c.barriers.Reset()
	c.indexed = false
	if err := c.rec.Reset(); err != nil {
		return fmt.Errorf("command: %s: reset: %w", c.key, err)
	}
	return nil
}

// Execute closes the list and submits it.
//
// Returns:
//   - uint64: the fence marker of the submitted work
//   - error: an error wrapping gpu.ErrDevice
func (c *CommandList) Execute(q *queue.Queue) (uint64, error) {
	if err := c.Close(); err != nil {
		return 0, err
	}
	return q.Execute(c.rec)
}

// ExecuteSync closes, submits and waits for the list, then resets it for the next frame.
func (c *CommandList) ExecuteSync(q *queue.Queue) error {
	marker, err := c.Execute(q)
	if err != nil {
		return err
	}
	q.Wait(marker)
	c.logger.Debug("command list executed", "marker", marker)
	return c.Reset()
}
