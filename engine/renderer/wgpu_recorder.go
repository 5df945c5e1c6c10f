package renderer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuRecorder implements gpu.Recorder on a WebGPU command encoder.
//
// WebGPU binds state per pass, so the recorder keeps the bound state and applies it at each
// draw or dispatch. A render pass opened by SetRenderTargets is suspended by copies and dispatches
// and reopened with load operations on the next draw. Root parameters address the bindings of the
// root layout in group/binding order; root views fill per-group bind group providers and a
// descriptor table supplies the whole group of the binding it is bound at.
type wgpuRecorder struct {
	dev    *wgpuDevice
	logger *slog.Logger

	encoder  *wgpu.CommandEncoder
	commands *wgpu.CommandBuffer
	closed   bool

	pass    *wgpu.RenderPassEncoder
	targets []gpu.RenderTargetBinding
	depth   *gpu.DepthStencilBinding

	pipeline *wgpuPipeline
	roots    [2]*wgpuRootSignature
	views    [2]map[uint32]bind_group_provider.BindGroupProvider
	tables   [2]map[uint32]bind_group_provider.BindGroupProvider

	vertexBuffers []gpu.VertexBufferView
	indexBuffer   *gpu.IndexBufferView
	topology      gpu.PrimitiveTopology
	viewports     []gpu.Viewport
	scissors      []gpu.Rect
	blendFactor   *[4]float32
	stencilRef    *uint32

	barrierCalls int
	warned       map[string]bool
}

var _ gpu.Recorder = &wgpuRecorder{}

func newWGPURecorder(dev *wgpuDevice) (*wgpuRecorder, error) {
	r := &wgpuRecorder{dev: dev, logger: dev.logger, warned: make(map[string]bool)}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *wgpuRecorder) open() error {
	enc, err := r.dev.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("%w: command encoder: %v", gpu.ErrDevice, err)
	}
	r.encoder = enc
	r.closed = false
	for t := range r.views {
		r.views[t] = make(map[uint32]bind_group_provider.BindGroupProvider)
		r.tables[t] = make(map[uint32]bind_group_provider.BindGroupProvider)
	}
	return nil
}

// warnOnce logs a warning the first time a given unsupported call is seen.
func (r *wgpuRecorder) warnOnce(what string) {
	if r.warned[what] {
		return
	}
	r.warned[what] = true
	r.logger.Warn("recorder: not supported by the wgpu backend, ignored", "call", what)
}

func (r *wgpuRecorder) mustBeOpen() {
	if r.closed {
		panic("renderer: recording into a closed recorder")
	}
}

// BarrierCalls returns how many batched barrier calls were recorded.
func (r *wgpuRecorder) BarrierCalls() int {
	return r.barrierCalls
}

// ResourceBarrier validates a batch of transitions. WebGPU tracks usage itself, so nothing is recorded.
func (r *wgpuRecorder) ResourceBarrier(transitions []gpu.Transition) {
	r.mustBeOpen()
	r.barrierCalls++
	for _, t := range transitions {
		if t.Before == t.After && t.Flags == gpu.BarrierFlagNone {
			r.logger.Warn("recorder: redundant transition", "resource", t.Resource.Label(), "state", t.Before)
		}
	}
}

func (r *wgpuRecorder) SetPipelineState(p gpu.PipelineObject) {
	r.mustBeOpen()
	wp, ok := p.(*wgpuPipeline)
	if !ok {
		panic(fmt.Sprintf("renderer: pipeline %T was not created by the wgpu device", p))
	}
	r.pipeline = wp
}

func (r *wgpuRecorder) SetRootSignature(t gpu.PipelineType, rs gpu.RootSignature) {
	r.mustBeOpen()
	w := rootSignatureOf(rs)
	if r.roots[t] == w {
		return
	}
	r.roots[t] = w
	r.releaseBindings(t)
}

func (r *wgpuRecorder) releaseBindings(t gpu.PipelineType) {
	for g, p := range r.views[t] {
		p.Release()
		delete(r.views[t], g)
	}
	clear(r.tables[t])
}

func (r *wgpuRecorder) rootBinding(t gpu.PipelineType, index uint32) (*wgpuRootSignature, shader.Binding) {
	rs := r.roots[t]
	if rs == nil {
		panic(fmt.Sprintf("renderer: root parameter %d bound before a %s root signature", index, t))
	}
	b, ok := rs.binding(index)
	if !ok {
		panic(fmt.Sprintf("renderer: root parameter %d out of range [0, %d)", index, len(rs.layout.Bindings)))
	}
	return rs, b
}

func (r *wgpuRecorder) SetRootConstants(t gpu.PipelineType, index uint32, values []uint32, destOffset uint32) {
	r.mustBeOpen()
	r.warnOnce("SetRootConstants")
}

func (r *wgpuRecorder) SetRootView(t gpu.PipelineType, index uint32, kind gpu.RootViewKind, buf gpu.Resource, offset uint64) {
	r.mustBeOpen()
	rs, b := r.rootBinding(t, index)
	if !bind_group_provider.IsBuffer(b.Kind) {
		panic(fmt.Sprintf("renderer: root parameter %d (%s) is not a buffer binding", index, b.Name))
	}
	r.viewProvider(t, rs, b.Group).SetBuffer(b.Binding, nativeBuffer(buf), offset, wgpu.WholeSize)
}

func (r *wgpuRecorder) SetRootDescriptorTable(t gpu.PipelineType, index uint32, table gpu.DescriptorTable) {
	r.mustBeOpen()
	_, b := r.rootBinding(t, index)
	p, ok := table.(bind_group_provider.BindGroupProvider)
	if !ok {
		panic(fmt.Sprintf("renderer: descriptor table %T is not a bind group provider", table))
	}
	r.tables[t][b.Group] = p
}

func (r *wgpuRecorder) viewProvider(t gpu.PipelineType, rs *wgpuRootSignature, group uint32) bind_group_provider.BindGroupProvider {
	if p, ok := r.views[t][group]; ok {
		return p
	}
	p := bind_group_provider.NewBindGroupProvider(
		fmt.Sprintf("%s root group %d", t, group), group, rs.layout.Bindings,
		bind_group_provider.WithBindGroupLayout(rs.groups[group]),
	)
	r.views[t][group] = p
	return p
}

// bindGroups resolves the bind group of every group of the bound root signature.
func (r *wgpuRecorder) bindGroups(t gpu.PipelineType) ([]*wgpu.BindGroup, error) {
	rs := r.roots[t]
	if rs == nil {
		return nil, errors.New("no root signature bound")
	}
	groups := make([]*wgpu.BindGroup, len(rs.groups))
	for g := range rs.groups {
		p, ok := r.tables[t][uint32(g)]
		if !ok {
			p = r.viewProvider(t, rs, uint32(g))
		}
		bg, err := p.BindGroup(r.dev.device)
		if err != nil {
			return nil, err
		}
		groups[g] = bg
	}
	return groups, nil
}

func (r *wgpuRecorder) SetRenderTargets(targets []gpu.RenderTargetBinding, depth *gpu.DepthStencilBinding) {
	r.mustBeOpen()
	r.endPass()
	r.targets = append(r.targets[:0], targets...)
	r.depth = nil
	if depth != nil {
		d := *depth
		r.depth = &d
	}
	r.beginPass(false)
}

// beginPass opens a render pass on the bound targets. resume forces load operations so a pass
// suspended by a copy or dispatch keeps its contents.
func (r *wgpuRecorder) beginPass(resume bool) {
	desc := &wgpu.RenderPassDescriptor{}
	for _, t := range r.targets {
		v := t.View.(*wgpuView)
		att := wgpu.RenderPassColorAttachment{
			View:          v.view,
			ResolveTarget: v.resolve,
			LoadOp:        wgpu.LoadOpLoad,
			StoreOp:       wgpu.StoreOpStore,
		}
		if t.Load == gpu.LoadActionClear && !resume {
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = wgpu.Color{R: t.ClearColor[0], G: t.ClearColor[1], B: t.ClearColor[2], A: t.ClearColor[3]}
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}

	if r.depth != nil {
		v := r.depth.View.(*wgpuView)
		att := &wgpu.RenderPassDepthStencilAttachment{
			View:            v.view,
			DepthClearValue: r.depth.ClearDepth,
			DepthReadOnly:   r.depth.ReadOnly,
		}
		clearing := r.depth.Load == gpu.LoadActionClear && !resume
		if !r.depth.ReadOnly {
			att.DepthLoadOp, att.DepthStoreOp = wgpu.LoadOpLoad, wgpu.StoreOpStore
			if clearing {
				att.DepthLoadOp = wgpu.LoadOpClear
			}
		}
		if v.format.HasStencil() {
			att.StencilReadOnly = r.depth.ReadOnly
			att.StencilClearValue = r.depth.ClearStencil
			if !r.depth.ReadOnly {
				att.StencilLoadOp, att.StencilStoreOp = wgpu.LoadOpLoad, wgpu.StoreOpStore
				if clearing {
					att.StencilLoadOp = wgpu.LoadOpClear
				}
			}
		}
		desc.DepthStencilAttachment = att
	}

	r.pass = r.encoder.BeginRenderPass(desc)
}

func (r *wgpuRecorder) endPass() {
	if r.pass == nil {
		return
	}
	r.pass.End()
	r.pass.Release()
	r.pass = nil
}

func (r *wgpuRecorder) IASetVertexBuffers(startSlot uint32, views []gpu.VertexBufferView) {
	r.mustBeOpen()
	if need := int(startSlot) + len(views); need > len(r.vertexBuffers) {
		r.vertexBuffers = append(r.vertexBuffers, make([]gpu.VertexBufferView, need-len(r.vertexBuffers))...)
	}
	copy(r.vertexBuffers[startSlot:], views)
}

func (r *wgpuRecorder) IASetIndexBuffer(view *gpu.IndexBufferView) {
	r.mustBeOpen()
	if view == nil {
		r.indexBuffer = nil
		return
	}
	v := *view
	r.indexBuffer = &v
}

func (r *wgpuRecorder) IASetPrimitiveTopology(t gpu.PrimitiveTopology) {
	r.mustBeOpen()
	r.topology = t
}

func (r *wgpuRecorder) SOSetTargets(startSlot uint32, views []gpu.StreamOutputView) {
	r.mustBeOpen()
	if len(views) > 0 {
		r.warnOnce("SOSetTargets")
	}
}

func (r *wgpuRecorder) RSSetViewports(viewports []gpu.Viewport) {
	r.mustBeOpen()
	if len(viewports) > 1 {
		r.warnOnce("RSSetViewports with more than one viewport")
	}
	r.viewports = append(r.viewports[:0], viewports...)
}

func (r *wgpuRecorder) RSSetScissorRects(rects []gpu.Rect) {
	r.mustBeOpen()
	r.scissors = append(r.scissors[:0], rects...)
}

func (r *wgpuRecorder) OMSetBlendFactor(factor [4]float32) {
	r.mustBeOpen()
	r.blendFactor = &factor
}

func (r *wgpuRecorder) OMSetStencilRef(ref uint32) {
	r.mustBeOpen()
	r.stencilRef = &ref
}

func (r *wgpuRecorder) OMSetDepthBounds(min, max float32) {
	r.mustBeOpen()
	r.warnOnce("OMSetDepthBounds")
}

// prepareDraw opens the pass if needed and applies the bound state. It returns false when the
// draw cannot be recorded; the reason is logged.
func (r *wgpuRecorder) prepareDraw() bool {
	if len(r.targets) == 0 && r.depth == nil {
		r.logger.Warn("recorder: draw without render targets skipped")
		return false
	}
	if r.pipeline == nil || r.pipeline.t != gpu.PipelineTypeGraphics {
		r.logger.Warn("recorder: draw without a graphics pipeline skipped")
		return false
	}

	rp, err := r.pipeline.variant(r.topology)
	if err != nil {
		r.logger.Error("recorder: pipeline variant", "pipeline", r.pipeline.label, "error", err)
		return false
	}
	groups, err := r.bindGroups(gpu.PipelineTypeGraphics)
	if err != nil {
		r.logger.Warn("recorder: draw skipped", "pipeline", r.pipeline.label, "error", err)
		return false
	}

	if r.pass == nil {
		r.beginPass(true)
	}
	r.pass.SetPipeline(rp)
	for g, bg := range groups {
		r.pass.SetBindGroup(uint32(g), bg, nil)
	}
	for slot, v := range r.vertexBuffers {
		if v.Buffer == nil {
			continue
		}
		r.pass.SetVertexBuffer(uint32(slot), nativeBuffer(v.Buffer), v.Offset, wholeIfZero(v.Size))
	}
	if r.indexBuffer != nil {
		ib := r.indexBuffer
		r.pass.SetIndexBuffer(nativeBuffer(ib.Buffer), indexFormat(ib.Format), ib.Offset, wholeIfZero(ib.Size))
	}
	if len(r.viewports) > 0 {
		vp := r.viewports[0]
		r.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	}
	if len(r.scissors) > 0 {
		s := r.scissors[0]
		r.pass.SetScissorRect(uint32(max(s.Left, 0)), uint32(max(s.Top, 0)), uint32(max(s.Right-s.Left, 0)), uint32(max(s.Bottom-s.Top, 0)))
	}
	if r.blendFactor != nil {
		f := r.blendFactor
		r.pass.SetBlendConstant(&wgpu.Color{R: float64(f[0]), G: float64(f[1]), B: float64(f[2]), A: float64(f[3])})
	}
	if r.stencilRef != nil {
		r.pass.SetStencilReference(*r.stencilRef)
	}
	return true
}

func wholeIfZero(size uint64) uint64 {
	if size == 0 {
		return wgpu.WholeSize
	}
	return size
}

func (r *wgpuRecorder) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	r.mustBeOpen()
	if !r.prepareDraw() {
		return
	}
	r.pass.Draw(vertexCount, instanceCount, startVertex, startInstance)
}

func (r *wgpuRecorder) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	r.mustBeOpen()
	if r.indexBuffer == nil {
		r.logger.Warn("recorder: indexed draw without an index buffer skipped")
		return
	}
	if !r.prepareDraw() {
		return
	}
	r.pass.DrawIndexed(indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (r *wgpuRecorder) Dispatch(x, y, z uint32) {
	r.mustBeOpen()
	if r.pipeline == nil || r.pipeline.t != gpu.PipelineTypeCompute {
		r.logger.Warn("recorder: dispatch without a compute pipeline skipped")
		return
	}
	groups, err := r.bindGroups(gpu.PipelineTypeCompute)
	if err != nil {
		r.logger.Warn("recorder: dispatch skipped", "pipeline", r.pipeline.label, "error", err)
		return
	}

	r.endPass()
	cp := r.encoder.BeginComputePass(nil)
	cp.SetPipeline(r.pipeline.compute)
	for g, bg := range groups {
		cp.SetBindGroup(uint32(g), bg, nil)
	}
	cp.DispatchWorkgroups(x, y, z)
	cp.End()
	cp.Release()
}

func (r *wgpuRecorder) CopyBufferRegion(dst gpu.Resource, dstOffset uint64, src gpu.Resource, srcOffset, size uint64) {
	r.mustBeOpen()
	r.endPass()
	r.encoder.CopyBufferToBuffer(nativeBuffer(src), srcOffset, nativeBuffer(dst), dstOffset, alignUp(size, 4))
}

func (r *wgpuRecorder) CopyTextureRegion(c gpu.TextureCopy) {
	r.mustBeOpen()
	r.endPass()
	r.encoder.CopyBufferToTexture(
		&wgpu.ImageCopyBuffer{
			Layout: wgpu.TextureDataLayout{
				Offset:       c.SrcOffset,
				BytesPerRow:  c.RowPitch,
				RowsPerImage: c.Height,
			},
			Buffer: nativeBuffer(c.Src),
		},
		&wgpu.ImageCopyTexture{
			Texture:  nativeTexture(c.Dst).tex,
			MipLevel: c.MipLevel,
			Origin:   wgpu.Origin3D{X: c.X, Y: c.Y},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              c.Width,
			Height:             c.Height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (r *wgpuRecorder) Close() error {
	r.mustBeOpen()
	r.endPass()
	cb, err := r.encoder.Finish(nil)
	r.encoder.Release()
	r.encoder = nil
	r.closed = true
	if err != nil {
		return fmt.Errorf("%w: finish command encoder: %v", gpu.ErrDevice, err)
	}
	r.commands = cb
	return nil
}

// takeCommands hands the finished command buffer to the queue.
func (r *wgpuRecorder) takeCommands() (*wgpu.CommandBuffer, error) {
	if !r.closed || r.commands == nil {
		return nil, errors.New("recorder was not closed")
	}
	cb := r.commands
	r.commands = nil
	return cb, nil
}

func (r *wgpuRecorder) Reset() error {
	if !r.closed {
		// Discard what was recorded so far.
		r.endPass()
		r.encoder.Release()
		r.encoder = nil
	}
	if r.commands != nil {
		r.commands.Release()
		r.commands = nil
	}
	for t := range r.views {
		r.releaseBindings(gpu.PipelineType(t))
	}
	r.targets = r.targets[:0]
	r.depth = nil
	r.pipeline = nil
	r.roots = [2]*wgpuRootSignature{}
	r.vertexBuffers = r.vertexBuffers[:0]
	r.indexBuffer = nil
	r.topology = gpu.TopologyUndefined
	r.viewports = r.viewports[:0]
	r.scissors = r.scissors[:0]
	r.blendFactor = nil
	r.stencilRef = nil
	return r.open()
}

// Release drops the native encoder and any unsubmitted commands.
func (r *wgpuRecorder) Release() {
	r.endPass()
	if r.encoder != nil {
		r.encoder.Release()
		r.encoder = nil
	}
	if r.commands != nil {
		r.commands.Release()
		r.commands = nil
	}
	for t := range r.views {
		r.releaseBindings(gpu.PipelineType(t))
	}
	r.closed = true
}
