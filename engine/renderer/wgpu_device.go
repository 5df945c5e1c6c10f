package renderer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuDevice implements gpu.Device and gpu.Allocator on a WebGPU device.
type wgpuDevice struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	logger *slog.Logger
}

var (
	_ gpu.Device    = &wgpuDevice{}
	_ gpu.Allocator = &wgpuDevice{}
)

func newWGPUDevice(device *wgpu.Device, queue *wgpu.Queue, log *slog.Logger) *wgpuDevice {
	return &wgpuDevice{device: device, queue: queue, logger: logger.Or(log)}
}

// wgpuBuffer is a gpu.Resource backed by a wgpu buffer.
type wgpuBuffer struct {
	label string
	buf   *wgpu.Buffer
	size  uint64
}

func (b *wgpuBuffer) Label() string { return b.label }

func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Buffer returns the native buffer.
func (b *wgpuBuffer) Buffer() *wgpu.Buffer { return b.buf }

// wgpuTexture is a gpu.Resource backed by a wgpu texture.
type wgpuTexture struct {
	label       string
	tex         *wgpu.Texture
	format      gpu.Format
	width       uint32
	height      uint32
	sampleCount uint32
	// external textures (swapchain images) are released by their owner.
	external bool
}

func (t *wgpuTexture) Label() string { return t.label }

func (t *wgpuTexture) Release() {
	if t.tex != nil && !t.external {
		t.tex.Release()
	}
	t.tex = nil
}

// wgpuView is a gpu.View of a texture used as a render-pass attachment.
type wgpuView struct {
	view        *wgpu.TextureView
	format      gpu.Format
	sampleCount uint32
	// resolve, when set, receives the multisampled contents at the end of each pass.
	resolve *wgpu.TextureView
}

func (v *wgpuView) Release() {
	if v.view != nil {
		v.view.Release()
		v.view = nil
	}
}

// wgpuUploadHeap is CPU memory mirrored into a CopySrc buffer. Flush writes a range through the queue,
// which WebGPU orders before any command buffer submitted afterwards.
type wgpuUploadHeap struct {
	wgpuBuffer
	queue *wgpu.Queue
	data  []byte
}

func (h *wgpuUploadHeap) Bytes() []byte { return h.data }

func (h *wgpuUploadHeap) Flush(offset, size uint64) error {
	if offset+size > uint64(len(h.data)) {
		return fmt.Errorf("upload heap %q: flush [%d, %d) out of range %d", h.label, offset, offset+size, len(h.data))
	}
	// WriteBuffer sizes must be multiples of 4; the heap is padded so rounding up stays in range.
	end := min(alignUp(offset+size, 4), uint64(len(h.data)))
	if end == offset {
		return nil
	}
	h.queue.WriteBuffer(h.buf, offset, h.data[offset:end])
	return nil
}

// wgpuRootSignature is a root layout realized as bind group layouts plus a pipeline layout.
type wgpuRootSignature struct {
	layout         *shader.RootLayout
	groups         []*wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
}

func (rs *wgpuRootSignature) Release() {
	if rs.pipelineLayout != nil {
		rs.pipelineLayout.Release()
		rs.pipelineLayout = nil
	}
	for _, g := range rs.groups {
		g.Release()
	}
	rs.groups = nil
}

// binding returns the root parameter at index: the index-th binding in group/binding order.
func (rs *wgpuRootSignature) binding(index uint32) (shader.Binding, bool) {
	if int(index) >= len(rs.layout.Bindings) {
		return shader.Binding{}, false
	}
	return rs.layout.Bindings[index], true
}

// wgpuPipeline is a gpu.PipelineObject. Graphics pipelines bake the topology, so strip variants
// are created on first use.
type wgpuPipeline struct {
	mu       sync.Mutex
	label    string
	t        gpu.PipelineType
	compute  *wgpu.ComputePipeline
	render   map[wgpu.PrimitiveTopology]*wgpu.RenderPipeline
	list     wgpu.PrimitiveTopology
	build    func(wgpu.PrimitiveTopology) (*wgpu.RenderPipeline, error)
	rootSign *wgpuRootSignature
}

func (p *wgpuPipeline) Type() gpu.PipelineType { return p.t }

func (p *wgpuPipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.compute != nil {
		p.compute.Release()
		p.compute = nil
	}
	for k, rp := range p.render {
		rp.Release()
		delete(p.render, k)
	}
}

// variant returns the render pipeline for a draw topology, building strip variants lazily.
func (p *wgpuPipeline) variant(t gpu.PrimitiveTopology) (*wgpu.RenderPipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	want := p.list
	if strip, ok := stripTopology[t]; ok {
		want = strip
	}
	if rp, ok := p.render[want]; ok {
		return rp, nil
	}
	rp, err := p.build(want)
	if err != nil {
		return nil, err
	}
	p.render[want] = rp
	return rp, nil
}

func (d *wgpuDevice) CreateRootSignature(blob []byte) (gpu.RootSignature, error) {
	layout, err := shader.UnmarshalRootLayout(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gpu.ErrUnsupported, err)
	}
	if layout.PushConstantSize > 0 {
		return nil, fmt.Errorf("%w: push constants (%d bytes) need a native feature this device does not request", gpu.ErrUnsupported, layout.PushConstantSize)
	}
	layout.Sort()

	rs := &wgpuRootSignature{layout: layout}
	for g := 0; g < layout.Groups(); g++ {
		entries, err := bind_group_provider.LayoutEntries(layout.Group(uint32(g)))
		if err != nil {
			rs.Release()
			return nil, err
		}
		bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("Root Group %d", g),
			Entries: entries,
		})
		if err != nil {
			rs.Release()
			return nil, fmt.Errorf("%w: bind group layout %d: %v", gpu.ErrDevice, g, err)
		}
		rs.groups = append(rs.groups, bgl)
	}

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Root Signature",
		BindGroupLayouts: rs.groups,
	})
	if err != nil {
		rs.Release()
		return nil, fmt.Errorf("%w: pipeline layout: %v", gpu.ErrDevice, err)
	}
	rs.pipelineLayout = pl
	return rs, nil
}

func (d *wgpuDevice) CreatePipelineObject(desc gpu.Description) (gpu.PipelineObject, error) {
	switch c := desc.(type) {
	case *gpu.ComputeDescription:
		return d.createComputePipeline(c)
	case *gpu.GraphicsDescription:
		return d.createRenderPipeline(c)
	default:
		panic(fmt.Sprintf("renderer: unknown pipeline description %T", desc))
	}
}

func rootSignatureOf(rs gpu.RootSignature) *wgpuRootSignature {
	w, ok := rs.(*wgpuRootSignature)
	if !ok {
		panic(fmt.Sprintf("renderer: root signature %T was not created by the wgpu device", rs))
	}
	return w
}

func (d *wgpuDevice) shaderModule(label string, code gpu.ShaderBytecode) (*wgpu.ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		SPIRVDescriptor: &wgpu.ShaderModuleSPIRVDescriptor{
			Code: code.Code,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: shader module %q: %v", gpu.ErrDevice, label, err)
	}
	return m, nil
}

func (d *wgpuDevice) createComputePipeline(c *gpu.ComputeDescription) (gpu.PipelineObject, error) {
	rs := rootSignatureOf(c.RootSignature)
	module, err := d.shaderModule(c.Label+" CS", c.CS)
	if err != nil {
		return nil, err
	}
	defer module.Release()

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  c.Label + " Compute Pipeline",
		Layout: rs.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: c.CS.EntryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: compute pipeline %q: %v", gpu.ErrDevice, c.Label, err)
	}
	return &wgpuPipeline{label: c.Label, t: gpu.PipelineTypeCompute, compute: created, rootSign: rs}, nil
}

// checkGraphics rejects the parts of a graphics description WebGPU cannot express.
func checkGraphics(g *gpu.GraphicsDescription) error {
	for name, stage := range map[string]gpu.ShaderBytecode{"hull": g.HS, "domain": g.DS, "geometry": g.GS, "mesh": g.MS, "amplification": g.AS} {
		if !stage.Empty() {
			return fmt.Errorf("%w: %s shader stage", gpu.ErrUnsupported, name)
		}
	}
	switch {
	case g.VS.Empty():
		return fmt.Errorf("%w: graphics pipeline without a vertex shader", gpu.ErrUnsupported)
	case len(g.StreamOutput.Entries) > 0:
		return fmt.Errorf("%w: stream output", gpu.ErrUnsupported)
	case g.Raster.Fill == gpu.FillWireframe:
		return fmt.Errorf("%w: wireframe fill", gpu.ErrUnsupported)
	case g.Raster.ConservativeRaster:
		return fmt.Errorf("%w: conservative rasterization", gpu.ErrUnsupported)
	case g.Topology == gpu.TopologyTypePatch:
		return fmt.Errorf("%w: patch topology", gpu.ErrUnsupported)
	}
	for i := uint32(0); i < g.NumRenderTargets; i++ {
		if g.Blend.RenderTargets[i].LogicOpEnable {
			return fmt.Errorf("%w: logic op on render target %d", gpu.ErrUnsupported, i)
		}
	}
	return nil
}

func (d *wgpuDevice) createRenderPipeline(g *gpu.GraphicsDescription) (gpu.PipelineObject, error) {
	if err := checkGraphics(g); err != nil {
		return nil, err
	}
	rs := rootSignatureOf(g.RootSignature)

	buffers, err := vertexBufferLayouts(g.InputLayout)
	if err != nil {
		return nil, err
	}

	var targets []wgpu.ColorTargetState
	for i := uint32(0); i < g.NumRenderTargets; i++ {
		format, err := textureFormat(g.RTVFormats[i])
		if err != nil {
			return nil, err
		}
		blend := g.Blend.RenderTargets[0]
		if g.Blend.IndependentBlend {
			blend = g.Blend.RenderTargets[i]
		}
		targets = append(targets, wgpu.ColorTargetState{
			Format:    format,
			Blend:     blendState(blend),
			WriteMask: colorWriteMask(blend.WriteMask),
		})
	}

	var depthStencil *wgpu.DepthStencilState
	if g.DSVFormat != gpu.FormatUnknown {
		format, err := textureFormat(g.DSVFormat)
		if err != nil {
			return nil, err
		}
		ds := g.DepthStencil
		compare := wgpu.CompareFunctionAlways
		if ds.DepthEnable {
			compare = compareMap[ds.DepthFunc]
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:              format,
			DepthWriteEnabled:   ds.DepthEnable && ds.DepthWrite,
			DepthCompare:        compare,
			StencilFront:        stencilFace(ds.Front, ds.StencilEnable),
			StencilBack:         stencilFace(ds.Back, ds.StencilEnable),
			StencilReadMask:     uint32(ds.StencilReadMask),
			StencilWriteMask:    uint32(ds.StencilWriteMask),
			DepthBias:           g.Raster.DepthBias,
			DepthBiasSlopeScale: g.Raster.SlopeScaledDepthBias,
			DepthBiasClamp:      g.Raster.DepthBiasClamp,
		}
	}

	frontFace := wgpu.FrontFaceCW
	if g.Raster.FrontCounterClockwise {
		frontFace = wgpu.FrontFaceCCW
	}
	stripIndex := wgpu.IndexFormatUndefined
	switch g.StripCut {
	case gpu.StripCut16:
		stripIndex = wgpu.IndexFormatUint16
	case gpu.StripCut32:
		stripIndex = wgpu.IndexFormatUint32
	}
	sampleCount := max(g.Sample.Count, 1)
	cull := cullModeMap[g.Raster.Cull]

	// Copy everything the builder needs so later edits to g do not leak into strip variants.
	label := g.Label
	vsCode, psCode := g.VS, g.PS
	build := func(topology wgpu.PrimitiveTopology) (*wgpu.RenderPipeline, error) {
		vs, err := d.shaderModule(label+" VS", vsCode)
		if err != nil {
			return nil, err
		}
		defer vs.Release()

		var fragment *wgpu.FragmentState
		if !psCode.Empty() {
			ps, err := d.shaderModule(label+" PS", psCode)
			if err != nil {
				return nil, err
			}
			defer ps.Release()
			fragment = &wgpu.FragmentState{
				Module:     ps,
				EntryPoint: psCode.EntryPoint,
				Targets:    targets,
			}
		}

		primitive := wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: frontFace,
			CullMode:  cull,
		}
		if topology == wgpu.PrimitiveTopologyLineStrip || topology == wgpu.PrimitiveTopologyTriangleStrip {
			primitive.StripIndexFormat = stripIndex
		}

		rp, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  label + " Render Pipeline",
			Layout: rs.pipelineLayout,
			Vertex: wgpu.VertexState{
				Module:     vs,
				EntryPoint: vsCode.EntryPoint,
				Buffers:    buffers,
			},
			Primitive:    primitive,
			DepthStencil: depthStencil,
			Multisample: wgpu.MultisampleState{
				Count:                  sampleCount,
				Mask:                   g.SampleMask,
				AlphaToCoverageEnabled: g.Blend.AlphaToCoverage,
			},
			Fragment: fragment,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: render pipeline %q: %v", gpu.ErrDevice, label, err)
		}
		return rp, nil
	}

	list := topologyTypeMap[g.Topology]
	first, err := build(list)
	if err != nil {
		return nil, err
	}
	return &wgpuPipeline{
		label:    label,
		t:        gpu.PipelineTypeGraphics,
		render:   map[wgpu.PrimitiveTopology]*wgpu.RenderPipeline{list: first},
		list:     list,
		build:    build,
		rootSign: rs,
	}, nil
}

func (d *wgpuDevice) CreateBuffer(desc gpu.BufferDesc) (gpu.Resource, error) {
	var usage wgpu.BufferUsage
	for flag, u := range map[gpu.BufferUsage]wgpu.BufferUsage{
		gpu.BufferUsageVertex:   wgpu.BufferUsageVertex,
		gpu.BufferUsageIndex:    wgpu.BufferUsageIndex,
		gpu.BufferUsageConstant: wgpu.BufferUsageUniform,
		gpu.BufferUsageStorage:  wgpu.BufferUsageStorage,
		gpu.BufferUsageIndirect: wgpu.BufferUsageIndirect,
		gpu.BufferUsageCopySrc:  wgpu.BufferUsageCopySrc,
		gpu.BufferUsageCopyDst:  wgpu.BufferUsageCopyDst,
	} {
		if desc.Usage&flag != 0 {
			usage |= u
		}
	}

	size := alignUp(desc.Size, 4)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: buffer %q: %v", gpu.ErrDevice, desc.Label, err)
	}
	return &wgpuBuffer{label: desc.Label, buf: buf, size: size}, nil
}

func (d *wgpuDevice) CreateTexture(desc gpu.TextureDesc) (gpu.Resource, error) {
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	var usage wgpu.TextureUsage
	for flag, u := range map[gpu.TextureUsage]wgpu.TextureUsage{
		gpu.TextureUsageSampled:      wgpu.TextureUsageTextureBinding,
		gpu.TextureUsageStorage:      wgpu.TextureUsageStorageBinding,
		gpu.TextureUsageRenderTarget: wgpu.TextureUsageRenderAttachment,
		gpu.TextureUsageDepthStencil: wgpu.TextureUsageRenderAttachment,
		gpu.TextureUsageCopySrc:      wgpu.TextureUsageCopySrc,
		gpu.TextureUsageCopyDst:      wgpu.TextureUsageCopyDst,
	} {
		if desc.Usage&flag != 0 {
			usage |= u
		}
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Usage: usage,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: max(desc.MipLevels, 1),
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture %q: %v", gpu.ErrDevice, desc.Label, err)
	}
	return &wgpuTexture{label: desc.Label, tex: tex, format: desc.Format, width: desc.Width, height: desc.Height, sampleCount: 1}, nil
}

func (d *wgpuDevice) CreateUploadHeap(label string, size uint64) (gpu.UploadHeap, error) {
	size = alignUp(size, 4)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upload heap %q: %v", gpu.ErrDevice, label, err)
	}
	return &wgpuUploadHeap{
		wgpuBuffer: wgpuBuffer{label: label, buf: buf, size: size},
		queue:      d.queue,
		data:       make([]byte, size),
	}, nil
}

// CreateView creates an attachment view of a texture created by this device.
//
// Parameters:
//   - res: a texture resource
//
// Returns:
//   - gpu.View: the view
//   - error: an error wrapping gpu.ErrDevice when creation fails
func (d *wgpuDevice) CreateView(res gpu.Resource) (gpu.View, error) {
	t, ok := res.(*wgpuTexture)
	if !ok {
		panic(fmt.Sprintf("renderer: %T is not a wgpu texture", res))
	}
	view, err := t.tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: view of %q: %v", gpu.ErrDevice, t.label, err)
	}
	return &wgpuView{view: view, format: t.format, sampleCount: t.sampleCount}, nil
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}

// nativeBuffer unwraps a buffer resource created by this backend.
func nativeBuffer(res gpu.Resource) *wgpu.Buffer {
	switch b := res.(type) {
	case *wgpuBuffer:
		return b.buf
	case *wgpuUploadHeap:
		return b.buf
	default:
		panic(fmt.Sprintf("renderer: %T is not a wgpu buffer", res))
	}
}

// nativeTexture unwraps a texture resource created by this backend.
func nativeTexture(res gpu.Resource) *wgpuTexture {
	t, ok := res.(*wgpuTexture)
	if !ok {
		panic(fmt.Sprintf("renderer: %T is not a wgpu texture", res))
	}
	return t
}
