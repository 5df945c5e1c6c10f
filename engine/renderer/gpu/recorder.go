package gpu

// Viewport is a rasterizer viewport in pixels.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Rect is a scissor rectangle in pixels; Right and Bottom are exclusive.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// IndexFormat is the width of an index buffer element.
type IndexFormat int

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// VertexBufferView binds a buffer range to an input slot.
type VertexBufferView struct {
	Buffer Resource
	Offset uint64
	Size   uint64
	Stride uint32
}

// IndexBufferView binds a buffer range as index data.
type IndexBufferView struct {
	Buffer Resource
	Offset uint64
	Size   uint64
	Format IndexFormat
}

// StreamOutputView binds a buffer range as a stream-output target.
type StreamOutputView struct {
	Buffer       Resource
	Offset       uint64
	Size         uint64
	FilledSizeAt uint64
}

// LoadAction selects what happens to an attachment at the start of a render pass.
type LoadAction int

const (
	LoadActionLoad LoadAction = iota
	LoadActionClear
)

// RenderTargetBinding is one colour attachment.
type RenderTargetBinding struct {
	View       View
	Load       LoadAction
	ClearColor [4]float64
}

// DepthStencilBinding is the depth/stencil attachment.
type DepthStencilBinding struct {
	View         View
	Load         LoadAction
	ClearDepth   float32
	ClearStencil uint32
	ReadOnly     bool
}

// RootViewKind selects the descriptor type of a root view.
type RootViewKind int

const (
	RootViewConstantBuffer RootViewKind = iota
	RootViewShaderResource
	RootViewUnorderedAccess
)

// TextureCopy copies a pitched buffer footprint into one texture subresource.
type TextureCopy struct {
	Dst      Resource
	MipLevel uint32
	X, Y     uint32

	Src       Resource
	SrcOffset uint64
	RowPitch  uint32
	Width     uint32
	Height    uint32
	Format    Format
}

// Recorder is a native command-recording context.
type Recorder interface {
	// ResourceBarrier submits a batch of transitions as one call.
	ResourceBarrier(transitions []Transition)

	SetPipelineState(p PipelineObject)
	SetRootSignature(t PipelineType, rs RootSignature)
	SetRootConstants(t PipelineType, index uint32, values []uint32, destOffset uint32)
	SetRootView(t PipelineType, index uint32, kind RootViewKind, buf Resource, offset uint64)
	SetRootDescriptorTable(t PipelineType, index uint32, table DescriptorTable)

	SetRenderTargets(targets []RenderTargetBinding, depth *DepthStencilBinding)

	IASetVertexBuffers(startSlot uint32, views []VertexBufferView)
	IASetIndexBuffer(view *IndexBufferView)
	IASetPrimitiveTopology(t PrimitiveTopology)
	SOSetTargets(startSlot uint32, views []StreamOutputView)
	RSSetViewports(viewports []Viewport)
	RSSetScissorRects(rects []Rect)
	OMSetBlendFactor(factor [4]float32)
	OMSetStencilRef(ref uint32)
	OMSetDepthBounds(min, max float32)

	DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	Dispatch(x, y, z uint32)

	CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset, size uint64)
	CopyTextureRegion(c TextureCopy)

	// Close finishes recording. The recorder may not be used until Reset.
	Close() error
	// Reset reopens a closed recorder after its previous work was executed.
	Reset() error
}
