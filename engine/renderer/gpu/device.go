package gpu

// Releaser is implemented by every object that owns a native handle.
type Releaser interface {
	Release()
}

// Resource is a native buffer or texture.
type Resource interface {
	Releaser

	// Label returns the debug name of the resource.
	Label() string
}

// RootSignature is the native binding-layout object a pipeline is created against.
type RootSignature interface {
	Releaser
}

// PipelineObject is a compiled native pipeline.
type PipelineObject interface {
	Releaser

	// Type reports whether the object is a graphics or compute pipeline.
	Type() PipelineType
}

// View is a render-target or depth-stencil view of a texture.
type View interface {
	Releaser
}

// DescriptorTable is a native group of descriptors bound as one root parameter.
type DescriptorTable interface {
	Releaser
}

// Device creates the native objects the pipeline state machine needs.
type Device interface {
	// CreateRootSignature builds a root signature from a serialized blob extracted at compile time.
	//
	// Parameters:
	//   - blob: the root-signature bytes produced by the shader compiler
	//
	// Returns:
	//   - RootSignature: the created root signature
	//   - error: an error wrapping ErrDevice or ErrUnsupported when creation fails
	CreateRootSignature(blob []byte) (RootSignature, error)

	// CreatePipelineObject builds a native pipeline from a complete description.
	//
	// Parameters:
	//   - desc: a *GraphicsDescription or *ComputeDescription with bytecode and root signature wired in
	//
	// Returns:
	//   - PipelineObject: the created pipeline
	//   - error: an error wrapping ErrDevice or ErrUnsupported when creation fails
	CreatePipelineObject(desc Description) (PipelineObject, error)
}

// BufferUsage describes how a buffer created through an Allocator will be used.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageConstant
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// TextureUsage describes how a texture created through an Allocator will be used.
type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageRenderTarget
	TextureUsageDepthStencil
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// BufferDesc describes a GPU buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label     string
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    Format
	Usage     TextureUsage
}

// UploadHeap is CPU-writable memory that copy commands can read from.
type UploadHeap interface {
	Resource

	// Bytes returns the CPU-visible memory of the heap.
	Bytes() []byte

	// Flush makes CPU writes in [offset, offset+size) visible to the GPU.
	Flush(offset, size uint64) error
}

// Allocator creates resources. It is implemented by backends next to Device.
type Allocator interface {
	CreateBuffer(desc BufferDesc) (Resource, error)
	CreateTexture(desc TextureDesc) (Resource, error)
	CreateUploadHeap(label string, size uint64) (UploadHeap, error)
}
