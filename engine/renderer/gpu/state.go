package gpu

import (
	"fmt"
	"strings"
)

// ResourceState is a bit set describing how a resource is being used by the GPU.
// Read-only states may be combined; write states are exclusive.
type ResourceState uint32

const (
	// StateCommon is the state every resource starts in and the state a back buffer must be in to present.
	StateCommon ResourceState = 0
	// StateVertexAndConstantBuffer is used while a buffer is bound as vertex or constant data.
	StateVertexAndConstantBuffer ResourceState = 1 << (iota - 1)
	// StateIndexBuffer is used while a buffer is bound as index data.
	StateIndexBuffer
	// StateRenderTarget is used while a texture is bound as a colour attachment.
	StateRenderTarget
	// StateUnorderedAccess is used for read/write storage access.
	StateUnorderedAccess
	// StateDepthWrite is used while a texture is bound as a writable depth attachment.
	StateDepthWrite
	// StateDepthRead is used while a depth texture is bound read-only.
	StateDepthRead
	// StateNonPixelShaderResource is used for sampled access outside the pixel stage.
	StateNonPixelShaderResource
	// StatePixelShaderResource is used for sampled access in the pixel stage.
	StatePixelShaderResource
	// StateStreamOut is used while a buffer receives stream output.
	StateStreamOut
	// StateIndirectArgument is used while a buffer supplies indirect draw arguments.
	StateIndirectArgument
	// StateCopyDest is used while a resource is the destination of a copy.
	StateCopyDest
	// StateCopySource is used while a resource is the source of a copy.
	StateCopySource
)

const (
	// StatePresent is the state a swapchain buffer must be in to be presented.
	StatePresent = StateCommon
	// StateGenericRead is the state upload heaps live in.
	StateGenericRead = StateVertexAndConstantBuffer | StateIndexBuffer | StateNonPixelShaderResource |
		StatePixelShaderResource | StateIndirectArgument | StateCopySource
	// StateAllShaderResource covers sampled access from every stage.
	StateAllShaderResource = StateNonPixelShaderResource | StatePixelShaderResource
)

var stateNames = []struct {
	state ResourceState
	name  string
}{
	{StateVertexAndConstantBuffer, "VertexAndConstantBuffer"},
	{StateIndexBuffer, "IndexBuffer"},
	{StateRenderTarget, "RenderTarget"},
	{StateUnorderedAccess, "UnorderedAccess"},
	{StateDepthWrite, "DepthWrite"},
	{StateDepthRead, "DepthRead"},
	{StateNonPixelShaderResource, "NonPixelShaderResource"},
	{StatePixelShaderResource, "PixelShaderResource"},
	{StateStreamOut, "StreamOut"},
	{StateIndirectArgument, "IndirectArgument"},
	{StateCopyDest, "CopyDest"},
	{StateCopySource, "CopySource"},
}

func (s ResourceState) String() string {
	if s == StateCommon {
		return "Common"
	}
	var parts []string
	rest := s
	for _, n := range stateNames {
		if s&n.state != 0 {
			parts = append(parts, n.name)
			rest &^= n.state
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// BarrierFlags modifies how a transition is split across command lists.
type BarrierFlags uint8

const (
	// BarrierFlagNone records a full, immediate transition.
	BarrierFlagNone BarrierFlags = 0
	// BarrierFlagBeginOnly starts a split transition.
	BarrierFlagBeginOnly BarrierFlags = 1 << (iota - 1)
	// BarrierFlagEndOnly finishes a split transition.
	BarrierFlagEndOnly
)

// AllSubresources selects every mip level and array slice of a resource.
const AllSubresources uint32 = 0xffffffff

// Transition is one pending resource state change.
type Transition struct {
	Resource    Resource
	Subresource uint32
	Before      ResourceState
	After       ResourceState
	Flags       BarrierFlags
}
