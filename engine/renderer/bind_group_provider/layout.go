package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// textureFormatMap maps neutral formats to their wgpu texture format.
var textureFormatMap = map[gpu.Format]wgpu.TextureFormat{
	gpu.FormatR8Unorm:        wgpu.TextureFormatR8Unorm,
	gpu.FormatRG8Unorm:       wgpu.TextureFormatRG8Unorm,
	gpu.FormatRGBA8Unorm:     wgpu.TextureFormatRGBA8Unorm,
	gpu.FormatRGBA8UnormSrgb: wgpu.TextureFormatRGBA8UnormSrgb,
	gpu.FormatBGRA8Unorm:     wgpu.TextureFormatBGRA8Unorm,
	gpu.FormatBGRA8UnormSrgb: wgpu.TextureFormatBGRA8UnormSrgb,
	gpu.FormatR16Float:       wgpu.TextureFormatR16Float,
	gpu.FormatRG16Float:      wgpu.TextureFormatRG16Float,
	gpu.FormatRGBA16Float:    wgpu.TextureFormatRGBA16Float,
	gpu.FormatR32Float:       wgpu.TextureFormatR32Float,
	gpu.FormatRG32Float:      wgpu.TextureFormatRG32Float,
	gpu.FormatRGBA32Float:    wgpu.TextureFormatRGBA32Float,
	gpu.FormatR32Uint:        wgpu.TextureFormatR32Uint,
	gpu.FormatRG32Uint:       wgpu.TextureFormatRG32Uint,
	gpu.FormatRGBA32Uint:     wgpu.TextureFormatRGBA32Uint,
	gpu.FormatR32Sint:        wgpu.TextureFormatR32Sint,
	gpu.FormatD16Unorm:       wgpu.TextureFormatDepth16Unorm,
	gpu.FormatD24UnormS8Uint: wgpu.TextureFormatDepth24PlusStencil8,
	gpu.FormatD32Float:       wgpu.TextureFormatDepth32Float,
	gpu.FormatD32FloatS8Uint: wgpu.TextureFormatDepth32FloatStencil8,
}

// TextureFormat converts a neutral format to a wgpu texture format.
//
// Parameters:
//   - f: the neutral format
//
// Returns:
//   - wgpu.TextureFormat: the matching wgpu format, or TextureFormatUndefined
//   - bool: false when wgpu has no texture format for f
func TextureFormat(f gpu.Format) (wgpu.TextureFormat, bool) {
	tf, ok := textureFormatMap[f]
	if !ok {
		return wgpu.TextureFormatUndefined, false
	}
	return tf, true
}

// GPUFormat converts a wgpu texture format back to its neutral format.
// Formats without a neutral counterpart yield gpu.FormatUnknown.
func GPUFormat(tf wgpu.TextureFormat) gpu.Format {
	for f, w := range textureFormatMap {
		if w == tf {
			return f
		}
	}
	return gpu.FormatUnknown
}

var viewDimensionMap = map[shader.ViewDimension]wgpu.TextureViewDimension{
	shader.ViewDimension1D:        wgpu.TextureViewDimension1D,
	shader.ViewDimension2D:        wgpu.TextureViewDimension2D,
	shader.ViewDimension2DArray:   wgpu.TextureViewDimension2DArray,
	shader.ViewDimension3D:        wgpu.TextureViewDimension3D,
	shader.ViewDimensionCube:      wgpu.TextureViewDimensionCube,
	shader.ViewDimensionCubeArray: wgpu.TextureViewDimensionCubeArray,
}

var sampleTypeMap = map[shader.SampleType]wgpu.TextureSampleType{
	shader.SampleTypeFloat:             wgpu.TextureSampleTypeFloat,
	shader.SampleTypeUnfilterableFloat: wgpu.TextureSampleTypeUnfilterableFloat,
	shader.SampleTypeSint:              wgpu.TextureSampleTypeSint,
	shader.SampleTypeUint:              wgpu.TextureSampleTypeUint,
	shader.SampleTypeDepth:             wgpu.TextureSampleTypeDepth,
}

var storageAccessMap = map[shader.StorageAccess]wgpu.StorageTextureAccess{
	shader.StorageAccessWriteOnly: wgpu.StorageTextureAccessWriteOnly,
	shader.StorageAccessReadOnly:  wgpu.StorageTextureAccessReadOnly,
	shader.StorageAccessReadWrite: wgpu.StorageTextureAccessReadWrite,
}

// ShaderStages converts a binding visibility mask to wgpu shader stages.
func ShaderStages(v shader.Visibility) wgpu.ShaderStage {
	stages := wgpu.ShaderStageNone
	if v&shader.VisibleVertex != 0 {
		stages |= wgpu.ShaderStageVertex
	}
	if v&shader.VisiblePixel != 0 {
		stages |= wgpu.ShaderStageFragment
	}
	if v&shader.VisibleCompute != 0 {
		stages |= wgpu.ShaderStageCompute
	}
	return stages
}

// LayoutEntry converts one reflected binding to a bind group layout entry.
//
// Parameters:
//   - b: the reflected binding
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the populated layout entry
//   - error: an error wrapping gpu.ErrUnsupported when the binding cannot be expressed
func LayoutEntry(b shader.Binding) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    b.Binding,
		Visibility: ShaderStages(b.Visibility),
	}

	switch b.Kind {
	case shader.BindingUniformBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = b.MinBindingSize
	case shader.BindingStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Buffer.MinBindingSize = b.MinBindingSize
	case shader.BindingReadOnlyStorageBuffer:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		entry.Buffer.MinBindingSize = b.MinBindingSize
	case shader.BindingSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case shader.BindingComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case shader.BindingSampledTexture, shader.BindingDepthTexture:
		entry.Texture.ViewDimension = viewDimensionMap[b.Dimension]
		entry.Texture.Multisampled = b.Multisampled
		entry.Texture.SampleType = sampleTypeMap[b.SampleType]
		if b.Kind == shader.BindingDepthTexture {
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		}
	case shader.BindingStorageTexture:
		format, ok := TextureFormat(b.Format)
		if !ok {
			return entry, fmt.Errorf("%w: storage texture %q has format %s", gpu.ErrUnsupported, b.Name, b.Format)
		}
		entry.StorageTexture.ViewDimension = viewDimensionMap[b.Dimension]
		entry.StorageTexture.Access = storageAccessMap[b.Access]
		entry.StorageTexture.Format = format
	default:
		return entry, fmt.Errorf("%w: binding %q has kind %d", gpu.ErrUnsupported, b.Name, b.Kind)
	}
	return entry, nil
}

// LayoutEntries converts the bindings of one group.
func LayoutEntries(bindings []shader.Binding) ([]wgpu.BindGroupLayoutEntry, error) {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		e, err := LayoutEntry(b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// IsBuffer reports whether a binding kind is bound from a buffer range.
func IsBuffer(kind shader.BindingKind) bool {
	return kind == shader.BindingUniformBuffer || kind == shader.BindingStorageBuffer || kind == shader.BindingReadOnlyStorageBuffer
}
