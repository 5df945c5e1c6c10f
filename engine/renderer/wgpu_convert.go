package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var blendFactorMap = map[gpu.BlendFactor]wgpu.BlendFactor{
	gpu.BlendZero:           wgpu.BlendFactorZero,
	gpu.BlendOne:            wgpu.BlendFactorOne,
	gpu.BlendSrcColor:       wgpu.BlendFactorSrc,
	gpu.BlendInvSrcColor:    wgpu.BlendFactorOneMinusSrc,
	gpu.BlendSrcAlpha:       wgpu.BlendFactorSrcAlpha,
	gpu.BlendInvSrcAlpha:    wgpu.BlendFactorOneMinusSrcAlpha,
	gpu.BlendDestColor:      wgpu.BlendFactorDst,
	gpu.BlendInvDestColor:   wgpu.BlendFactorOneMinusDst,
	gpu.BlendDestAlpha:      wgpu.BlendFactorDstAlpha,
	gpu.BlendInvDestAlpha:   wgpu.BlendFactorOneMinusDstAlpha,
	gpu.BlendSrcAlphaSat:    wgpu.BlendFactorSrcAlphaSaturated,
	gpu.BlendBlendFactor:    wgpu.BlendFactorConstant,
	gpu.BlendInvBlendFactor: wgpu.BlendFactorOneMinusConstant,
}

var blendOpMap = map[gpu.BlendOp]wgpu.BlendOperation{
	gpu.BlendOpAdd:         wgpu.BlendOperationAdd,
	gpu.BlendOpSubtract:    wgpu.BlendOperationSubtract,
	gpu.BlendOpRevSubtract: wgpu.BlendOperationReverseSubtract,
	gpu.BlendOpMin:         wgpu.BlendOperationMin,
	gpu.BlendOpMax:         wgpu.BlendOperationMax,
}

var compareMap = map[gpu.CompareFunc]wgpu.CompareFunction{
	gpu.CompareNever:        wgpu.CompareFunctionNever,
	gpu.CompareLess:         wgpu.CompareFunctionLess,
	gpu.CompareEqual:        wgpu.CompareFunctionEqual,
	gpu.CompareLessEqual:    wgpu.CompareFunctionLessEqual,
	gpu.CompareGreater:      wgpu.CompareFunctionGreater,
	gpu.CompareNotEqual:     wgpu.CompareFunctionNotEqual,
	gpu.CompareGreaterEqual: wgpu.CompareFunctionGreaterEqual,
	gpu.CompareAlways:       wgpu.CompareFunctionAlways,
}

var stencilOpMap = map[gpu.StencilOp]wgpu.StencilOperation{
	gpu.StencilKeep:    wgpu.StencilOperationKeep,
	gpu.StencilZero:    wgpu.StencilOperationZero,
	gpu.StencilReplace: wgpu.StencilOperationReplace,
	gpu.StencilIncrSat: wgpu.StencilOperationIncrementClamp,
	gpu.StencilDecrSat: wgpu.StencilOperationDecrementClamp,
	gpu.StencilInvert:  wgpu.StencilOperationInvert,
	gpu.StencilIncr:    wgpu.StencilOperationIncrementWrap,
	gpu.StencilDecr:    wgpu.StencilOperationDecrementWrap,
}

var cullModeMap = map[gpu.CullMode]wgpu.CullMode{
	gpu.CullNone:  wgpu.CullModeNone,
	gpu.CullFront: wgpu.CullModeFront,
	gpu.CullBack:  wgpu.CullModeBack,
}

// vertexFormatMap maps attribute formats to wgpu vertex formats.
var vertexFormatMap = map[gpu.Format]wgpu.VertexFormat{
	gpu.FormatRG8Unorm:    wgpu.VertexFormatUnorm8x2,
	gpu.FormatRGBA8Unorm:  wgpu.VertexFormatUnorm8x4,
	gpu.FormatRG16Float:   wgpu.VertexFormatFloat16x2,
	gpu.FormatRGBA16Float: wgpu.VertexFormatFloat16x4,
	gpu.FormatR32Float:    wgpu.VertexFormatFloat32,
	gpu.FormatRG32Float:   wgpu.VertexFormatFloat32x2,
	gpu.FormatRGB32Float:  wgpu.VertexFormatFloat32x3,
	gpu.FormatRGBA32Float: wgpu.VertexFormatFloat32x4,
	gpu.FormatR32Uint:     wgpu.VertexFormatUint32,
	gpu.FormatRG32Uint:    wgpu.VertexFormatUint32x2,
	gpu.FormatRGB32Uint:   wgpu.VertexFormatUint32x3,
	gpu.FormatRGBA32Uint:  wgpu.VertexFormatUint32x4,
	gpu.FormatR32Sint:     wgpu.VertexFormatSint32,
}

var topologyTypeMap = map[gpu.PrimitiveTopologyType]wgpu.PrimitiveTopology{
	gpu.TopologyTypeUndefined: wgpu.PrimitiveTopologyTriangleList,
	gpu.TopologyTypePoint:     wgpu.PrimitiveTopologyPointList,
	gpu.TopologyTypeLine:      wgpu.PrimitiveTopologyLineList,
	gpu.TopologyTypeTriangle:  wgpu.PrimitiveTopologyTriangleList,
}

// stripTopology returns the strip variant of a list topology, used when a draw selects a strip.
var stripTopology = map[gpu.PrimitiveTopology]wgpu.PrimitiveTopology{
	gpu.TopologyLineStrip:     wgpu.PrimitiveTopologyLineStrip,
	gpu.TopologyTriangleStrip: wgpu.PrimitiveTopologyTriangleStrip,
}

func colorWriteMask(m gpu.ColorWriteMask) wgpu.ColorWriteMask {
	out := wgpu.ColorWriteMaskNone
	if m&gpu.ColorWriteRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&gpu.ColorWriteGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&gpu.ColorWriteBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&gpu.ColorWriteAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

func textureFormat(f gpu.Format) (wgpu.TextureFormat, error) {
	tf, ok := bind_group_provider.TextureFormat(f)
	if !ok {
		return tf, fmt.Errorf("%w: texture format %s", gpu.ErrUnsupported, f)
	}
	return tf, nil
}

func indexFormat(f gpu.IndexFormat) wgpu.IndexFormat {
	if f == gpu.IndexFormatUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func blendState(rt gpu.RenderTargetBlend) *wgpu.BlendState {
	if !rt.BlendEnable {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: blendOpMap[rt.BlendOp],
			SrcFactor: blendFactorMap[rt.SrcBlend],
			DstFactor: blendFactorMap[rt.DestBlend],
		},
		Alpha: wgpu.BlendComponent{
			Operation: blendOpMap[rt.BlendOpAlpha],
			SrcFactor: blendFactorMap[rt.SrcBlendAlpha],
			DstFactor: blendFactorMap[rt.DestBlendAlpha],
		},
	}
}

func stencilFace(f gpu.StencilFace, enabled bool) wgpu.StencilFaceState {
	if !enabled {
		return wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionAlways,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationKeep,
		}
	}
	return wgpu.StencilFaceState{
		Compare:     compareMap[f.Func],
		FailOp:      stencilOpMap[f.FailOp],
		DepthFailOp: stencilOpMap[f.DepthFailOp],
		PassOp:      stencilOpMap[f.PassOp],
	}
}

// vertexBufferLayouts groups the input layout by slot. Attribute locations follow element order,
// matching the @location numbering of the vertex entry point's inputs.
func vertexBufferLayouts(elements []gpu.InputElement) ([]wgpu.VertexBufferLayout, error) {
	if len(elements) == 0 {
		return nil, nil
	}

	slots := 0
	for _, e := range elements {
		if int(e.InputSlot)+1 > slots {
			slots = int(e.InputSlot) + 1
		}
	}
	layouts := make([]wgpu.VertexBufferLayout, slots)
	offsets := make([]uint64, slots)
	for i := range layouts {
		layouts[i].StepMode = wgpu.VertexStepModeVertex
	}

	for loc, e := range elements {
		format, ok := vertexFormatMap[e.Format]
		if !ok {
			return nil, fmt.Errorf("%w: vertex format %s for %s%d", gpu.ErrUnsupported, e.Format, e.SemanticName, e.SemanticIndex)
		}
		if e.PerInstance && e.InstanceStepRate > 1 {
			return nil, fmt.Errorf("%w: instance step rate %d for %s%d", gpu.ErrUnsupported, e.InstanceStepRate, e.SemanticName, e.SemanticIndex)
		}

		l := &layouts[e.InputSlot]
		offset := uint64(e.AlignedByteOffset)
		if e.AlignedByteOffset == gpu.AppendAligned {
			offset = offsets[e.InputSlot]
		}
		if e.PerInstance {
			l.StepMode = wgpu.VertexStepModeInstance
		}
		l.Attributes = append(l.Attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         offset,
			ShaderLocation: uint32(loc),
		})

		end := offset + uint64(e.Format.BytesPerPixel())
		offsets[e.InputSlot] = end
		if end > l.ArrayStride {
			l.ArrayStride = end
		}
	}

	// Unused slots in between still need a valid layout entry.
	for i := range layouts {
		if len(layouts[i].Attributes) == 0 {
			layouts[i].StepMode = wgpu.VertexStepModeVertexBufferNotUsed
		}
	}
	return layouts, nil
}
