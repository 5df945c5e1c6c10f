package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexBufferLayouts_AppendAlignedAndSlots(t *testing.T) {
	layouts, err := vertexBufferLayouts([]gpu.InputElement{
		{SemanticName: "POSITION", Format: gpu.FormatRGB32Float, AlignedByteOffset: gpu.AppendAligned},
		{SemanticName: "TEXCOORD", Format: gpu.FormatRG32Float, AlignedByteOffset: gpu.AppendAligned},
		{SemanticName: "OFFSET", Format: gpu.FormatRGBA32Float, InputSlot: 2, PerInstance: true, InstanceStepRate: 1},
	})
	require.NoError(t, err)
	require.Len(t, layouts, 3)

	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[0].StepMode)
	assert.Equal(t, uint64(20), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 2)
	assert.Equal(t, uint64(0), layouts[0].Attributes[0].Offset)
	assert.Equal(t, uint64(12), layouts[0].Attributes[1].Offset)
	assert.Equal(t, uint32(1), layouts[0].Attributes[1].ShaderLocation)

	assert.Equal(t, wgpu.VertexStepModeVertexBufferNotUsed, layouts[1].StepMode)

	assert.Equal(t, wgpu.VertexStepModeInstance, layouts[2].StepMode)
	assert.Equal(t, uint32(2), layouts[2].Attributes[0].ShaderLocation)
	assert.Equal(t, uint64(16), layouts[2].ArrayStride)
}

func TestVertexBufferLayouts_ExplicitOffset(t *testing.T) {
	layouts, err := vertexBufferLayouts([]gpu.InputElement{
		{SemanticName: "COLOR", Format: gpu.FormatRGBA8Unorm, AlignedByteOffset: 16},
		{SemanticName: "POSITION", Format: gpu.FormatRGB32Float, AlignedByteOffset: 0},
	})
	require.NoError(t, err)
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(20), layouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexFormatUnorm8x4, layouts[0].Attributes[0].Format)
}

func TestVertexBufferLayouts_Unsupported(t *testing.T) {
	_, err := vertexBufferLayouts([]gpu.InputElement{{SemanticName: "BAD", Format: gpu.FormatD32Float}})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	_, err = vertexBufferLayouts([]gpu.InputElement{{SemanticName: "STEP", Format: gpu.FormatR32Float, PerInstance: true, InstanceStepRate: 2}})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	layouts, err := vertexBufferLayouts(nil)
	require.NoError(t, err)
	assert.Nil(t, layouts)
}

func TestBlendAndWriteMask(t *testing.T) {
	assert.Nil(t, blendState(gpu.RenderTargetBlend{}))

	bs := blendState(gpu.RenderTargetBlend{
		BlendEnable:    true,
		SrcBlend:       gpu.BlendSrcAlpha,
		DestBlend:      gpu.BlendInvSrcAlpha,
		BlendOp:        gpu.BlendOpAdd,
		SrcBlendAlpha:  gpu.BlendOne,
		DestBlendAlpha: gpu.BlendZero,
		BlendOpAlpha:   gpu.BlendOpMax,
	})
	require.NotNil(t, bs)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, bs.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, bs.Color.DstFactor)
	assert.Equal(t, wgpu.BlendOperationMax, bs.Alpha.Operation)

	assert.Equal(t, wgpu.ColorWriteMaskAll, colorWriteMask(gpu.ColorWriteAll))
	assert.Equal(t, wgpu.ColorWriteMaskRed|wgpu.ColorWriteMaskAlpha, colorWriteMask(gpu.ColorWriteRed|gpu.ColorWriteAlpha))
}

func TestStencilFace_DisabledKeeps(t *testing.T) {
	s := stencilFace(gpu.StencilFace{Func: gpu.CompareLess, PassOp: gpu.StencilReplace}, false)
	assert.Equal(t, wgpu.CompareFunctionAlways, s.Compare)
	assert.Equal(t, wgpu.StencilOperationKeep, s.PassOp)

	s = stencilFace(gpu.StencilFace{Func: gpu.CompareLess, PassOp: gpu.StencilReplace}, true)
	assert.Equal(t, wgpu.CompareFunctionLess, s.Compare)
	assert.Equal(t, wgpu.StencilOperationReplace, s.PassOp)
}

func TestPresentModeAndMSAAText(t *testing.T) {
	var m PresentMode
	require.NoError(t, m.UnmarshalText([]byte("Uncapped")))
	assert.Equal(t, PresentModeUncapped, m)
	require.NoError(t, m.UnmarshalText([]byte("fifo")))
	assert.Equal(t, PresentModeVSync, m)
	assert.Error(t, m.UnmarshalText([]byte("mailbox")))

	var c MSAASampleCount
	require.NoError(t, c.UnmarshalText([]byte("4x")))
	assert.Equal(t, MSAA4x, c)
	require.NoError(t, c.UnmarshalText([]byte("off")))
	assert.Equal(t, MSAAOff, c)
	assert.Error(t, c.UnmarshalText([]byte("3")))

	text, err := MSAA8x.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "8x", string(text))
}
