package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGraphicsDescription(t *testing.T) {
	d := pipeline.DefaultGraphicsDescription()

	assert.Equal(t, uint32(0xffffffff), d.SampleMask)
	assert.Equal(t, gpu.FillSolid, d.Raster.Fill)
	assert.Equal(t, gpu.CullNone, d.Raster.Cull)
	assert.False(t, d.DepthStencil.DepthEnable)
	assert.False(t, d.DepthStencil.StencilEnable)
	assert.Equal(t, gpu.TopologyTypeTriangle, d.Topology)
	assert.Equal(t, uint32(0), d.NumRenderTargets)
	assert.Equal(t, gpu.FormatUnknown, d.DSVFormat)
	assert.Equal(t, uint32(1), d.Sample.Count)

	rt := d.Blend.RenderTargets[0]
	assert.Equal(t, gpu.BlendOne, rt.SrcBlend)
	assert.Equal(t, gpu.BlendZero, rt.DestBlend)
	assert.Equal(t, gpu.ColorWriteAll, rt.WriteMask)
}

func TestGraphicsManipulatorSetters(t *testing.T) {
	h := newHarness(t)
	blend := gpu.RenderTargetBlend{BlendEnable: true, SrcBlend: gpu.BlendSrcAlpha, DestBlend: gpu.BlendInvSrcAlpha, WriteMask: gpu.ColorWriteAll}
	front := gpu.StencilFace{Func: gpu.CompareEqual}

	p := pipeline.NewPipeline("ui", h.ctx, gpu.PipelineTypeGraphics, pipeline.GraphicsTechnique(func(m pipeline.GraphicsManipulator) error {
		assert.Equal(t, gpu.PipelineTypeGraphics, m.Type())
		m.BindShader(shader.StageVertex, h.vs)
		m.BindShader(shader.StagePixel, h.ps)
		m.SetRenderTargetBlend(2, blend)
		m.SetIndependentBlend(true)
		m.SetAlphaToCoverage(true)
		m.SetCullMode(gpu.CullBack)
		m.SetFillMode(gpu.FillWireframe)
		m.SetFrontCounterClockwise(true)
		m.SetDepthBias(4, 0.5, 1.5)
		m.SetDepth(true, true, gpu.CompareLess)
		m.SetStencil(true, 0x0f, 0xf0, front, front)
		m.SetTopology(gpu.TopologyTypeLine)
		m.SetRenderTargetFormat(2, gpu.FormatRGBA16Float)
		m.SetRenderTargetFormat(0, gpu.FormatBGRA8Unorm)
		m.SetDepthStencilFormat(gpu.FormatD32Float)
		m.SetSampleDesc(4, 0)
		m.AddStreamOutputEntry(gpu.StreamOutputEntry{SemanticName: "POSITION", ComponentCount: 4})
		m.AddStreamOutputStride(16)
		m.SetRasterizedStream(1)
		return nil
	}))
	require.True(t, p.Bind(gputest.NewRecorder()))

	d := p.Description().(*gpu.GraphicsDescription)
	assert.Equal(t, blend, d.Blend.RenderTargets[2])
	assert.True(t, d.Blend.IndependentBlend)
	assert.True(t, d.Blend.AlphaToCoverage)
	assert.Equal(t, gpu.CullBack, d.Raster.Cull)
	assert.Equal(t, gpu.FillWireframe, d.Raster.Fill)
	assert.True(t, d.Raster.FrontCounterClockwise)
	assert.Equal(t, int32(4), d.Raster.DepthBias)
	assert.True(t, d.DepthStencil.DepthEnable)
	assert.Equal(t, gpu.CompareLess, d.DepthStencil.DepthFunc)
	assert.Equal(t, uint8(0x0f), d.DepthStencil.StencilReadMask)
	assert.Equal(t, front, d.DepthStencil.Back)
	assert.Equal(t, gpu.TopologyTypeLine, d.Topology)
	assert.Equal(t, uint32(3), d.NumRenderTargets, "count grows to the highest target set")
	assert.Equal(t, gpu.FormatRGBA16Float, d.RTVFormats[2])
	assert.Equal(t, gpu.FormatD32Float, d.DSVFormat)
	assert.Equal(t, uint32(4), d.Sample.Count)
	assert.Len(t, d.StreamOutput.Entries, 1)
	assert.Equal(t, []uint32{16}, d.StreamOutput.Strides)
	assert.Equal(t, uint32(1), d.StreamOutput.RasterizedStream)
}

func TestAuxiliaryBufferOverflowTruncates(t *testing.T) {
	h := newHarness(t)
	var captured error
	p := pipeline.NewPipeline("wide", h.ctx, gpu.PipelineTypeGraphics, pipeline.GraphicsTechnique(func(m pipeline.GraphicsManipulator) error {
		m.BindShader(shader.StageVertex, h.vs)
		m.BindShader(shader.StagePixel, h.ps)
		for i := range pipeline.AuxCapacity + 3 {
			m.AddInputElement(gpu.InputElement{SemanticName: fmt.Sprintf("ATTR%d", i), Format: gpu.FormatRGBA32Float})
		}
		captured = m.Err()
		return nil
	}))

	require.True(t, p.Bind(gputest.NewRecorder()), "an overflowing description still builds")
	assert.ErrorIs(t, captured, pipeline.ErrCapacityExceeded)
	d := p.Description().(*gpu.GraphicsDescription)
	require.Len(t, d.InputLayout, pipeline.AuxCapacity)
	assert.Equal(t, "ATTR15", d.InputLayout[pipeline.AuxCapacity-1].SemanticName)
}

func TestManipulatorPanics(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name         string
		pipelineType gpu.PipelineType
		describe     func(m pipeline.Manipulator)
	}{
		{
			name:         "render target index out of range",
			pipelineType: gpu.PipelineTypeGraphics,
			describe: func(m pipeline.Manipulator) {
				m.(pipeline.GraphicsManipulator).SetRenderTargetFormat(gpu.MaxRenderTargets, gpu.FormatRGBA8Unorm)
			},
		},
		{
			name:         "blend index out of range",
			pipelineType: gpu.PipelineTypeGraphics,
			describe: func(m pipeline.Manipulator) {
				m.(pipeline.GraphicsManipulator).SetRenderTargetBlend(-1, gpu.RenderTargetBlend{})
			},
		},
		{
			name:         "compute slot in graphics pipeline",
			pipelineType: gpu.PipelineTypeGraphics,
			describe:     func(m pipeline.Manipulator) { m.BindShader(shader.StageCompute, h.vs) },
		},
		{
			name:         "vertex slot in compute pipeline",
			pipelineType: gpu.PipelineTypeCompute,
			describe:     func(m pipeline.Manipulator) { m.BindShader(shader.StageVertex, h.vs) },
		},
		{
			name:         "invalid stage",
			pipelineType: gpu.PipelineTypeGraphics,
			describe:     func(m pipeline.Manipulator) { m.BindShader(shader.Stage(42), h.vs) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tech := &funcTechnique{describe: func(m pipeline.Manipulator) error {
				tt.describe(m)
				return nil
			}}
			p := pipeline.NewPipeline("bad", h.ctx, tt.pipelineType, tech)
			assert.Panics(t, func() { p.Bind(gputest.NewRecorder()) })
		})
	}
}

func TestManipulatorUnusableAfterDescribe(t *testing.T) {
	h := newHarness(t)
	var kept pipeline.GraphicsManipulator
	p := pipeline.NewPipeline("mesh", h.ctx, gpu.PipelineTypeGraphics, pipeline.GraphicsTechnique(func(m pipeline.GraphicsManipulator) error {
		kept = m
		m.BindShader(shader.StageVertex, h.vs)
		m.BindShader(shader.StagePixel, h.ps)
		return nil
	}))
	require.True(t, p.Bind(gputest.NewRecorder()))

	require.NotNil(t, kept)
	assert.Panics(t, func() { kept.SetCullMode(gpu.CullBack) })
	assert.Panics(t, func() { kept.BindShader(shader.StagePixel, nil) })
	assert.Panics(t, func() { _ = kept.Finalize() })
}

func TestTechniqueKindMismatch(t *testing.T) {
	h := newHarness(t)
	p := pipeline.NewPipeline("mixed", h.ctx, gpu.PipelineTypeCompute, h.technique())

	assert.False(t, p.Bind(gputest.NewRecorder()))
	assert.Error(t, p.Err())
	assert.Nil(t, p.Object())

	called := false
	p = pipeline.NewPipeline("inverted", h.ctx, gpu.PipelineTypeGraphics, pipeline.ComputeTechnique(func(m pipeline.ComputeManipulator) error {
		called = true
		return nil
	}))

	assert.False(t, p.Bind(gputest.NewRecorder()))
	assert.False(t, called, "a compute technique must not describe a graphics pipeline")
	assert.ErrorContains(t, p.Err(), "compute technique given a graphics manipulator")
	assert.Nil(t, p.Object())
}

func TestNewPipelinePanics(t *testing.T) {
	h := newHarness(t)
	assert.Panics(t, func() { pipeline.NewPipeline("p", nil, gpu.PipelineTypeGraphics, h.technique()) })
	assert.Panics(t, func() { pipeline.NewPipeline("p", h.ctx, gpu.PipelineTypeGraphics, nil) })
}

type funcTechnique struct {
	describe func(m pipeline.Manipulator) error
}

func (f *funcTechnique) Describe(m pipeline.Manipulator) error { return f.describe(m) }
func (f *funcTechnique) ShouldRebuild() bool                   { return false }
