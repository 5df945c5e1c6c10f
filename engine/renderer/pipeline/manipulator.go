package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

// Manipulator is the transient view of a pipeline's description handed to Technique.Describe.
// It is invalid after Finalize; any further call panics.
type Manipulator interface {
	// Type reports which pipeline class is being described.
	//
	// Returns:
	//   - gpu.PipelineType: graphics or compute
	Type() gpu.PipelineType

	// BindShader places a shader in the slot of the given stage.
	// It panics for a stage the pipeline class has no slot for.
	//
	// Parameters:
	//   - stage: the stage slot to fill
	//   - s: the shader, nil to clear the slot
	BindShader(stage shader.Stage, s shader.Shader)

	// Err returns the first capacity error recorded by this manipulator.
	//
	// Returns:
	//   - error: ErrCapacityExceeded or nil
	Err() error

	// Finalize copies the auxiliary buffers into the description and invalidates the manipulator.
	//
	// Returns:
	//   - error: the value of Err
	Finalize() error
}

// ComputeManipulator describes a compute pipeline. Its only slot is StageCompute.
type ComputeManipulator interface {
	Manipulator

	// computeOnly keeps a GraphicsManipulator from satisfying this interface.
	computeOnly()
}

// GraphicsManipulator describes a graphics pipeline. Each setter changes one field group of the
// description; everything starts from DefaultGraphicsDescription.
type GraphicsManipulator interface {
	Manipulator

	// SetAlphaToCoverage toggles alpha-to-coverage.
	SetAlphaToCoverage(enabled bool)

	// SetIndependentBlend toggles per-target blend state; when off, target 0 applies to all.
	SetIndependentBlend(enabled bool)

	// SetRenderTargetBlend sets the blend state of one render target. It panics for index >= 8.
	//
	// Parameters:
	//   - index: the render target, 0 to 7
	//   - blend: the blend state
	SetRenderTargetBlend(index int, blend gpu.RenderTargetBlend)

	// SetSampleMask sets the multisample coverage mask.
	SetSampleMask(mask uint32)

	// SetFillMode sets solid or wireframe rasterization.
	SetFillMode(mode gpu.FillMode)

	// SetCullMode sets which faces are culled.
	SetCullMode(mode gpu.CullMode)

	// SetFrontCounterClockwise sets the winding of front faces.
	SetFrontCounterClockwise(ccw bool)

	// SetDepthBias sets the constant, clamp and slope-scaled depth bias.
	SetDepthBias(bias int32, clamp, slopeScaled float32)

	// SetDepthClip toggles depth clipping.
	SetDepthClip(enabled bool)

	// SetMultisample toggles multisample rasterization and antialiased lines.
	SetMultisample(multisample, antialiasedLines bool)

	// SetConservativeRaster toggles conservative rasterization.
	SetConservativeRaster(enabled bool)

	// SetDepth sets the depth test.
	//
	// Parameters:
	//   - enabled: whether the depth test runs
	//   - write: whether passing fragments write depth
	//   - fn: the depth comparison
	SetDepth(enabled, write bool, fn gpu.CompareFunc)

	// SetStencil sets the stencil test.
	//
	// Parameters:
	//   - enabled: whether the stencil test runs
	//   - readMask: the stencil read mask
	//   - writeMask: the stencil write mask
	//   - front: operations for front faces
	//   - back: operations for back faces
	SetStencil(enabled bool, readMask, writeMask uint8, front, back gpu.StencilFace)

	// AddInputElement appends a vertex input element. When AuxCapacity elements are already present
	// the element is dropped and Err reports ErrCapacityExceeded.
	AddInputElement(e gpu.InputElement)

	// AddStreamOutputEntry appends a stream-output declaration entry, bounded like AddInputElement.
	AddStreamOutputEntry(e gpu.StreamOutputEntry)

	// AddStreamOutputStride appends the stride of the next stream-output buffer, bounded like AddInputElement.
	AddStreamOutputStride(stride uint32)

	// SetRasterizedStream selects the stream sent to the rasterizer.
	SetRasterizedStream(stream uint32)

	// SetStripCut sets the strip-cut index value.
	SetStripCut(cut gpu.StripCut)

	// SetTopology sets the primitive topology class.
	SetTopology(t gpu.PrimitiveTopologyType)

	// SetRenderTargetFormat sets the format of one render target and grows the render target count
	// to include it. It panics for index >= 8.
	//
	// Parameters:
	//   - index: the render target, 0 to 7
	//   - format: the render target format
	SetRenderTargetFormat(index int, format gpu.Format)

	// SetDepthStencilFormat sets the depth-stencil format, FormatUnknown for none.
	SetDepthStencilFormat(format gpu.Format)

	// SetSampleDesc sets the sample count and quality.
	SetSampleDesc(count, quality uint32)
}

// DefaultGraphicsDescription returns the state a graphics manipulator starts from: opaque blend
// on target 0, solid fill without culling, no depth or stencil test, triangles, no render targets
// and a single sample.
//
// Returns:
//   - *gpu.GraphicsDescription: a new description
func DefaultGraphicsDescription() *gpu.GraphicsDescription {
	keep := gpu.StencilFace{FailOp: gpu.StencilKeep, DepthFailOp: gpu.StencilKeep, PassOp: gpu.StencilKeep, Func: gpu.CompareAlways}
	d := &gpu.GraphicsDescription{
		SampleMask: 0xffffffff,
		Raster: gpu.RasterState{
			Fill: gpu.FillSolid,
			Cull: gpu.CullNone,
		},
		DepthStencil: gpu.DepthStencilState{
			DepthFunc:        gpu.CompareAlways,
			StencilReadMask:  0xff,
			StencilWriteMask: 0xff,
			Front:            keep,
			Back:             keep,
		},
		StripCut:  gpu.StripCutDisabled,
		Topology:  gpu.TopologyTypeTriangle,
		DSVFormat: gpu.FormatUnknown,
		Sample:    gpu.SampleDesc{Count: 1},
	}
	d.Blend.RenderTargets[0] = gpu.RenderTargetBlend{
		BlendEnable:    true,
		SrcBlend:       gpu.BlendOne,
		DestBlend:      gpu.BlendZero,
		BlendOp:        gpu.BlendOpAdd,
		SrcBlendAlpha:  gpu.BlendOne,
		DestBlendAlpha: gpu.BlendZero,
		BlendOpAlpha:   gpu.BlendOpAdd,
		LogicOp:        gpu.LogicOpNoop,
		WriteMask:      gpu.ColorWriteAll,
	}
	return d
}

// manipulator holds the state shared by both variants.
type manipulator struct {
	p     *pipeline
	err   error
	final bool
}

func (m *manipulator) live() {
	if m.final {
		panic(fmt.Sprintf("pipeline: %s: manipulator used after Finalize", m.p.key))
	}
}

func (m *manipulator) Type() gpu.PipelineType {
	return m.p.pipelineType
}

func (m *manipulator) BindShader(stage shader.Stage, s shader.Shader) {
	m.live()
	if !m.p.hasSlot(stage) {
		panic(fmt.Sprintf("pipeline: %s: no %s slot in a %s pipeline", m.p.key, stage, m.p.pipelineType))
	}
	m.p.slots[stage] = s
}

func (m *manipulator) Err() error {
	return m.err
}

func (m *manipulator) overflow(what string) {
	if m.err == nil {
		m.err = fmt.Errorf("%w: %s: %s beyond %d entries", ErrCapacityExceeded, m.p.key, what, AuxCapacity)
	}
}

type computeManipulator struct {
	manipulator
}

var _ ComputeManipulator = &computeManipulator{}

func (m *computeManipulator) computeOnly() {}

func (m *computeManipulator) Finalize() error {
	m.live()
	m.final = true
	return m.err
}

type graphicsManipulator struct {
	manipulator
	desc *gpu.GraphicsDescription
}

var _ GraphicsManipulator = &graphicsManipulator{}

func (m *graphicsManipulator) Finalize() error {
	m.live()
	m.desc.InputLayout = m.p.inputLayout.slice()
	m.desc.StreamOutput.Entries = m.p.streamOutput.slice()
	m.desc.StreamOutput.Strides = m.p.streamStrides.slice()
	m.final = true
	return m.err
}

func checkTarget(index int) {
	if index < 0 || index >= gpu.MaxRenderTargets {
		panic(fmt.Sprintf("pipeline: render target index %d out of range [0, %d)", index, gpu.MaxRenderTargets))
	}
}

func (m *graphicsManipulator) SetAlphaToCoverage(enabled bool) {
	m.live()
	m.desc.Blend.AlphaToCoverage = enabled
}

func (m *graphicsManipulator) SetIndependentBlend(enabled bool) {
	m.live()
	m.desc.Blend.IndependentBlend = enabled
}

func (m *graphicsManipulator) SetRenderTargetBlend(index int, blend gpu.RenderTargetBlend) {
	m.live()
	checkTarget(index)
	m.desc.Blend.RenderTargets[index] = blend
}

func (m *graphicsManipulator) SetSampleMask(mask uint32) {
	m.live()
	m.desc.SampleMask = mask
}

func (m *graphicsManipulator) SetFillMode(mode gpu.FillMode) {
	m.live()
	m.desc.Raster.Fill = mode
}

func (m *graphicsManipulator) SetCullMode(mode gpu.CullMode) {
	m.live()
	m.desc.Raster.Cull = mode
}

func (m *graphicsManipulator) SetFrontCounterClockwise(ccw bool) {
	m.live()
	m.desc.Raster.FrontCounterClockwise = ccw
}

func (m *graphicsManipulator) SetDepthBias(bias int32, clamp, slopeScaled float32) {
	m.live()
	m.desc.Raster.DepthBias = bias
	m.desc.Raster.DepthBiasClamp = clamp
	m.desc.Raster.SlopeScaledDepthBias = slopeScaled
}

func (m *graphicsManipulator) SetDepthClip(enabled bool) {
	m.live()
	m.desc.Raster.DepthClip = enabled
}

func (m *graphicsManipulator) SetMultisample(multisample, antialiasedLines bool) {
	m.live()
	m.desc.Raster.Multisample = multisample
	m.desc.Raster.AntialiasedLine = antialiasedLines
}

func (m *graphicsManipulator) SetConservativeRaster(enabled bool) {
	m.live()
	m.desc.Raster.ConservativeRaster = enabled
}

func (m *graphicsManipulator) SetDepth(enabled, write bool, fn gpu.CompareFunc) {
	m.live()
	m.desc.DepthStencil.DepthEnable = enabled
	m.desc.DepthStencil.DepthWrite = write
	m.desc.DepthStencil.DepthFunc = fn
}

func (m *graphicsManipulator) SetStencil(enabled bool, readMask, writeMask uint8, front, back gpu.StencilFace) {
	m.live()
	ds := &m.desc.DepthStencil
	ds.StencilEnable = enabled
	ds.StencilReadMask = readMask
	ds.StencilWriteMask = writeMask
	ds.Front = front
	ds.Back = back
}

func (m *graphicsManipulator) AddInputElement(e gpu.InputElement) {
	m.live()
	if !m.p.inputLayout.push(e) {
		m.overflow("input layout")
	}
}

func (m *graphicsManipulator) AddStreamOutputEntry(e gpu.StreamOutputEntry) {
	m.live()
	if !m.p.streamOutput.push(e) {
		m.overflow("stream output entries")
	}
}

func (m *graphicsManipulator) AddStreamOutputStride(stride uint32) {
	m.live()
	if !m.p.streamStrides.push(stride) {
		m.overflow("stream output strides")
	}
}

func (m *graphicsManipulator) SetRasterizedStream(stream uint32) {
	m.live()
	m.desc.StreamOutput.RasterizedStream = stream
}

func (m *graphicsManipulator) SetStripCut(cut gpu.StripCut) {
	m.live()
	m.desc.StripCut = cut
}

func (m *graphicsManipulator) SetTopology(t gpu.PrimitiveTopologyType) {
	m.live()
	m.desc.Topology = t
}

func (m *graphicsManipulator) SetRenderTargetFormat(index int, format gpu.Format) {
	m.live()
	checkTarget(index)
	m.desc.RTVFormats[index] = format
	m.desc.NumRenderTargets = max(m.desc.NumRenderTargets, uint32(index+1))
}

func (m *graphicsManipulator) SetDepthStencilFormat(format gpu.Format) {
	m.live()
	m.desc.DSVFormat = format
}

func (m *graphicsManipulator) SetSampleDesc(count, quality uint32) {
	m.live()
	m.desc.Sample = gpu.SampleDesc{Count: count, Quality: quality}
}
