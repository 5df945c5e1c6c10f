package gpu

// MaxRenderTargets is the number of colour attachments a pipeline or render pass may use.
const MaxRenderTargets = 8

// BlendFactor selects a blend operand.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestColor
	BlendInvDestColor
	BlendDestAlpha
	BlendInvDestAlpha
	BlendSrcAlphaSat
	BlendBlendFactor
	BlendInvBlendFactor
)

// BlendOp combines the two blend operands.
type BlendOp int

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

// LogicOp is a bitwise render-target operation used instead of blending.
type LogicOp int

const (
	LogicOpClear LogicOp = iota
	LogicOpSet
	LogicOpCopy
	LogicOpCopyInverted
	LogicOpNoop
	LogicOpInvert
	LogicOpAnd
	LogicOpNand
	LogicOpOr
	LogicOpNor
	LogicOpXor
	LogicOpEquiv
)

// ColorWriteMask selects the channels written to a render target.
type ColorWriteMask uint8

const (
	ColorWriteRed ColorWriteMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha
	ColorWriteAll = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

// RenderTargetBlend is the blend configuration of one render target.
type RenderTargetBlend struct {
	BlendEnable    bool
	LogicOpEnable  bool
	SrcBlend       BlendFactor
	DestBlend      BlendFactor
	BlendOp        BlendOp
	SrcBlendAlpha  BlendFactor
	DestBlendAlpha BlendFactor
	BlendOpAlpha   BlendOp
	LogicOp        LogicOp
	WriteMask      ColorWriteMask
}

// BlendState is the output-merger blend configuration.
type BlendState struct {
	AlphaToCoverage  bool
	IndependentBlend bool
	RenderTargets    [MaxRenderTargets]RenderTargetBlend
}

// FillMode selects solid or wireframe rasterization.
type FillMode int

const (
	FillSolid FillMode = iota
	FillWireframe
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// RasterState is the rasterizer configuration.
type RasterState struct {
	Fill                  FillMode
	Cull                  CullMode
	FrontCounterClockwise bool
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClip             bool
	Multisample           bool
	AntialiasedLine       bool
	ForcedSampleCount     uint32
	ConservativeRaster    bool
}

// CompareFunc is a depth or stencil comparison.
type CompareFunc int

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// StencilOp is applied to the stencil buffer after a test.
type StencilOp int

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrSat
	StencilDecrSat
	StencilInvert
	StencilIncr
	StencilDecr
)

// StencilFace holds the stencil operations of one triangle face.
type StencilFace struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	Func        CompareFunc
}

// DepthStencilState is the depth/stencil test configuration.
type DepthStencilState struct {
	DepthEnable      bool
	DepthWrite       bool
	DepthFunc        CompareFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	Front            StencilFace
	Back             StencilFace
}

// AppendAligned places an input element directly after the previous one.
const AppendAligned uint32 = 0xffffffff

// InputElement describes one vertex attribute.
type InputElement struct {
	SemanticName      string
	SemanticIndex     uint32
	Format            Format
	InputSlot         uint32
	AlignedByteOffset uint32
	PerInstance       bool
	InstanceStepRate  uint32
}

// StreamOutputEntry declares one stream-output component range.
type StreamOutputEntry struct {
	Stream         uint32
	SemanticName   string
	SemanticIndex  uint32
	StartComponent uint8
	ComponentCount uint8
	OutputSlot     uint8
}

// StreamOutput is the stream-output declaration of a graphics pipeline.
type StreamOutput struct {
	Entries          []StreamOutputEntry
	Strides          []uint32
	RasterizedStream uint32
}

// StripCut selects the index value that restarts a strip.
type StripCut int

const (
	StripCutDisabled StripCut = iota
	StripCut16
	StripCut32
)

// PrimitiveTopologyType is the primitive class a graphics pipeline rasterizes.
type PrimitiveTopologyType int

const (
	TopologyTypeUndefined PrimitiveTopologyType = iota
	TopologyTypePoint
	TopologyTypeLine
	TopologyTypeTriangle
	TopologyTypePatch
)

// PrimitiveTopology is the exact primitive layout used at draw time.
type PrimitiveTopology int

const (
	TopologyUndefined PrimitiveTopology = iota
	TopologyPointList
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
)

// SampleDesc is the multisample configuration.
type SampleDesc struct {
	Count   uint32
	Quality uint32
}

// ShaderBytecode is compiled code for one pipeline stage.
type ShaderBytecode struct {
	Code       []byte
	EntryPoint string
}

// Empty reports whether no bytecode is attached.
func (b ShaderBytecode) Empty() bool {
	return len(b.Code) == 0
}
