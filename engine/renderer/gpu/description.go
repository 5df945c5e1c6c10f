package gpu

// PipelineType identifies whether a pipeline rasterizes or dispatches.
type PipelineType int

const (
	// PipelineTypeGraphics is a rasterization pipeline with up to seven shader stages.
	PipelineTypeGraphics PipelineType = iota

	// PipelineTypeCompute is a single compute shader pipeline.
	PipelineTypeCompute
)

func (t PipelineType) String() string {
	if t == PipelineTypeCompute {
		return "compute"
	}
	return "graphics"
}

// UnmarshalText decodes "graphics" or "compute".
func (t *PipelineType) UnmarshalText(text []byte) error {
	return enumNames[PipelineType]{"graphics": PipelineTypeGraphics, "compute": PipelineTypeCompute}.parse("pipeline type", text, t)
}

// Description is the full, immutable input for CreatePipelineObject.
// It is implemented only by *GraphicsDescription and *ComputeDescription.
type Description interface {
	// PipelineType reports which variant the description is.
	PipelineType() PipelineType
	sealed()
}

// GraphicsDescription describes a rasterization pipeline.
type GraphicsDescription struct {
	Label         string
	RootSignature RootSignature

	VS ShaderBytecode
	PS ShaderBytecode
	DS ShaderBytecode
	HS ShaderBytecode
	GS ShaderBytecode
	MS ShaderBytecode
	AS ShaderBytecode

	StreamOutput     StreamOutput
	Blend            BlendState
	SampleMask       uint32
	Raster           RasterState
	DepthStencil     DepthStencilState
	InputLayout      []InputElement
	StripCut         StripCut
	Topology         PrimitiveTopologyType
	NumRenderTargets uint32
	RTVFormats       [MaxRenderTargets]Format
	DSVFormat        Format
	Sample           SampleDesc
}

// ComputeDescription describes a compute pipeline.
type ComputeDescription struct {
	Label         string
	RootSignature RootSignature
	CS            ShaderBytecode
}

func (*GraphicsDescription) PipelineType() PipelineType { return PipelineTypeGraphics }
func (*GraphicsDescription) sealed()                    {}

func (*ComputeDescription) PipelineType() PipelineType { return PipelineTypeCompute }
func (*ComputeDescription) sealed()                    {}

var (
	_ Description = &GraphicsDescription{}
	_ Description = &ComputeDescription{}
)
