package config

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

const maxRenderTargets = 8

// TechniqueSpec is a data-driven pipeline description.
type TechniqueSpec struct {
	Name    string           `toml:"name" yaml:"name"`
	Type    gpu.PipelineType `toml:"type" yaml:"type"`
	Shaders []ShaderSpec     `toml:"shader" yaml:"shaders"`

	// Blend is a preset applied to every render target: "opaque", "alpha", "additive" or "premultiplied".
	Blend         string                    `toml:"blend" yaml:"blend"`
	Cull          gpu.CullMode              `toml:"cull" yaml:"cull"`
	Fill          gpu.FillMode              `toml:"fill" yaml:"fill"`
	FrontCCW      bool                      `toml:"front_ccw" yaml:"front_ccw"`
	Topology      gpu.PrimitiveTopologyType `toml:"topology" yaml:"topology"`
	Depth         *DepthSpec                `toml:"depth" yaml:"depth"`
	RenderTargets []gpu.Format              `toml:"render_targets" yaml:"render_targets"`
	Inputs        []InputSpec               `toml:"input" yaml:"inputs"`
	StreamOutput  []StreamOutputSpec        `toml:"stream_output" yaml:"stream_output"`
	StreamStrides []uint32                  `toml:"stream_strides" yaml:"stream_strides"`
}

// ShaderSpec names one shader of a technique.
type ShaderSpec struct {
	Stage shader.Stage `toml:"stage" yaml:"stage"`
	Path  string       `toml:"path" yaml:"path"`
	Entry string       `toml:"entry" yaml:"entry"`
	// Profile defaults to the stage at the configured SPIR-V version.
	Profile string `toml:"profile" yaml:"profile"`
}

// DepthSpec enables the depth test. Compare defaults to less.
type DepthSpec struct {
	Compare *gpu.CompareFunc `toml:"compare" yaml:"compare"`
	Write   bool             `toml:"write" yaml:"write"`
	Format  gpu.Format       `toml:"format" yaml:"format"`
}

// InputSpec is one vertex input element. A missing offset appends the element after the previous one.
type InputSpec struct {
	Semantic string     `toml:"semantic" yaml:"semantic"`
	Index    uint32     `toml:"index" yaml:"index"`
	Format   gpu.Format `toml:"format" yaml:"format"`
	Slot     uint32     `toml:"slot" yaml:"slot"`
	Offset   *uint32    `toml:"offset" yaml:"offset"`
	Instance bool       `toml:"instance" yaml:"instance"`
	StepRate uint32     `toml:"step_rate" yaml:"step_rate"`
}

// StreamOutputSpec is one stream-output declaration entry.
type StreamOutputSpec struct {
	Stream   uint32 `toml:"stream" yaml:"stream"`
	Semantic string `toml:"semantic" yaml:"semantic"`
	Index    uint32 `toml:"index" yaml:"index"`
	Start    uint8  `toml:"start" yaml:"start"`
	Count    uint8  `toml:"count" yaml:"count"`
	Slot     uint8  `toml:"slot" yaml:"slot"`
}

var blendPresets = map[string]func() gpu.RenderTargetBlend{
	"opaque": func() gpu.RenderTargetBlend {
		return blendOf(gpu.BlendOne, gpu.BlendZero, gpu.BlendOne, gpu.BlendZero)
	},
	"alpha": func() gpu.RenderTargetBlend {
		return blendOf(gpu.BlendSrcAlpha, gpu.BlendInvSrcAlpha, gpu.BlendOne, gpu.BlendInvSrcAlpha)
	},
	"additive": func() gpu.RenderTargetBlend {
		return blendOf(gpu.BlendSrcAlpha, gpu.BlendOne, gpu.BlendOne, gpu.BlendOne)
	},
	"premultiplied": func() gpu.RenderTargetBlend {
		return blendOf(gpu.BlendOne, gpu.BlendInvSrcAlpha, gpu.BlendOne, gpu.BlendInvSrcAlpha)
	},
}

func blendOf(src, dst, srcAlpha, dstAlpha gpu.BlendFactor) gpu.RenderTargetBlend {
	return gpu.RenderTargetBlend{
		BlendEnable:    true,
		SrcBlend:       src,
		DestBlend:      dst,
		BlendOp:        gpu.BlendOpAdd,
		SrcBlendAlpha:  srcAlpha,
		DestBlendAlpha: dstAlpha,
		BlendOpAlpha:   gpu.BlendOpAdd,
		LogicOp:        gpu.LogicOpNoop,
		WriteMask:      gpu.ColorWriteAll,
	}
}

// Validate checks the technique for problems a decoder cannot catch.
//
// Returns:
//   - error: the first problem found
func (t *TechniqueSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("config: technique without a name")
	}
	if len(t.Shaders) == 0 {
		return fmt.Errorf("config: technique %q has no shaders", t.Name)
	}
	if t.Blend != "" {
		if _, ok := blendPresets[strings.ToLower(t.Blend)]; !ok {
			return fmt.Errorf("config: technique %q: unknown blend preset %q", t.Name, t.Blend)
		}
	}
	if len(t.RenderTargets) > maxRenderTargets {
		return fmt.Errorf("config: technique %q has %d render targets, at most %d", t.Name, len(t.RenderTargets), maxRenderTargets)
	}

	seen := make(map[shader.Stage]bool, len(t.Shaders))
	for _, s := range t.Shaders {
		if !s.Stage.Valid() {
			return fmt.Errorf("config: technique %q: invalid stage %s", t.Name, s.Stage)
		}
		if seen[s.Stage] {
			return fmt.Errorf("config: technique %q has two %s shaders", t.Name, s.Stage)
		}
		seen[s.Stage] = true
		if s.Path == "" {
			return fmt.Errorf("config: technique %q: %s shader has no path", t.Name, s.Stage)
		}
		if (s.Stage == shader.StageCompute) != (t.Type == gpu.PipelineTypeCompute) {
			return fmt.Errorf("config: technique %q: %s shader in a %s pipeline", t.Name, s.Stage, t.Type)
		}
		if s.Profile == "" {
			continue
		}
		p, err := shader.ParseProfile(s.Profile)
		if err != nil {
			return fmt.Errorf("config: technique %q: %w", t.Name, err)
		}
		if p.Stage != s.Stage {
			return fmt.Errorf("config: technique %q: profile %s does not match stage %s", t.Name, s.Profile, s.Stage)
		}
	}
	if t.Type == gpu.PipelineTypeGraphics && !seen[shader.StageVertex] {
		return fmt.Errorf("config: technique %q has no vertex shader", t.Name)
	}

	for _, in := range t.Inputs {
		if in.Format == gpu.FormatUnknown {
			return fmt.Errorf("config: technique %q: input %s has no format", t.Name, in.Semantic)
		}
	}
	if t.Depth != nil && t.Depth.Format != gpu.FormatUnknown && !t.Depth.Format.IsDepth() {
		return fmt.Errorf("config: technique %q: %s is not a depth format", t.Name, t.Depth.Format)
	}
	return nil
}

// BuildOption configures TechniqueSpec.Build.
type BuildOption func(*Technique)

// WithTargets supplies the formats and sample count of the targets the technique draws into.
// They apply where the technique does not name its own.
//
// Parameters:
//   - color: the render target format, usually Renderer.Format
//   - depth: the depth attachment format, FormatUnknown for none
//   - samples: the sample count, usually Renderer.SampleCount
//
// Returns:
//   - BuildOption: a function that applies the option
func WithTargets(color, depth gpu.Format, samples uint32) BuildOption {
	return func(t *Technique) {
		t.color, t.depth, t.samples = color, depth, samples
	}
}

// Technique is a pipeline.Technique built from a TechniqueSpec. It owns one shader per stage.
type Technique struct {
	spec    TechniqueSpec
	shaders []shader.Shader
	color   gpu.Format
	depth   gpu.Format
	samples uint32
}

var _ pipeline.Technique = &Technique{}

// Build validates the spec and creates its shaders in the context's shader environment.
//
// Parameters:
//   - ctx: the context; ctx.Shaders must carry a compiler
//   - opts: optional BuildOption values
//
// Returns:
//   - *Technique: the technique
//   - error: a validation error
func (t *TechniqueSpec) Build(ctx *gfx.Context, opts ...BuildOption) (*Technique, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil || ctx.Shaders == nil || ctx.Shaders.Compiler == nil {
		return nil, fmt.Errorf("config: technique %q needs a shader environment with a compiler", t.Name)
	}

	tech := &Technique{spec: *t}
	for _, opt := range opts {
		opt(tech)
	}
	for _, s := range t.Shaders {
		profile := s.Profile
		if profile == "" {
			profile = shader.ProfileFor(s.Stage, 1, 3)
		}
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		key := t.Name + "." + s.Stage.String()
		tech.shaders = append(tech.shaders, shader.NewShader(key, ctx.Shaders, s.Path, profile, entry,
			shader.WithLogger(ctx.Log())))
	}
	return tech, nil
}

// BuildTechniques builds every technique in the configuration.
//
// Parameters:
//   - ctx: the context
//   - opts: options passed to every TechniqueSpec.Build
//
// Returns:
//   - []*Technique: the techniques in file order
//   - error: the first build error
func (c *Config) BuildTechniques(ctx *gfx.Context, opts ...BuildOption) ([]*Technique, error) {
	techniques := make([]*Technique, 0, len(c.Techniques))
	for i := range c.Techniques {
		t, err := c.Techniques[i].Build(ctx, opts...)
		if err != nil {
			for _, built := range techniques {
				built.Release()
			}
			return nil, err
		}
		techniques = append(techniques, t)
	}
	return techniques, nil
}

func (t *Technique) Name() string {
	return t.spec.Name
}

func (t *Technique) Type() gpu.PipelineType {
	return t.spec.Type
}

// Shaders returns the technique's shaders in spec order.
func (t *Technique) Shaders() []shader.Shader {
	return t.shaders
}

// Release releases every shader.
func (t *Technique) Release() {
	for _, s := range t.shaders {
		s.Release()
	}
}

func (t *Technique) ShouldRebuild() bool {
	return false
}

func (t *Technique) Describe(m pipeline.Manipulator) error {
	if m.Type() != t.spec.Type {
		return fmt.Errorf("config: technique %q is %s, given a %s manipulator", t.spec.Name, t.spec.Type, m.Type())
	}
	for _, s := range t.shaders {
		m.BindShader(s.Stage(), s)
	}
	if gm, ok := m.(pipeline.GraphicsManipulator); ok {
		t.describeGraphics(gm)
	}
	return nil
}

func (t *Technique) describeGraphics(m pipeline.GraphicsManipulator) {
	s := &t.spec

	targets := s.RenderTargets
	if len(targets) == 0 && t.color != gpu.FormatUnknown {
		targets = []gpu.Format{t.color}
	}
	preset := blendPresets["opaque"]
	if s.Blend != "" {
		preset = blendPresets[strings.ToLower(s.Blend)]
	}
	for i, f := range targets {
		m.SetRenderTargetFormat(i, f)
		m.SetRenderTargetBlend(i, preset())
	}

	m.SetFillMode(s.Fill)
	m.SetCullMode(s.Cull)
	m.SetFrontCounterClockwise(s.FrontCCW)
	if s.Topology != gpu.TopologyTypeUndefined {
		m.SetTopology(s.Topology)
	}

	depthFormat := t.depth
	if s.Depth != nil {
		compare := gpu.CompareLess
		if s.Depth.Compare != nil {
			compare = *s.Depth.Compare
		}
		m.SetDepth(true, s.Depth.Write, compare)
		if s.Depth.Format != gpu.FormatUnknown {
			depthFormat = s.Depth.Format
		}
	} else {
		m.SetDepth(false, false, gpu.CompareAlways)
	}
	// The attachment format must match the pass even when the test is off.
	m.SetDepthStencilFormat(depthFormat)

	if t.samples > 0 {
		m.SetSampleDesc(t.samples, 0)
		m.SetMultisample(t.samples > 1, false)
	}

	for _, in := range s.Inputs {
		offset := gpu.AppendAligned
		if in.Offset != nil {
			offset = *in.Offset
		}
		m.AddInputElement(gpu.InputElement{
			SemanticName:      in.Semantic,
			SemanticIndex:     in.Index,
			Format:            in.Format,
			InputSlot:         in.Slot,
			AlignedByteOffset: offset,
			PerInstance:       in.Instance,
			InstanceStepRate:  in.StepRate,
		})
	}
	for _, so := range s.StreamOutput {
		m.AddStreamOutputEntry(gpu.StreamOutputEntry{
			Stream:         so.Stream,
			SemanticName:   so.Semantic,
			SemanticIndex:  so.Index,
			StartComponent: so.Start,
			ComponentCount: so.Count,
			OutputSlot:     so.Slot,
		})
	}
	for _, stride := range s.StreamStrides {
		m.AddStreamOutputStride(stride)
	}
}
