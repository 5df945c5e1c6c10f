package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

// numStages is the size of the shader slot array, one per shader.Stage.
const numStages = int(shader.StageCompute) + 1

// pipeline is the implementation of the Pipeline interface.
// It owns the description, the shader slots, the auxiliary buffers and the native object pair.
type pipeline struct {
	key          string
	ctx          *gfx.Context
	pipelineType gpu.PipelineType
	technique    Technique
	logger       *slog.Logger

	slots [numStages]shader.Shader
	desc  gpu.Description

	inputLayout   auxBuffer[gpu.InputElement]
	streamOutput  auxBuffer[gpu.StreamOutputEntry]
	streamStrides auxBuffer[uint32]

	object        *gpu.Ref[gpu.PipelineObject]
	rootSignature *gpu.Ref[gpu.RootSignature]

	lastRevision uint64
	err          error
	blocked      bool
	rebuilds     int

	// unsupported holds a device's ErrUnsupported until the revision changes or the technique
	// asks for a rebuild.
	unsupported error
}

// Pipeline is a graphics or compute pipeline that rebuilds itself when its technique asks to or
// when one of its shaders changes on disk, while keeping the last good native objects bound.
type Pipeline interface {
	// Key returns the pipeline's unique key.
	//
	// Returns:
	//   - string: the key
	Key() string

	// Type returns whether this is a graphics or compute pipeline.
	//
	// Returns:
	//   - gpu.PipelineType: the pipeline class
	Type() gpu.PipelineType

	// Bind brings the pipeline up to date and binds it with its root signature.
	//
	// Parameters:
	//   - rec: the recorder to bind into
	//
	// Returns:
	//   - bool: true if a pipeline and root signature were bound, false if none exist or this
	//     call hit an environment failure reported by Err. A failed describe keeps binding the
	//     previous objects.
	Bind(rec gpu.Recorder) bool

	// Err returns the environment or technique error of the last Bind, nil if there was none.
	//
	// Returns:
	//   - error: wraps shader.ErrToolchain, gpu.ErrDevice or gpu.ErrUnsupported, or a technique error
	Err() error

	// Shader returns the shader bound to a stage slot by the last describe.
	//
	// Parameters:
	//   - stage: the stage slot
	//
	// Returns:
	//   - shader.Shader: the shader, or nil
	Shader(stage shader.Stage) shader.Shader

	// Description returns the description of the last describe, nil before the first Bind.
	//
	// Returns:
	//   - gpu.Description: *gpu.GraphicsDescription or *gpu.ComputeDescription
	Description() gpu.Description

	// Object returns the native pipeline object, nil when none is built.
	//
	// Returns:
	//   - gpu.PipelineObject: the native pipeline
	Object() gpu.PipelineObject

	// RootSignature returns the native root signature, nil when none is built.
	//
	// Returns:
	//   - gpu.RootSignature: the native root signature
	RootSignature() gpu.RootSignature

	// Rebuilds returns how many times native objects were created.
	//
	// Returns:
	//   - int: the rebuild count
	Rebuilds() int

	// Release drops the native objects. The next Bind describes and builds again.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline. No shader is loaded and no native object is created until the
// first Bind. It panics on a nil context or technique.
//
// Parameters:
//   - key: a unique identifier for the pipeline
//   - ctx: the device, revision source and shader environment
//   - pipelineType: graphics or compute
//   - technique: describes the pipeline
//   - opts: optional PipelineBuilderOption values
//
// Returns:
//   - Pipeline: the new pipeline
func NewPipeline(key string, ctx *gfx.Context, pipelineType gpu.PipelineType, technique Technique, opts ...PipelineBuilderOption) Pipeline {
	if ctx == nil || ctx.Device == nil || ctx.Revisions == nil {
		panic(fmt.Sprintf("pipeline: %s needs a context with a device and a revision source", key))
	}
	if technique == nil {
		panic(fmt.Sprintf("pipeline: %s needs a technique", key))
	}
	p := &pipeline{
		key:          key,
		ctx:          ctx,
		pipelineType: pipelineType,
		technique:    technique,
		logger:       ctx.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = ctx.Log()
	}
	p.logger = p.logger.With("pipeline", key)
	return p
}

func (p *pipeline) Key() string {
	return p.key
}

func (p *pipeline) Type() gpu.PipelineType {
	return p.pipelineType
}

func (p *pipeline) Err() error {
	return p.err
}

func (p *pipeline) Shader(stage shader.Stage) shader.Shader {
	if !stage.Valid() {
		return nil
	}
	return p.slots[stage]
}

func (p *pipeline) Description() gpu.Description {
	return p.desc
}

func (p *pipeline) Object() gpu.PipelineObject {
	if !p.object.Valid() {
		return nil
	}
	return p.object.Get()
}

func (p *pipeline) RootSignature() gpu.RootSignature {
	if !p.rootSignature.Valid() {
		return nil
	}
	return p.rootSignature.Get()
}

func (p *pipeline) Rebuilds() int {
	return p.rebuilds
}

func (p *pipeline) Release() {
	p.releaseObjects()
	p.unsupported = nil
}

func (p *pipeline) Bind(rec gpu.Recorder) bool {
	p.err, p.blocked = nil, false
	current := p.ctx.Revisions.CurrentRevision()
	dirChanged := current != p.lastRevision

	shouldRebuild := p.technique.ShouldRebuild()
	if p.unsupported != nil && !dirChanged && !shouldRebuild {
		p.err, p.blocked = p.unsupported, true
		return false
	}
	p.unsupported = nil

	needsDescribe := !p.object.Valid() || shouldRebuild
	described := false
	if needsDescribe {
		described = p.describe()
	}

	shaderChanged := false
	if dirChanged {
		for _, s := range p.populated() {
			if s.Bytecode() == nil {
				continue
			}
			changed, err := s.Refresh(current)
			if err != nil {
				p.fail(err)
				continue
			}
			if changed {
				p.ctx.Count().ShaderRecompiles.Add(1)
				p.logger.Info("shader reloaded", "shader", s.Key(), "path", s.SourcePath())
			}
			shaderChanged = shaderChanged || changed
		}
	}

	describeFailed := needsDescribe && !described
	if (described || shaderChanged) && !describeFailed && !p.blocked {
		p.rebuild()
	}

	p.lastRevision = current

	if p.blocked || !p.object.Valid() || !p.rootSignature.Valid() {
		return false
	}
	rec.SetPipelineState(p.object.Get())
	rec.SetRootSignature(p.pipelineType, p.rootSignature.Get())
	return true
}

// describe runs the technique over a fresh description. It reports whether a rebuild should follow.
// A failed describe restores the previous slots and description.
func (p *pipeline) describe() bool {
	prevSlots, prevDesc := p.slots, p.desc
	prevInput, prevSO, prevStrides := p.inputLayout, p.streamOutput, p.streamStrides

	p.slots = [numStages]shader.Shader{}
	p.inputLayout.reset()
	p.streamOutput.reset()
	p.streamStrides.reset()

	var m Manipulator
	switch p.pipelineType {
	case gpu.PipelineTypeCompute:
		p.desc = &gpu.ComputeDescription{Label: p.key}
		m = &computeManipulator{manipulator: manipulator{p: p}}
	default:
		desc := DefaultGraphicsDescription()
		desc.Label = p.key
		p.desc = desc
		m = &graphicsManipulator{manipulator: manipulator{p: p}, desc: desc}
	}

	if err := p.technique.Describe(m); err != nil {
		p.err = fmt.Errorf("pipeline %s: describe: %w", p.key, err)
		p.logger.Warn("pipeline describe failed", "err", err)
		p.slots, p.desc = prevSlots, prevDesc
		p.inputLayout, p.streamOutput, p.streamStrides = prevInput, prevSO, prevStrides
		return false
	}
	if err := m.Finalize(); err != nil {
		p.logger.Warn("pipeline description truncated", "err", err)
	}
	return true
}

// rebuild loads missing bytecode and, if every shader has bytecode, replaces the native objects.
func (p *pipeline) rebuild() {
	failed := false
	for _, s := range p.populated() {
		if s.Bytecode() != nil {
			continue
		}
		ok, err := s.Load()
		if err != nil {
			p.fail(err)
			failed = true
			continue
		}
		if !ok {
			p.logger.Debug("shader has no bytecode", "shader", s.Key(), "diagnostics", s.Diagnostics())
			failed = true
		}
	}
	p.wireBytecode()
	if failed {
		return
	}

	primary := p.primary()
	if primary == nil {
		p.logger.Debug("pipeline has no primary shader")
		return
	}

	p.releaseObjects()
	rs, err := p.ctx.Device.CreateRootSignature(primary.RootSignature())
	if err != nil {
		p.fail(fmt.Errorf("pipeline %s: create root signature: %w", p.key, err))
		return
	}
	p.setRootSignature(rs)
	obj, err := p.ctx.Device.CreatePipelineObject(p.desc)
	if err != nil {
		rs.Release()
		p.setRootSignature(nil)
		p.fail(fmt.Errorf("pipeline %s: create pipeline: %w", p.key, err))
		return
	}

	p.rootSignature = gpu.NewRef(rs)
	p.object = gpu.NewRef(obj)
	p.rebuilds++
	p.ctx.Count().PipelineRebuilds.Add(1)
	p.logger.Debug("pipeline built", "rebuilds", p.rebuilds)
}

func (p *pipeline) setRootSignature(rs gpu.RootSignature) {
	switch d := p.desc.(type) {
	case *gpu.GraphicsDescription:
		d.RootSignature = rs
	case *gpu.ComputeDescription:
		d.RootSignature = rs
	}
}

func (p *pipeline) wireBytecode() {
	code := func(stage shader.Stage) gpu.ShaderBytecode {
		s := p.slots[stage]
		if s == nil || s.Bytecode() == nil {
			return gpu.ShaderBytecode{}
		}
		return gpu.ShaderBytecode{Code: s.Bytecode(), EntryPoint: s.EntryPoint()}
	}
	switch d := p.desc.(type) {
	case *gpu.GraphicsDescription:
		d.VS = code(shader.StageVertex)
		d.HS = code(shader.StageHull)
		d.DS = code(shader.StageDomain)
		d.GS = code(shader.StageGeometry)
		d.PS = code(shader.StagePixel)
		d.MS = code(shader.StageMesh)
		d.AS = code(shader.StageAmplification)
	case *gpu.ComputeDescription:
		d.CS = code(shader.StageCompute)
	}
}

// primary returns the shader whose root-signature blob defines the pipeline layout:
// the vertex shader, else the mesh shader, for graphics and the compute shader for compute.
func (p *pipeline) primary() shader.Shader {
	if p.pipelineType == gpu.PipelineTypeCompute {
		return p.slots[shader.StageCompute]
	}
	if s := p.slots[shader.StageVertex]; s != nil {
		return s
	}
	return p.slots[shader.StageMesh]
}

func (p *pipeline) hasSlot(stage shader.Stage) bool {
	if !stage.Valid() {
		return false
	}
	if p.pipelineType == gpu.PipelineTypeCompute {
		return stage == shader.StageCompute
	}
	return stage != shader.StageCompute
}

func (p *pipeline) populated() []shader.Shader {
	out := make([]shader.Shader, 0, 2)
	for _, s := range p.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (p *pipeline) releaseObjects() {
	p.object.Release()
	p.rootSignature.Release()
	p.object = nil
	p.rootSignature = nil
}

// fail records an environment failure; Bind returns false for the rest of the call.
func (p *pipeline) fail(err error) {
	p.blocked = true
	if p.err == nil {
		p.err = err
	}
	switch {
	case errors.Is(err, gpu.ErrUnsupported):
		p.unsupported = err
		p.logger.Warn("pipeline unsupported", "err", err)
	default:
		p.logger.Error("pipeline failed", "err", err)
	}
}
