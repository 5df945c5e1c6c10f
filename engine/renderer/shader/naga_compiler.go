package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// nagaCompiler compiles WGSL to SPIR-V in-process with naga.
type nagaCompiler struct {
	validateIR     bool
	validateOutput bool
	logger         *slog.Logger
}

var _ Compiler = &nagaCompiler{}

// NewNagaCompiler creates a Compiler backed by the pure-Go naga WGSL front end. The profile
// minor/major select the SPIR-V version; hull, domain, geometry, mesh and amplification profiles
// are rejected as invalid source since WGSL cannot express them.
//
// Parameters:
//   - opts: optional NagaCompilerBuilderOption values
//
// Returns:
//   - Compiler: the compiler
func NewNagaCompiler(opts ...NagaCompilerBuilderOption) Compiler {
	c := &nagaCompiler{validateIR: true}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.Or(c.logger)
	return c
}

var irStages = map[Stage]ir.ShaderStage{
	StageVertex:  ir.StageVertex,
	StagePixel:   ir.StageFragment,
	StageCompute: ir.StageCompute,
}

func (c *nagaCompiler) Compile(req CompileRequest) (result CompileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = CompileResult{}
			err = fmt.Errorf("%w: naga panicked compiling %s: %v", ErrToolchain, req.Path, r)
		}
	}()

	fail := func(format string, args ...any) (CompileResult, error) {
		msg := fmt.Sprintf("%s: ", req.Path) + fmt.Sprintf(format, args...)
		return CompileResult{Diagnostics: msg, Includes: result.Includes}, nil
	}

	profile, perr := ParseProfile(req.Profile)
	if perr != nil {
		return fail("%v", perr)
	}
	stage, ok := irStages[profile.Stage]
	if !ok {
		return fail("%s shaders have no WGSL equivalent", profile.Stage)
	}

	source, includes, perr := NewPreProcessor(req.IncludeDirs, req.Defines).Process(req.Path, req.Source)
	if perr != nil {
		return fail("%v", perr)
	}
	result.Includes = includes

	ast, perr := naga.Parse(source)
	if perr != nil {
		return fail("%v", perr)
	}
	module, perr := naga.LowerWithSource(ast, source)
	if perr != nil {
		return fail("%v", perr)
	}
	if c.validateIR {
		issues, verr := naga.Validate(module)
		if verr != nil {
			return fail("%v", verr)
		}
		if len(issues) > 0 {
			msgs := make([]string, len(issues))
			for i, issue := range issues {
				msgs[i] = issue.Error()
			}
			return fail("%s", strings.Join(msgs, "\n"))
		}
	}
	if err := checkEntryPoint(module, req.EntryPoint, stage); err != nil {
		return fail("%v", err)
	}

	code, gerr := naga.GenerateSPIRV(module, spirv.Options{
		Version:    spirv.Version{Major: profile.Major, Minor: profile.Minor},
		Debug:      req.Debug,
		Validation: c.validateOutput,
	})
	if gerr != nil {
		return fail("%v", gerr)
	}

	pipeline := gpu.PipelineTypeGraphics
	if profile.Stage == StageCompute {
		pipeline = gpu.PipelineTypeCompute
	}
	layout, merr := reflectLayout(module, ast, pipeline).MarshalBinary()
	if merr != nil {
		return fail("%v", merr)
	}

	c.logger.Debug("shader compiled", "path", req.Path, "entry", req.EntryPoint, "profile", req.Profile, "bytes", len(code))
	return CompileResult{
		Bytecode:      code,
		RootSignature: layout,
		Success:       true,
		Includes:      includes,
	}, nil
}

var errNoEntryPoint = errors.New("entry point not found")

func checkEntryPoint(module *ir.Module, name string, stage ir.ShaderStage) error {
	for _, ep := range module.EntryPoints {
		if ep.Name != name {
			continue
		}
		if ep.Stage != stage {
			return fmt.Errorf("entry point %q is not a %s entry point", name, stageName(stage))
		}
		return nil
	}
	return fmt.Errorf("%w: %q", errNoEntryPoint, name)
}

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "@vertex"
	case ir.StageFragment:
		return "@fragment"
	default:
		return "@compute"
	}
}
