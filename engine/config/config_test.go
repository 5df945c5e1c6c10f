package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/dirwatch"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader/shadertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlConfig = `
[window]
title = "demo"
width = 800
height = 600
min_width = 640
min_height = 480

[renderer]
present_mode = "uncapped"
msaa = "4x"
upload_mib = 8

[shaders]
root = "assets/shaders"
cache_dir = "cache"
include_dirs = ["common"]
version = "1_2"
defines = { LIGHTS = "4" }

[log]
level = "debug"

[[technique]]
name = "triangle"
blend = "alpha"
cull = "back"
topology = "triangle"
render_targets = ["rgba8unorm"]

[technique.depth]
compare = "less-equal"
write = true

[[technique.shader]]
stage = "vertex"
path = "triangle.wgsl"
entry = "vs_main"

[[technique.shader]]
stage = "fragment"
path = "triangle.wgsl"
entry = "fs_main"
profile = "ps_1_3"

[[technique.input]]
semantic = "POSITION"
format = "rgb32float"

[[technique.input]]
semantic = "COLOR"
format = "rgba32float"
offset = 16

[[technique]]
name = "particles"
type = "compute"

[[technique.shader]]
stage = "cs"
path = "particles.wgsl"
`

const yamlConfig = `
window:
  title: demo
renderer:
  present_mode: vsync
  msaa: "off"
shaders:
  root: shaders
  cache_dir: /tmp/oxy-cache
techniques:
  - name: fullscreen
    cull: none
    shaders:
      - stage: vs
        path: fullscreen.wgsl
        entry: vs_main
      - stage: ps
        path: fullscreen.wgsl
        entry: fs_main
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "app.toml", tomlConfig)
	dir := filepath.Dir(path)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", c.Window.Title)
	assert.Equal(t, 800, c.Window.Width)
	assert.Equal(t, 640, c.Window.MinWidth)
	assert.Equal(t, 480, c.Window.MinHeight)
	assert.Equal(t, Default().Window.MaxWidth, c.Window.MaxWidth, "unset limits keep their defaults")
	assert.Equal(t, renderer.PresentModeUncapped, c.Renderer.PresentMode)
	assert.Equal(t, renderer.MSAA4x, c.Renderer.MSAA)
	assert.Equal(t, uint64(8<<20), c.UploadSize())
	assert.Equal(t, gpu.FormatD32Float, c.Renderer.DepthFormat)
	assert.Equal(t, "debug", c.Log.Level)

	root := filepath.Join(dir, "assets", "shaders")
	assert.Equal(t, root, c.Shaders.Root)
	assert.Equal(t, filepath.Join(dir, "cache"), c.Shaders.CacheDir)
	assert.Equal(t, []string{filepath.Join(root, "common")}, c.Shaders.IncludeDirs)
	assert.Equal(t, map[string]string{"LIGHTS": "4"}, c.Shaders.Defines)

	require.Len(t, c.Techniques, 2)
	tri := c.Technique("triangle")
	require.NotNil(t, tri)
	assert.Equal(t, gpu.PipelineTypeGraphics, tri.Type)
	assert.Equal(t, gpu.CullBack, tri.Cull)
	require.NotNil(t, tri.Depth)
	require.NotNil(t, tri.Depth.Compare)
	assert.Equal(t, gpu.CompareLessEqual, *tri.Depth.Compare)
	assert.True(t, tri.Depth.Write)

	require.Len(t, tri.Shaders, 2)
	assert.Equal(t, shader.StageVertex, tri.Shaders[0].Stage)
	assert.Equal(t, filepath.Join(root, "triangle.wgsl"), tri.Shaders[0].Path)
	assert.Equal(t, "vs_1_2", tri.Shaders[0].Profile, "profile filled from the shader version")
	assert.Equal(t, shader.StagePixel, tri.Shaders[1].Stage)
	assert.Equal(t, "ps_1_3", tri.Shaders[1].Profile, "explicit profile kept")

	require.Len(t, tri.Inputs, 2)
	assert.Nil(t, tri.Inputs[0].Offset)
	require.NotNil(t, tri.Inputs[1].Offset)
	assert.Equal(t, uint32(16), *tri.Inputs[1].Offset)

	particles := c.Technique("particles")
	require.NotNil(t, particles)
	assert.Equal(t, gpu.PipelineTypeCompute, particles.Type)
	assert.Equal(t, "cs_1_2", particles.Shaders[0].Profile)

	assert.Nil(t, c.Technique("missing"))
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "app.yml", yamlConfig)

	c, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "demo", c.Window.Title)
	assert.Equal(t, def.Window.Width, c.Window.Width)
	assert.Equal(t, def.Window.Height, c.Window.Height)
	assert.Equal(t, renderer.MSAAOff, c.Renderer.MSAA)
	assert.Equal(t, def.Renderer.UploadMiB, c.Renderer.UploadMiB)
	assert.Equal(t, "/tmp/oxy-cache", c.Shaders.CacheDir)
	assert.True(t, c.Shaders.Watch)

	require.Len(t, c.Techniques, 1)
	fs := c.Techniques[0]
	assert.Equal(t, "vs_1_3", fs.Shaders[0].Profile)
	assert.Equal(t, "ps_1_3", fs.Shaders[1].Profile)
}

func TestReadEmptyGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []DecoderFunc{tomlDecoder, yamlDecoder} {
		c, err := Read(strings.NewReader(""), f, dir)
		require.NoError(t, err)
		assert.Equal(t, "oxy-reload", c.Window.Title)
		assert.Equal(t, filepath.Join(dir, "shaders"), c.Shaders.Root)
		assert.Empty(t, c.Techniques)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "app.json", "{}"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "unknown.toml", "[window]\ncolour = \"red\"\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Load(writeConfig(t, "unknown.yaml", "window:\n  colour: red\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "msaa.toml", "[renderer]\nmsaa = \"3x\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "depth.toml", "[renderer]\ndepth_format = \"rgba8unorm\"\n"))
	assert.ErrorContains(t, err, "not a depth format")

	_, err = Load(writeConfig(t, "version.toml", "[shaders]\nversion = \"1\"\n"))
	assert.ErrorContains(t, err, "malformed shader version")

	_, err = Load(writeConfig(t, "small.toml", "[window]\nwidth = 320\nheight = 240\n"))
	assert.ErrorContains(t, err, "outside limits")

	_, err = Load(writeConfig(t, "limits.yaml", "window:\n  min_width: 900\n  max_width: 800\n"))
	assert.ErrorContains(t, err, "window limits")
}

func TestParseVersion(t *testing.T) {
	major, minor, err := ParseVersion("1.5")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), major)
	assert.Equal(t, uint8(5), minor)

	_, _, err = ParseVersion("1.x")
	assert.Error(t, err)
	_, _, err = ParseVersion("")
	assert.Error(t, err)
}

func TestTechniqueValidate(t *testing.T) {
	vs := ShaderSpec{Stage: shader.StageVertex, Path: "a.wgsl"}
	ps := ShaderSpec{Stage: shader.StagePixel, Path: "a.wgsl"}
	cs := ShaderSpec{Stage: shader.StageCompute, Path: "c.wgsl"}

	cases := map[string]struct {
		spec TechniqueSpec
		want string
	}{
		"ok":             {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{vs, ps}}, ""},
		"no name":        {TechniqueSpec{Shaders: []ShaderSpec{vs}}, "without a name"},
		"no shaders":     {TechniqueSpec{Name: "t"}, "no shaders"},
		"no vertex":      {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{ps}}, "no vertex shader"},
		"duplicate":      {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{vs, vs}}, "two vertex shaders"},
		"compute stage":  {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{vs, cs}}, "compute shader in a graphics pipeline"},
		"compute ok":     {TechniqueSpec{Name: "t", Type: gpu.PipelineTypeCompute, Shaders: []ShaderSpec{cs}}, ""},
		"blend":          {TechniqueSpec{Name: "t", Blend: "glow", Shaders: []ShaderSpec{vs}}, "unknown blend preset"},
		"profile stage":  {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{{Stage: shader.StageVertex, Path: "a", Profile: "ps_1_3"}}}, "does not match"},
		"bad profile":    {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{{Stage: shader.StageVertex, Path: "a", Profile: "vs1"}}}, "malformed profile"},
		"no path":        {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{{Stage: shader.StageVertex}}}, "no path"},
		"input format":   {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{vs}, Inputs: []InputSpec{{Semantic: "POSITION"}}}, "no format"},
		"depth format":   {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{vs}, Depth: &DepthSpec{Format: gpu.FormatR32Float}}, "not a depth format"},
		"too many":       {TechniqueSpec{Name: "t", Shaders: []ShaderSpec{vs}, RenderTargets: make([]gpu.Format, 9)}, "at most 8"},
		"compute vertex": {TechniqueSpec{Name: "t", Type: gpu.PipelineTypeCompute, Shaders: []ShaderSpec{vs}}, "vertex shader in a compute pipeline"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestConfigValidateDuplicateTechnique(t *testing.T) {
	c := Default()
	spec := TechniqueSpec{Name: "t", Shaders: []ShaderSpec{{Stage: shader.StageVertex, Path: "a.wgsl"}}}
	c.Techniques = []TechniqueSpec{spec, spec}
	assert.ErrorContains(t, c.Validate(), "defined twice")
}

func newContext(t *testing.T, root string) (*gfx.Context, *gputest.Device) {
	t.Helper()
	cache, err := shader.NewCache(t.TempDir(), root)
	require.NoError(t, err)
	device := &gputest.Device{}
	return &gfx.Context{
		Device:    device,
		Revisions: &dirwatch.Counter{},
		Shaders:   &shader.Environment{Compiler: &shadertest.Compiler{}, Cache: cache},
		Counters:  &gfx.Counters{},
	}, device
}

func TestBuildDescribesGraphicsPipeline(t *testing.T) {
	path := writeConfig(t, "app.toml", tomlConfig)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(c.Shaders.Root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(c.Shaders.Root, "triangle.wgsl"), []byte("tri"), 0o644))

	ctx, device := newContext(t, c.Shaders.Root)
	tech, err := c.Technique("triangle").Build(ctx, WithTargets(gpu.FormatBGRA8Unorm, gpu.FormatD32Float, 4))
	require.NoError(t, err)
	assert.Equal(t, "triangle", tech.Name())
	require.Len(t, tech.Shaders(), 2)
	assert.Equal(t, "triangle.vertex", tech.Shaders()[0].Key())
	assert.Equal(t, "fs_main", tech.Shaders()[1].EntryPoint())

	p := pipeline.NewPipeline("triangle", ctx, tech.Type(), tech)
	defer p.Release()
	require.True(t, p.Bind(gputest.NewRecorder()))
	require.Len(t, device.Pipelines, 1)

	d := p.Description().(*gpu.GraphicsDescription)
	assert.Equal(t, uint32(1), d.NumRenderTargets)
	assert.Equal(t, gpu.FormatRGBA8Unorm, d.RTVFormats[0], "spec formats win over the renderer's")
	assert.Equal(t, gpu.BlendSrcAlpha, d.Blend.RenderTargets[0].SrcBlend)
	assert.Equal(t, gpu.BlendInvSrcAlpha, d.Blend.RenderTargets[0].DestBlend)
	assert.Equal(t, gpu.CullBack, d.Raster.Cull)
	assert.True(t, d.DepthStencil.DepthEnable)
	assert.True(t, d.DepthStencil.DepthWrite)
	assert.Equal(t, gpu.CompareLessEqual, d.DepthStencil.DepthFunc)
	assert.Equal(t, gpu.FormatD32Float, d.DSVFormat)
	assert.Equal(t, uint32(4), d.Sample.Count)

	require.Len(t, d.InputLayout, 2)
	assert.Equal(t, gpu.AppendAligned, d.InputLayout[0].AlignedByteOffset)
	assert.Equal(t, uint32(16), d.InputLayout[1].AlignedByteOffset)
	assert.Equal(t, "vs_main", d.VS.EntryPoint)
	assert.Equal(t, "fs_main", d.PS.EntryPoint)
}

func TestBuildDefaultsToRendererTargets(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "fs.wgsl"), []byte("fs"), 0o644))
	ctx, _ := newContext(t, root)

	spec := TechniqueSpec{
		Name: "fullscreen",
		Shaders: []ShaderSpec{
			{Stage: shader.StageVertex, Path: filepath.Join(root, "fs.wgsl"), Entry: "vs_main"},
			{Stage: shader.StagePixel, Path: filepath.Join(root, "fs.wgsl"), Entry: "fs_main"},
		},
	}
	tech, err := spec.Build(ctx, WithTargets(gpu.FormatBGRA8Unorm, gpu.FormatD32Float, 1))
	require.NoError(t, err)

	p := pipeline.NewPipeline("fullscreen", ctx, tech.Type(), tech)
	defer p.Release()
	require.True(t, p.Bind(gputest.NewRecorder()))

	d := p.Description().(*gpu.GraphicsDescription)
	assert.Equal(t, gpu.FormatBGRA8Unorm, d.RTVFormats[0])
	assert.Equal(t, gpu.BlendOne, d.Blend.RenderTargets[0].SrcBlend)
	assert.False(t, d.DepthStencil.DepthEnable)
	assert.Equal(t, gpu.FormatD32Float, d.DSVFormat, "attachment format set with the test off")
	assert.Equal(t, gpu.TopologyTypeTriangle, d.Topology)
	assert.Equal(t, "vs_1_3", tech.Shaders()[0].Profile().String())
}

func TestBuildCompute(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sim.wgsl"), []byte("sim"), 0o644))
	ctx, _ := newContext(t, root)

	spec := TechniqueSpec{
		Name:    "sim",
		Type:    gpu.PipelineTypeCompute,
		Shaders: []ShaderSpec{{Stage: shader.StageCompute, Path: filepath.Join(root, "sim.wgsl")}},
	}
	tech, err := spec.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", tech.Shaders()[0].EntryPoint())

	p := pipeline.NewPipeline("sim", ctx, tech.Type(), tech)
	defer p.Release()
	require.True(t, p.Bind(gputest.NewRecorder()))
	_, ok := p.Description().(*gpu.ComputeDescription)
	assert.True(t, ok)

	var wrong pipeline.Technique = tech
	gp := pipeline.NewPipeline("sim-as-graphics", ctx, gpu.PipelineTypeGraphics, wrong)
	defer gp.Release()
	assert.False(t, gp.Bind(gputest.NewRecorder()))
	assert.ErrorContains(t, gp.Err(), "given a graphics manipulator")
}

func TestBuildNeedsEnvironment(t *testing.T) {
	spec := TechniqueSpec{Name: "t", Shaders: []ShaderSpec{{Stage: shader.StageVertex, Path: "a.wgsl"}}}
	_, err := spec.Build(&gfx.Context{})
	assert.ErrorContains(t, err, "shader environment")

	_, err = (&TechniqueSpec{}).Build(&gfx.Context{})
	assert.ErrorContains(t, err, "without a name")
}

func TestBuildTechniques(t *testing.T) {
	path := writeConfig(t, "app.toml", tomlConfig)
	c, err := Load(path)
	require.NoError(t, err)
	ctx, _ := newContext(t, c.Shaders.Root)

	techniques, err := c.BuildTechniques(ctx)
	require.NoError(t, err)
	require.Len(t, techniques, 2)
	assert.Equal(t, "triangle", techniques[0].Name())
	assert.Equal(t, gpu.PipelineTypeCompute, techniques[1].Type())
}

func TestNewShaderEnvironment(t *testing.T) {
	c := Default()
	c.Shaders.CacheDir = filepath.Join(t.TempDir(), "cache")
	c.Shaders.Root = t.TempDir()
	c.Shaders.Defines = map[string]string{"A": "1"}

	env, err := c.NewShaderEnvironment(&shadertest.Compiler{})
	require.NoError(t, err)
	assert.Equal(t, c.Shaders.CacheDir, env.Cache.Dir())
	assert.Equal(t, "1", env.Defines["A"])
}
