package shader_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestPreProcessorIncludes(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(t.TempDir(), "lib")
	write(t, filepath.Join(root, "local.wgsl"), "struct Local { a: f32, }")
	write(t, filepath.Join(lib, "shared.wgsl"), "#include \"nested.wgsl\"\nstruct Shared { b: f32, }")
	write(t, filepath.Join(lib, "nested.wgsl"), "struct Nested { c: f32, }")

	main := filepath.Join(root, "main.wgsl")
	src := "#include \"local.wgsl\"\n#include \"shared.wgsl\"\n#include \"local.wgsl\"\nfn f() {}\n"

	out, includes, err := shader.NewPreProcessor([]string{lib}, nil).Process(main, []byte(src))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct Local"), "repeated include is spliced once")
	assert.Contains(t, out, "struct Shared")
	assert.Contains(t, out, "struct Nested")
	assert.Contains(t, out, "// #include \"local.wgsl\"")
	assert.Len(t, includes, 3)
	for _, inc := range includes {
		assert.True(t, filepath.IsAbs(inc))
	}
}

func TestPreProcessorIncludeCycle(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.wgsl"), "#include \"b.wgsl\"\nstruct A { x: f32, }")
	write(t, filepath.Join(root, "b.wgsl"), "#include \"a.wgsl\"\nstruct B { y: f32, }")

	path := filepath.Join(root, "a.wgsl")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out, _, err := shader.NewPreProcessor(nil, nil).Process(path, data)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct A"))
	assert.Equal(t, 1, strings.Count(out, "struct B"))
}

func TestPreProcessorMissingInclude(t *testing.T) {
	_, _, err := shader.NewPreProcessor(nil, nil).Process(filepath.Join(t.TempDir(), "m.wgsl"), []byte("#include \"nope.wgsl\"\n"))
	assert.ErrorIs(t, err, shader.ErrInclude)
}

func TestPreProcessorDefines(t *testing.T) {
	src := "#define WORKGROUP 64\nconst n = MAX_LIGHTS;\n@compute @workgroup_size(WORKGROUP)\nfn MAX_LIGHTS_fn() {}\n"
	out, _, err := shader.NewPreProcessor(nil, map[string]string{"MAX_LIGHTS": "16u"}).Process("k.wgsl", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, out, "const n = 16u;")
	assert.Contains(t, out, "@workgroup_size(64)")
	assert.Contains(t, out, "fn MAX_LIGHTS_fn()", "only whole words are replaced")
}

func TestPreProcessorConditionals(t *testing.T) {
	src := strings.Join([]string{
		"#ifdef SHADOWS",
		"const shadows = true;",
		"#ifndef SOFT",
		"const hard = true;",
		"#endif",
		"#else",
		"const shadows = false;",
		"#endif",
	}, "\n")

	out, _, err := shader.NewPreProcessor(nil, map[string]string{"SHADOWS": ""}).Process("c.wgsl", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, out, "\nconst shadows = true;")
	assert.Contains(t, out, "\nconst hard = true;")
	assert.NotContains(t, out, "\nconst shadows = false;")

	out, _, err = shader.NewPreProcessor(nil, nil).Process("c.wgsl", []byte(src))
	require.NoError(t, err)
	assert.NotContains(t, out, "\nconst shadows = true;")
	assert.NotContains(t, out, "\nconst hard = true;")
	assert.Contains(t, out, "\nconst shadows = false;")
}

func TestPreProcessorUnbalanced(t *testing.T) {
	pp := shader.NewPreProcessor(nil, nil)
	_, _, err := pp.Process("u.wgsl", []byte("#ifdef X\n"))
	assert.Error(t, err)
	_, _, err = pp.Process("u.wgsl", []byte("#endif\n"))
	assert.Error(t, err)
}

func TestScanIncludes(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "inc", "common.wgsl"), "")
	main := filepath.Join(root, "main.wgsl")
	write(t, main, "#include \"inc/common.wgsl\"\n")

	includes, err := shader.ScanIncludes(main, nil, nil)
	require.NoError(t, err)
	require.Len(t, includes, 1)
	assert.Equal(t, "common.wgsl", filepath.Base(includes[0]))
}
