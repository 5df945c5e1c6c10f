package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader/shadertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[shaders]
root = "shaders"
cache_dir = "cache"

[[technique]]
name = "tri"

[[technique.shader]]
stage = "vs"
path = "tri.wgsl"
entry = "vs_main"

[[technique.shader]]
stage = "ps"
path = "tri.wgsl"
entry = "fs_main"
`

func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	src := filepath.Join(dir, "shaders", "tri.wgsl")
	require.NoError(t, os.WriteFile(src, []byte("tri"), 0o644))
	cfg := filepath.Join(dir, "app.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o644))
	return cfg, src
}

func compilerFactory(c *shadertest.Compiler) newCompilerFunc {
	return func(*slog.Logger) shader.Compiler { return c }
}

func runCmd(t *testing.T, c *shadertest.Compiler, args ...string) (int, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut, compilerFactory(c))
	return code, out.String()
}

func TestWarmThenCached(t *testing.T) {
	cfg, _ := setup(t)

	c := &shadertest.Compiler{}
	code, out := runCmd(t, c, "-workers", "2", "warm", cfg)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "2 shaders: 2 compiled, 0 cached, 0 failed")
	assert.Len(t, c.Requests, 2)

	c = &shadertest.Compiler{}
	code, out = runCmd(t, c, "warm", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "2 shaders: 0 compiled, 2 cached, 0 failed")
	assert.Empty(t, c.Requests)
}

func TestWarmReportsFailures(t *testing.T) {
	cfg, _ := setup(t)

	c := &shadertest.Compiler{Fail: true, Diagnostics: "tri.wgsl:1: bad token"}
	code, out := runCmd(t, c, "warm", cfg)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "FAIL tri.vertex")
	assert.Contains(t, out, "bad token")
	assert.Contains(t, out, "2 failed")
}

func TestStatAndClean(t *testing.T) {
	cfg, src := setup(t)
	c := &shadertest.Compiler{}

	code, out := runCmd(t, c, "stat", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "0 cache entries")

	code, _ = runCmd(t, c, "warm", cfg)
	require.Equal(t, 0, code)
	code, out = runCmd(t, c, "stat", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "valid")
	assert.NotContains(t, out, "missing")
	assert.Contains(t, out, "2 cache entries")

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(src, later, later))
	_, out = runCmd(t, c, "stat", cfg)
	assert.Contains(t, out, "stale")

	code, out = runCmd(t, c, "clean", cfg)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "removed 6 files")
	_, out = runCmd(t, c, "stat", cfg)
	assert.Contains(t, out, "0 cache entries")
}

func TestUsage(t *testing.T) {
	c := &shadertest.Compiler{}
	code, _ := runCmd(t, c, "warm")
	assert.Equal(t, 2, code)

	cfg, _ := setup(t)
	code, _ = runCmd(t, c, "bake", cfg)
	assert.Equal(t, 2, code)

	code, _ = runCmd(t, c, "stat", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, 1, code)
}
