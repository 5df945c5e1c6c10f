package shader_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTime(t *testing.T) {
	assert.Equal(t, uint64(116444736000000000), shader.FileTime(time.Unix(0, 0)))
	assert.Equal(t, uint64(116444736000000000+10_000_000), shader.FileTime(time.Unix(1, 0)))
	assert.Zero(t, shader.FileTime(time.Time{}))
}

func TestCacheRoundTrip(t *testing.T) {
	root := t.TempDir()
	dir := t.TempDir()
	cache, err := shader.NewCache(dir, root)
	require.NoError(t, err)

	src := filepath.Join(root, "post", "blur.wgsl")
	_, err = cache.ReadTime(src, "cs_main")
	assert.ErrorIs(t, err, shader.ErrCacheMiss)

	stamp := uint64(0x0123456789abcdef)
	require.NoError(t, cache.Write(src, "cs_main", stamp, []byte{1, 2, 3}, []byte{9}))

	got, err := cache.ReadTime(src, "cs_main")
	require.NoError(t, err)
	assert.Equal(t, stamp, got)

	code, rs, err := cache.Read(src, "cs_main")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, code)
	assert.Equal(t, []byte{9}, rs)

	meta, err := os.ReadFile(filepath.Join(dir, "post", "blur.cs_main.lci"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01}, meta)
	assert.FileExists(t, filepath.Join(dir, "post", "blur.cs_main.spv"))
	assert.FileExists(t, filepath.Join(dir, "post", "blur.cs_main.rs"))
}

func TestCacheEntriesPerEntryPoint(t *testing.T) {
	root := t.TempDir()
	cache, err := shader.NewCache(t.TempDir(), root)
	require.NoError(t, err)
	src := filepath.Join(root, "lit.wgsl")

	require.NoError(t, cache.Write(src, "vs_main", 1, []byte{1}, nil))
	require.NoError(t, cache.Write(src, "ps_main", 2, []byte{2}, nil))

	vs, err := cache.ReadTime(src, "vs_main")
	require.NoError(t, err)
	ps, err := cache.ReadTime(src, "ps_main")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), vs)
	assert.Equal(t, uint64(2), ps)

	n, err := cache.Entries()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCacheOutsideRootIsSanitized(t *testing.T) {
	dir := t.TempDir()
	cache, err := shader.NewCache(dir, t.TempDir())
	require.NoError(t, err)

	elsewhere := filepath.Join(t.TempDir(), "water.wgsl")
	require.NoError(t, cache.Write(elsewhere, "main", 7, []byte{1}, nil))

	got, err := cache.ReadTime(elsewhere, "main")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got)

	n, err := cache.Entries()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCacheCorruptMetadataIsMiss(t *testing.T) {
	root := t.TempDir()
	dir := t.TempDir()
	cache, err := shader.NewCache(dir, root)
	require.NoError(t, err)
	src := filepath.Join(root, "a.wgsl")
	require.NoError(t, cache.Write(src, "main", 5, []byte{1}, nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.main.lci"), []byte{1, 2, 3}, 0o644))

	_, err = cache.ReadTime(src, "main")
	assert.ErrorIs(t, err, shader.ErrCacheMiss)
}

func TestCacheClean(t *testing.T) {
	root := t.TempDir()
	dir := t.TempDir()
	cache, err := shader.NewCache(dir, root)
	require.NoError(t, err)
	require.NoError(t, cache.Write(filepath.Join(root, "a.wgsl"), "main", 1, []byte{1}, []byte{2}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	removed, err := cache.Clean()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	removed, err = (&shader.Cache{}).Clean()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
