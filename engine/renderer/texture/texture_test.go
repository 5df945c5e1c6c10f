package texture_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestMipCount(t *testing.T) {
	assert.Equal(t, 1, texture.MipCount(1, 1))
	assert.Equal(t, 9, texture.MipCount(256, 256))
	assert.Equal(t, 9, texture.MipCount(256, 3))
	assert.Equal(t, 3, texture.MipCount(5, 4))
	assert.Equal(t, 0, texture.MipCount(0, 4))
}

func TestMipChainHalvesToOne(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	levels := texture.MipChain(solid(8, 2, red))

	require.Len(t, levels, 4)
	sizes := make([]image.Point, len(levels))
	for i, l := range levels {
		sizes[i] = l.Bounds().Size()
	}
	assert.Equal(t, []image.Point{{8, 2}, {4, 1}, {2, 1}, {1, 1}}, sizes)
	assert.Equal(t, red, levels[3].RGBAAt(0, 0), "filtering a solid image keeps its colour")
}

func TestDecodeRegisteredFormats(t *testing.T) {
	img := solid(3, 3, color.RGBA{G: 200, A: 255})

	var pngBuf, bmpBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	require.NoError(t, bmp.Encode(&bmpBuf, img))

	_, format, err := texture.Decode(&pngBuf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	decoded, format, err := texture.Decode(&bmpBuf)
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
	assert.Equal(t, image.Pt(3, 3), decoded.Bounds().Size())

	_, _, err = texture.Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestLoadStagesEveryMip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checker.png")
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, solid(4, 4, color.RGBA{B: 255, A: 255})))
	require.NoError(t, os.WriteFile(path, encoded.Bytes(), 0o644))

	device := &gputest.Device{}
	ctx := &gfx.Context{Device: device, Allocator: device}
	rec := gputest.NewRecorder()
	buf, err := upload.NewBuffer("staging", ctx, queue.NewQueue(gputest.NewQueue(true)), rec, 1<<16)
	require.NoError(t, err)

	tex, err := texture.Load(path, ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tex.MipLevels)
	assert.Equal(t, gpu.StateCopyDest, tex.State())
	assert.Equal(t, gpu.FormatRGBA8Unorm, tex.Format)

	require.Len(t, rec.TextureCopies, 3)
	for mip, c := range rec.TextureCopies {
		assert.Equal(t, uint32(mip), c.MipLevel)
		assert.Equal(t, uint32(256), c.RowPitch)
		assert.Same(t, tex.Resource(), c.Dst)
	}
	assert.Equal(t, uint32(1), rec.TextureCopies[2].Width)
	require.NoError(t, buf.ExecuteSync())
}

func TestLoadMissingFile(t *testing.T) {
	device := &gputest.Device{}
	ctx := &gfx.Context{Device: device, Allocator: device}
	buf, err := upload.NewBuffer("staging", ctx, queue.NewQueue(gputest.NewQueue(true)), gputest.NewRecorder(), 1024)
	require.NoError(t, err)

	_, err = texture.Load(filepath.Join(t.TempDir(), "missing.png"), ctx, buf)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
