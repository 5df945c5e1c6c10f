// Package texture decodes images, builds their mip chains and uploads them into GPU textures.
package texture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/bits"
	"os"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/upload"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Texture is an uploaded 2D texture with its full mip chain.
type Texture struct {
	*resource.TrackedResource
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    gpu.Format
}

// Decode reads a png, jpeg, bmp or webp image.
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - image.Image: the decoded image
//   - string: the format name reported by the decoder
//   - error: a decode error
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("texture: decode: %w", err)
	}
	return img, format, nil
}

// MipCount returns the number of levels in a full mip chain for a width x height image.
func MipCount(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return bits.Len(uint(max(width, height)))
}

// MipChain converts img to RGBA and returns it followed by successively halved levels down to 1x1,
// each filtered from the previous level with a bilinear kernel.
//
// Parameters:
//   - img: the base level
//
// Returns:
//   - []*image.RGBA: the levels, largest first
func MipChain(img image.Image) []*image.RGBA {
	b := img.Bounds()
	n := MipCount(b.Dx(), b.Dy())
	if n == 0 {
		return nil
	}
	base := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(base, base.Bounds(), img, b.Min, draw.Src)

	levels := make([]*image.RGBA, 0, n)
	levels = append(levels, base)
	for len(levels) < n {
		prev := levels[len(levels)-1]
		w := max(prev.Bounds().Dx()/2, 1)
		h := max(prev.Bounds().Dy()/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		levels = append(levels, next)
	}
	return levels
}

// Upload creates a texture for img through the context's allocator and stages every mip level in
// buf. The copies are recorded but not executed; the caller executes buf. The returned texture is
// tracked in the copy-destination state.
//
// Parameters:
//   - label: the texture's debug name
//   - ctx: supplies the allocator
//   - buf: the upload buffer the levels are staged in
//   - img: the base level
//
// Returns:
//   - *Texture: the texture
//   - error: an allocation or upload error
func Upload(label string, ctx *gfx.Context, buf *upload.Buffer, img image.Image) (*Texture, error) {
	levels := MipChain(img)
	if len(levels) == 0 {
		return nil, fmt.Errorf("texture: %s: empty image", label)
	}
	base := levels[0].Bounds()
	desc := gpu.TextureDesc{
		Label:     label,
		Width:     uint32(base.Dx()),
		Height:    uint32(base.Dy()),
		MipLevels: uint32(len(levels)),
		Format:    gpu.FormatRGBA8Unorm,
		Usage:     gpu.TextureUsageSampled | gpu.TextureUsageCopyDst,
	}
	native, err := ctx.Allocator.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("texture: %s: create: %w", label, err)
	}

	for mip, level := range levels {
		err := buf.CopyTextureData(upload.TextureData{
			Dst:      native,
			MipLevel: uint32(mip),
			Width:    uint32(level.Bounds().Dx()),
			Height:   uint32(level.Bounds().Dy()),
			Format:   desc.Format,
			Pixels:   level.Pix,
			RowPitch: uint32(level.Stride),
		})
		if err != nil {
			native.Release()
			return nil, fmt.Errorf("texture: %s: mip %d: %w", label, mip, err)
		}
	}
	ctx.Log().Debug("texture staged", "texture", label, "width", desc.Width, "height", desc.Height, "mips", desc.MipLevels)

	return &Texture{
		TrackedResource: resource.NewTrackedResource(native, gpu.StateCopyDest),
		Width:           desc.Width,
		Height:          desc.Height,
		MipLevels:       desc.MipLevels,
		Format:          desc.Format,
	}, nil
}

// Load decodes the image file at path and uploads it with Upload.
func Load(path string, ctx *gfx.Context, buf *upload.Buffer) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture: %s: %w", path, err)
	}
	return Upload(path, ctx, buf, img)
}
