package gpu

// Format identifies a texel or vertex-attribute layout.
type Format int

const (
	FormatUnknown Format = iota
	FormatR8Unorm
	FormatRG8Unorm
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatR16Float
	FormatRG16Float
	FormatRGBA16Float
	FormatR32Float
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
	FormatR32Uint
	FormatRG32Uint
	FormatRGB32Uint
	FormatRGBA32Uint
	FormatR32Sint
	FormatD16Unorm
	FormatD24UnormS8Uint
	FormatD32Float
	FormatD32FloatS8Uint
)

var formatNames = map[Format]string{
	FormatUnknown:        "unknown",
	FormatR8Unorm:        "r8unorm",
	FormatRG8Unorm:       "rg8unorm",
	FormatRGBA8Unorm:     "rgba8unorm",
	FormatRGBA8UnormSrgb: "rgba8unorm-srgb",
	FormatBGRA8Unorm:     "bgra8unorm",
	FormatBGRA8UnormSrgb: "bgra8unorm-srgb",
	FormatR16Float:       "r16float",
	FormatRG16Float:      "rg16float",
	FormatRGBA16Float:    "rgba16float",
	FormatR32Float:       "r32float",
	FormatRG32Float:      "rg32float",
	FormatRGB32Float:     "rgb32float",
	FormatRGBA32Float:    "rgba32float",
	FormatR32Uint:        "r32uint",
	FormatRG32Uint:       "rg32uint",
	FormatRGB32Uint:      "rgb32uint",
	FormatRGBA32Uint:     "rgba32uint",
	FormatR32Sint:        "r32sint",
	FormatD16Unorm:       "depth16unorm",
	FormatD24UnormS8Uint: "depth24plus-stencil8",
	FormatD32Float:       "depth32float",
	FormatD32FloatS8Uint: "depth32float-stencil8",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "invalid"
}

// ParseFormat resolves a format name as printed by String.
//
// Parameters:
//   - name: the format name, e.g. "rgba8unorm"
//
// Returns:
//   - Format: the matching format
//   - bool: false when the name is unknown
func ParseFormat(name string) (Format, bool) {
	for f, n := range formatNames {
		if n == name {
			return f, true
		}
	}
	return FormatUnknown, false
}

// BytesPerPixel returns the size of one texel or attribute in bytes, or 0 for FormatUnknown.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRG8Unorm, FormatR16Float, FormatD16Unorm:
		return 2
	case FormatRGBA8Unorm, FormatRGBA8UnormSrgb, FormatBGRA8Unorm, FormatBGRA8UnormSrgb,
		FormatRG16Float, FormatR32Float, FormatR32Uint, FormatR32Sint, FormatD24UnormS8Uint, FormatD32Float:
		return 4
	case FormatRGBA16Float, FormatRG32Float, FormatRG32Uint, FormatD32FloatS8Uint:
		return 8
	case FormatRGB32Float, FormatRGB32Uint:
		return 12
	case FormatRGBA32Float, FormatRGBA32Uint:
		return 16
	default:
		return 0
	}
}

// IsDepth reports whether the format is a depth or depth/stencil format.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD24UnormS8Uint, FormatD32Float, FormatD32FloatS8Uint:
		return true
	default:
		return false
	}
}

// HasStencil reports whether the format carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32FloatS8Uint
}
