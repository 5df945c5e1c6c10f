package gpu

import (
	"fmt"
	"strings"
)

// enumNames maps the text form of an enum to its value for config decoding.
type enumNames[T comparable] map[string]T

func (n enumNames[T]) name(v T) string {
	for k, x := range n {
		if x == v {
			return k
		}
	}
	return "unknown"
}

func (n enumNames[T]) parse(kind string, text []byte, dst *T) error {
	v, ok := n[strings.ToLower(strings.TrimSpace(string(text)))]
	if !ok {
		return fmt.Errorf("gpu: unknown %s %q", kind, text)
	}
	*dst = v
	return nil
}

var blendFactorNames = enumNames[BlendFactor]{
	"zero": BlendZero, "one": BlendOne,
	"src-color": BlendSrcColor, "inv-src-color": BlendInvSrcColor,
	"src-alpha": BlendSrcAlpha, "inv-src-alpha": BlendInvSrcAlpha,
	"dest-color": BlendDestColor, "inv-dest-color": BlendInvDestColor,
	"dest-alpha": BlendDestAlpha, "inv-dest-alpha": BlendInvDestAlpha,
	"src-alpha-sat": BlendSrcAlphaSat,
	"blend-factor":  BlendBlendFactor, "inv-blend-factor": BlendInvBlendFactor,
}

var blendOpNames = enumNames[BlendOp]{
	"add": BlendOpAdd, "subtract": BlendOpSubtract, "rev-subtract": BlendOpRevSubtract,
	"min": BlendOpMin, "max": BlendOpMax,
}

var fillModeNames = enumNames[FillMode]{"solid": FillSolid, "wireframe": FillWireframe}

var cullModeNames = enumNames[CullMode]{"none": CullNone, "front": CullFront, "back": CullBack}

var compareFuncNames = enumNames[CompareFunc]{
	"never": CompareNever, "less": CompareLess, "equal": CompareEqual, "less-equal": CompareLessEqual,
	"greater": CompareGreater, "not-equal": CompareNotEqual, "greater-equal": CompareGreaterEqual,
	"always": CompareAlways,
}

var stencilOpNames = enumNames[StencilOp]{
	"keep": StencilKeep, "zero": StencilZero, "replace": StencilReplace,
	"incr-sat": StencilIncrSat, "decr-sat": StencilDecrSat, "invert": StencilInvert,
	"incr": StencilIncr, "decr": StencilDecr,
}

var topologyTypeNames = enumNames[PrimitiveTopologyType]{
	"undefined": TopologyTypeUndefined, "point": TopologyTypePoint, "line": TopologyTypeLine,
	"triangle": TopologyTypeTriangle, "patch": TopologyTypePatch,
}

func (b BlendFactor) String() string { return blendFactorNames.name(b) }

func (b *BlendFactor) UnmarshalText(t []byte) error {
	return blendFactorNames.parse("blend factor", t, b)
}

func (b BlendFactor) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (o BlendOp) String() string { return blendOpNames.name(o) }

func (o *BlendOp) UnmarshalText(t []byte) error {
	return blendOpNames.parse("blend op", t, o)
}

func (o BlendOp) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (f FillMode) String() string { return fillModeNames.name(f) }

func (f *FillMode) UnmarshalText(t []byte) error {
	return fillModeNames.parse("fill mode", t, f)
}

func (f FillMode) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (c CullMode) String() string { return cullModeNames.name(c) }

func (c *CullMode) UnmarshalText(t []byte) error {
	return cullModeNames.parse("cull mode", t, c)
}

func (c CullMode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c CompareFunc) String() string { return compareFuncNames.name(c) }

func (c *CompareFunc) UnmarshalText(t []byte) error {
	return compareFuncNames.parse("compare func", t, c)
}

func (c CompareFunc) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (s StencilOp) String() string { return stencilOpNames.name(s) }

func (s *StencilOp) UnmarshalText(t []byte) error {
	return stencilOpNames.parse("stencil op", t, s)
}

func (s StencilOp) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (p PrimitiveTopologyType) String() string { return topologyTypeNames.name(p) }

func (p *PrimitiveTopologyType) UnmarshalText(t []byte) error {
	return topologyTypeNames.parse("topology type", t, p)
}

func (p PrimitiveTopologyType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a format name such as "rgba8unorm".
func (f *Format) UnmarshalText(t []byte) error {
	v, ok := ParseFormat(strings.ToLower(strings.TrimSpace(string(t))))
	if !ok {
		return fmt.Errorf("gpu: unknown format %q", t)
	}
	*f = v
	return nil
}

// MarshalText encodes the format name.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }
