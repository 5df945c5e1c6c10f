package shader

import (
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"
)

var viewDimensions = map[ir.ImageDimension]ViewDimension{
	ir.Dim1D:   ViewDimension1D,
	ir.Dim2D:   ViewDimension2D,
	ir.Dim3D:   ViewDimension3D,
	ir.DimCube: ViewDimensionCube,
}

var sampleTypes = map[string]SampleType{
	"f32": SampleTypeFloat,
	"i32": SampleTypeSint,
	"u32": SampleTypeUint,
}

var storageAccess = map[string]StorageAccess{
	"write":      StorageAccessWriteOnly,
	"read":       StorageAccessReadOnly,
	"read_write": StorageAccessReadWrite,
}

// texelFormats lists the storage texel formats the engine has a gpu.Format for.
var texelFormats = map[string]gpu.Format{
	"rgba8unorm":  gpu.FormatRGBA8Unorm,
	"rgba16float": gpu.FormatRGBA16Float,
	"r32uint":     gpu.FormatR32Uint,
	"r32sint":     gpu.FormatR32Sint,
	"r32float":    gpu.FormatR32Float,
	"rg32uint":    gpu.FormatRG32Uint,
	"rg32float":   gpu.FormatRG32Float,
	"rgba32uint":  gpu.FormatRGBA32Uint,
	"rgba32float": gpu.FormatRGBA32Float,
	"bgra8unorm":  gpu.FormatBGRA8Unorm,
}

// hostLayout is the host-shareable size and alignment of a type.
type hostLayout struct {
	size  uint64
	align uint64
}

// reflector resolves the resource interface of a lowered module. The syntax tree fills in what
// the IR does not carry: buffer access modes, texel types and member @size/@align attributes.
type reflector struct {
	module  *ir.Module
	vars    map[string]*wgsl.VarDecl
	structs map[string]*wgsl.StructDecl
}

// reflectLayout builds the root layout of a lowered WGSL module from its global variables. Every
// binding is visible to all stages of the pipeline class.
//
// Parameters:
//   - module: the lowered module
//   - ast: the syntax tree the module was lowered from
//   - pipeline: the pipeline class the layout is for
//
// Returns:
//   - *RootLayout: the sorted layout
func reflectLayout(module *ir.Module, ast *wgsl.Module, pipeline gpu.PipelineType) *RootLayout {
	r := &reflector{
		module:  module,
		vars:    make(map[string]*wgsl.VarDecl),
		structs: make(map[string]*wgsl.StructDecl),
	}
	if ast != nil {
		for _, v := range ast.GlobalVars {
			r.vars[v.Name] = v
		}
		for _, s := range ast.Structs {
			r.structs[s.Name] = s
		}
	}

	visibility := VisibleGraphics
	if pipeline == gpu.PipelineTypeCompute {
		visibility = VisibleCompute
	}

	layout := &RootLayout{Pipeline: pipeline}
	for _, gv := range module.GlobalVariables {
		if gv.Space == ir.SpacePushConstant {
			layout.PushConstantSize = uint32(r.layoutOf(gv.Type).size)
			continue
		}
		if gv.Binding == nil {
			continue
		}
		b, ok := r.classify(gv)
		if !ok {
			continue
		}
		b.Group = gv.Binding.Group
		b.Binding = gv.Binding.Binding
		b.Name = gv.Name
		b.Visibility = visibility
		layout.Bindings = append(layout.Bindings, b)
	}
	layout.Sort()
	return layout
}

func (r *reflector) classify(gv ir.GlobalVariable) (Binding, bool) {
	var b Binding
	switch gv.Space {
	case ir.SpaceUniform:
		b.Kind = BindingUniformBuffer
		b.MinBindingSize = r.layoutOf(gv.Type).size
		return b, true
	case ir.SpaceStorage:
		b.Kind = BindingReadOnlyStorageBuffer
		if decl := r.vars[gv.Name]; decl != nil && strings.Contains(decl.AccessMode, "write") {
			b.Kind = BindingStorageBuffer
		}
		b.MinBindingSize = r.layoutOf(gv.Type).size
		return b, true
	}

	if int(gv.Type) >= len(r.module.Types) {
		return b, false
	}
	switch inner := r.module.Types[gv.Type].Inner.(type) {
	case ir.SamplerType:
		b.Kind = BindingSampler
		if inner.Comparison {
			b.Kind = BindingComparisonSampler
		}
	case ir.ImageType:
		b.Dimension = viewDimensions[inner.Dim]
		if inner.Arrayed {
			switch inner.Dim {
			case ir.DimCube:
				b.Dimension = ViewDimensionCubeArray
			case ir.Dim2D:
				b.Dimension = ViewDimension2DArray
			}
		}
		b.Multisampled = inner.Multisampled
		params := r.typeParams(gv.Name)
		switch inner.Class {
		case ir.ImageClassDepth:
			b.Kind = BindingDepthTexture
			b.SampleType = SampleTypeDepth
		case ir.ImageClassStorage:
			b.Kind = BindingStorageTexture
			b.Access = StorageAccessWriteOnly
			if len(params) > 0 {
				b.Format = texelFormats[params[0]]
			}
			if len(params) > 1 {
				b.Access = storageAccess[params[1]]
			}
		default:
			b.Kind = BindingSampledTexture
			b.SampleType = SampleTypeFloat
			if len(params) > 0 {
				if st, ok := sampleTypes[params[0]]; ok {
					b.SampleType = st
				}
			}
		}
	default:
		return b, false
	}
	return b, true
}

// typeParams returns the template parameter names of a global's declared type, so
// texture_storage_2d<rgba16float, write> gives rgba16float and write.
func (r *reflector) typeParams(name string) []string {
	decl := r.vars[name]
	if decl == nil {
		return nil
	}
	named, ok := decl.Type.(*wgsl.NamedType)
	if !ok {
		return nil
	}
	params := make([]string, 0, len(named.TypeParams))
	for _, p := range named.TypeParams {
		if n, ok := p.(*wgsl.NamedType); ok {
			params = append(params, n.Name)
		}
	}
	return params
}

// layoutOf sizes a type by the WGSL host-shareable rules. A runtime-sized array counts as a
// single element, which is the smallest buffer a binding of it accepts.
func (r *reflector) layoutOf(h ir.TypeHandle) hostLayout {
	if int(h) >= len(r.module.Types) {
		return hostLayout{}
	}
	typ := r.module.Types[h]
	switch inner := typ.Inner.(type) {
	case ir.ScalarType:
		return hostLayout{size: uint64(inner.Width), align: uint64(inner.Width)}
	case ir.AtomicType:
		return hostLayout{size: uint64(inner.Scalar.Width), align: uint64(inner.Scalar.Width)}
	case ir.VectorType:
		return vectorLayout(inner.Size, inner.Scalar.Width)
	case ir.MatrixType:
		col := vectorLayout(inner.Rows, inner.Scalar.Width)
		return hostLayout{size: uint64(inner.Columns) * alignUp(col.size, col.align), align: col.align}
	case ir.ArrayType:
		elem := r.layoutOf(inner.Base)
		stride := uint64(inner.Stride)
		if stride == 0 {
			stride = alignUp(elem.size, elem.align)
		}
		count := uint64(1)
		if inner.Size.Constant != nil {
			count = uint64(*inner.Size.Constant)
		}
		return hostLayout{size: count * stride, align: elem.align}
	case ir.StructType:
		return r.structLayout(typ.Name, inner)
	}
	return hostLayout{}
}

func (r *reflector) structLayout(name string, st ir.StructType) hostLayout {
	decl := r.structs[name]
	if decl != nil && len(decl.Members) != len(st.Members) {
		decl = nil
	}

	var offset uint64
	align := uint64(1)
	for i, m := range st.Members {
		l := r.layoutOf(m.Type)
		if decl != nil {
			for _, attr := range decl.Members[i].Attributes {
				v, ok := attributeValue(attr)
				if !ok {
					continue
				}
				switch attr.Name {
				case "size":
					l.size = v
				case "align":
					l.align = v
				}
			}
		}
		if l.align == 0 {
			l.align = 1
		}
		align = max(align, l.align)
		offset = alignUp(offset, l.align) + l.size
	}
	size := alignUp(offset, align)
	return hostLayout{size: max(size, uint64(st.Span)), align: align}
}

func vectorLayout(n ir.VectorSize, width uint8) hostLayout {
	w := uint64(width)
	if n == ir.Vec2 {
		return hostLayout{size: 2 * w, align: 2 * w}
	}
	return hostLayout{size: uint64(n) * w, align: 4 * w}
}

// attributeValue reads the integer literal argument of an attribute like @size(64).
func attributeValue(attr wgsl.Attribute) (uint64, bool) {
	if len(attr.Args) == 0 {
		return 0, false
	}
	lit, ok := attr.Args[0].(*wgsl.Literal)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimRight(lit.Value, "iu"), 10, 64)
	return v, err == nil
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}
