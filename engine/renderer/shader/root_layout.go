package shader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
)

// BindingKind is the resource class of one root-layout binding.
type BindingKind uint8

const (
	BindingUniformBuffer BindingKind = iota
	BindingStorageBuffer
	BindingReadOnlyStorageBuffer
	BindingSampler
	BindingComparisonSampler
	BindingSampledTexture
	BindingDepthTexture
	BindingStorageTexture
)

// ViewDimension is the dimensionality of a texture binding.
type ViewDimension uint8

const (
	ViewDimension1D ViewDimension = iota
	ViewDimension2D
	ViewDimension2DArray
	ViewDimension3D
	ViewDimensionCube
	ViewDimensionCubeArray
)

// SampleType is the scalar type a sampled texture returns.
type SampleType uint8

const (
	SampleTypeFloat SampleType = iota
	SampleTypeUnfilterableFloat
	SampleTypeSint
	SampleTypeUint
	SampleTypeDepth
)

// StorageAccess is the access mode of a storage texture.
type StorageAccess uint8

const (
	StorageAccessWriteOnly StorageAccess = iota
	StorageAccessReadOnly
	StorageAccessReadWrite
)

// Visibility is a mask of the pipeline stages that can see a binding.
type Visibility uint8

const (
	VisibleVertex Visibility = 1 << iota
	VisiblePixel
	VisibleCompute

	VisibleGraphics = VisibleVertex | VisiblePixel
)

// Binding is one resource slot of a root layout.
type Binding struct {
	Group          uint32
	Binding        uint32
	Kind           BindingKind
	Visibility     Visibility
	Dimension      ViewDimension
	SampleType     SampleType
	Multisampled   bool
	Access         StorageAccess
	Format         gpu.Format
	MinBindingSize uint64
	Name           string
}

// RootLayout is the binding-layout contract of a pipeline. It is serialized into the
// root-signature blob stored next to compiled bytecode.
type RootLayout struct {
	Pipeline         gpu.PipelineType
	PushConstantSize uint32
	Bindings         []Binding
}

// rootLayoutMagic prefixes every serialized layout; the trailing byte is the format version.
var rootLayoutMagic = [4]byte{'O', 'R', 'L', 1}

// ErrNotRootLayout is returned when a blob is not a serialized RootLayout.
var ErrNotRootLayout = errors.New("shader: blob is not a root layout")

type bindingRecord struct {
	Group          uint32
	Binding        uint32
	Kind           uint8
	Visibility     uint8
	Dimension      uint8
	SampleType     uint8
	Multisampled   uint8
	Access         uint8
	Format         uint16
	MinBindingSize uint64
	NameLen        uint16
}

// Sort orders bindings by group then binding index.
func (l *RootLayout) Sort() {
	sort.Slice(l.Bindings, func(i, j int) bool {
		a, b := l.Bindings[i], l.Bindings[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Binding < b.Binding
	})
}

// Groups returns the number of bind groups the layout spans (highest group index + 1).
func (l *RootLayout) Groups() int {
	n := 0
	for _, b := range l.Bindings {
		if int(b.Group)+1 > n {
			n = int(b.Group) + 1
		}
	}
	return n
}

// Group returns the bindings of one group in binding order.
func (l *RootLayout) Group(group uint32) []Binding {
	var out []Binding
	for _, b := range l.Bindings {
		if b.Group == group {
			out = append(out, b)
		}
	}
	return out
}

// MarshalBinary encodes the layout in little-endian binary form.
func (l *RootLayout) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(rootLayoutMagic[:])
	header := struct {
		Pipeline         uint8
		PushConstantSize uint32
		Count            uint32
	}{uint8(l.Pipeline), l.PushConstantSize, uint32(len(l.Bindings))}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	for _, b := range l.Bindings {
		if len(b.Name) > 0xffff {
			return nil, fmt.Errorf("shader: binding name too long: %d bytes", len(b.Name))
		}
		rec := bindingRecord{
			Group:          b.Group,
			Binding:        b.Binding,
			Kind:           uint8(b.Kind),
			Visibility:     uint8(b.Visibility),
			Dimension:      uint8(b.Dimension),
			SampleType:     uint8(b.SampleType),
			Access:         uint8(b.Access),
			Format:         uint16(b.Format),
			MinBindingSize: b.MinBindingSize,
			NameLen:        uint16(len(b.Name)),
		}
		if b.Multisampled {
			rec.Multisampled = 1
		}
		if err := binary.Write(&buf, binary.LittleEndian, rec); err != nil {
			return nil, err
		}
		buf.WriteString(b.Name)
	}
	return buf.Bytes(), nil
}

// UnmarshalRootLayout decodes a blob produced by MarshalBinary.
//
// Parameters:
//   - blob: the serialized layout
//
// Returns:
//   - *RootLayout: the decoded layout
//   - error: ErrNotRootLayout for foreign blobs, or a decode error for truncated ones
func UnmarshalRootLayout(blob []byte) (*RootLayout, error) {
	if len(blob) < len(rootLayoutMagic) || !bytes.Equal(blob[:4], rootLayoutMagic[:]) {
		return nil, ErrNotRootLayout
	}
	r := bytes.NewReader(blob[4:])
	var header struct {
		Pipeline         uint8
		PushConstantSize uint32
		Count            uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("shader: root layout header: %w", err)
	}
	l := &RootLayout{
		Pipeline:         gpu.PipelineType(header.Pipeline),
		PushConstantSize: header.PushConstantSize,
	}
	for i := uint32(0); i < header.Count; i++ {
		var rec bindingRecord
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("shader: root layout binding %d: %w", i, err)
		}
		name := make([]byte, rec.NameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("shader: root layout binding %d name: %w", i, err)
		}
		l.Bindings = append(l.Bindings, Binding{
			Group:          rec.Group,
			Binding:        rec.Binding,
			Kind:           BindingKind(rec.Kind),
			Visibility:     Visibility(rec.Visibility),
			Dimension:      ViewDimension(rec.Dimension),
			SampleType:     SampleType(rec.SampleType),
			Multisampled:   rec.Multisampled != 0,
			Access:         StorageAccess(rec.Access),
			Format:         gpu.Format(rec.Format),
			MinBindingSize: rec.MinBindingSize,
			Name:           string(name),
		})
	}
	return l, nil
}
