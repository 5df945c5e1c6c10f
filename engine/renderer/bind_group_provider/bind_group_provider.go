package bind_group_provider

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Factory creates the native objects a provider needs. *wgpu.Device satisfies it.
type Factory interface {
	CreateBindGroupLayout(descriptor *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error)
	CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)
}

// BufferBinding is a buffer range bound to one binding slot.
type BufferBinding struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Size   uint64
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// group is the bind group index the provider fills.
	group uint32
	// bindings is the reflected layout of the group, sorted by binding index.
	bindings []shader.Binding

	// bindGroupLayout is created lazily from bindings unless one was supplied.
	bindGroupLayout *wgpu.BindGroupLayout
	ownsLayout      bool

	buffers      map[uint32]BufferBinding
	textureViews map[uint32]*wgpu.TextureView
	samplers     map[uint32]*wgpu.Sampler

	// bindGroup is the last built bind group; dirty marks it stale.
	bindGroup *wgpu.BindGroup
	dirty     bool

	releaseBindGroup func(*wgpu.BindGroup)
	releaseLayout    func(*wgpu.BindGroupLayout)
}

// BindGroupProvider fills one bind group of a root layout with buffers, texture views and samplers.
// It is a gpu.DescriptorTable: a provider can be bound as a root configuration DescriptorTable entry,
// and the wgpu recorder uses providers internally to turn root views into bind groups.
//
// Usage pattern:
//  1. Create a provider for a group of a shader's reflected root layout
//  2. Set the resources of every binding
//  3. Bind it through a root configuration, or call BindGroup directly
//  4. Changing a resource marks the bind group stale; it is rebuilt on the next BindGroup call
type BindGroupProvider interface {
	gpu.DescriptorTable

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the bind group index the provider fills.
	//
	// Returns:
	//   - uint32: the group index
	Group() uint32

	// Bindings returns the reflected layout of the group.
	//
	// Returns:
	//   - []shader.Binding: the bindings sorted by binding index
	Bindings() []shader.Binding

	// BindGroupLayout returns the layout of the group, or nil before the first BindGroup call.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer bound to a binding, or nil if none is set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding uint32) *wgpu.Buffer

	// SetBuffer binds a buffer range. Size may be wgpu.WholeSize.
	// Setting the same range again leaves the bind group valid.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - offset: the byte offset of the range
	//   - size: the byte size of the range
	SetBuffer(binding uint32, buf *wgpu.Buffer, offset, size uint64)

	// SetTextureView binds a texture view.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding uint32, tv *wgpu.TextureView)

	// SetSampler binds a sampler.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding uint32, s *wgpu.Sampler)

	// Missing returns the binding indices that have no resource yet.
	//
	// Returns:
	//   - []uint32: the unbound binding indices, empty when the group is complete
	Missing() []uint32

	// Entries returns the bind group entries in binding order.
	//
	// Returns:
	//   - []wgpu.BindGroupEntry: one entry per supplied binding
	Entries() []wgpu.BindGroupEntry

	// Dirty reports whether the next BindGroup call rebuilds the bind group.
	//
	// Returns:
	//   - bool: true when no bind group exists or a resource changed since it was built
	Dirty() bool

	// BindGroup returns the bind group, creating the layout and rebuilding the group when stale.
	//
	// Parameters:
	//   - f: the factory creating native objects, normally the *wgpu.Device
	//
	// Returns:
	//   - *wgpu.BindGroup: the current bind group
	//   - error: an error when a binding is missing or creation fails
	BindGroup(f Factory) (*wgpu.BindGroup, error)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider for one group of a reflected root layout.
//
// Parameters:
//   - label: the debug label
//   - group: the bind group index
//   - bindings: the reflected bindings of the group; bindings of other groups are ignored
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new provider with no bind group built yet
func NewBindGroupProvider(label string, group uint32, bindings []shader.Binding, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:            label,
		group:            group,
		buffers:          make(map[uint32]BufferBinding),
		textureViews:     make(map[uint32]*wgpu.TextureView),
		samplers:         make(map[uint32]*wgpu.Sampler),
		dirty:            true,
		releaseBindGroup: (*wgpu.BindGroup).Release,
		releaseLayout:    (*wgpu.BindGroupLayout).Release,
	}
	for _, b := range bindings {
		if b.Group == group {
			p.bindings = append(p.bindings, b)
		}
	}
	slices.SortFunc(p.bindings, func(a, b shader.Binding) int { return int(a.Binding) - int(b.Binding) })
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() uint32 {
	return p.group
}

func (p *bindGroupProvider) Bindings() []shader.Binding {
	return p.bindings
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding uint32) *wgpu.Buffer {
	return p.buffers[binding].Buffer
}

func (p *bindGroupProvider) SetBuffer(binding uint32, buf *wgpu.Buffer, offset, size uint64) {
	next := BufferBinding{Buffer: buf, Offset: offset, Size: size}
	if cur, ok := p.buffers[binding]; ok && cur == next {
		return
	}
	p.buffers[binding] = next
	p.dirty = true
}

func (p *bindGroupProvider) SetTextureView(binding uint32, tv *wgpu.TextureView) {
	if cur, ok := p.textureViews[binding]; ok && cur == tv {
		return
	}
	p.textureViews[binding] = tv
	p.dirty = true
}

func (p *bindGroupProvider) SetSampler(binding uint32, s *wgpu.Sampler) {
	if cur, ok := p.samplers[binding]; ok && cur == s {
		return
	}
	p.samplers[binding] = s
	p.dirty = true
}

func (p *bindGroupProvider) Missing() []uint32 {
	var missing []uint32
	for _, b := range p.bindings {
		if _, ok := p.entry(b); !ok {
			missing = append(missing, b.Binding)
		}
	}
	return missing
}

func (p *bindGroupProvider) Entries() []wgpu.BindGroupEntry {
	entries := make([]wgpu.BindGroupEntry, 0, len(p.bindings))
	for _, b := range p.bindings {
		if e, ok := p.entry(b); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func (p *bindGroupProvider) Dirty() bool {
	return p.dirty || p.bindGroup == nil
}

func (p *bindGroupProvider) BindGroup(f Factory) (*wgpu.BindGroup, error) {
	if !p.Dirty() {
		return p.bindGroup, nil
	}
	if missing := p.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("bind group %q (group %d): bindings %v have no resource", p.label, p.group, missing)
	}

	if p.bindGroupLayout == nil {
		entries, err := LayoutEntries(p.bindings)
		if err != nil {
			return nil, err
		}
		layout, err := f.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   p.label + " Layout",
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: bind group layout %q: %v", gpu.ErrDevice, p.label, err)
		}
		p.bindGroupLayout = layout
		p.ownsLayout = true
	}

	bg, err := f.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label,
		Layout:  p.bindGroupLayout,
		Entries: p.Entries(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bind group %q: %v", gpu.ErrDevice, p.label, err)
	}

	if p.bindGroup != nil {
		p.releaseBindGroup(p.bindGroup)
	}
	p.bindGroup = bg
	p.dirty = false
	return bg, nil
}

// Release releases the bind group and, when the provider created it, the layout.
// Bound buffers, views and samplers belong to the caller and are left alone.
func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.releaseBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil && p.ownsLayout {
		p.releaseLayout(p.bindGroupLayout)
	}
	p.bindGroupLayout = nil
	p.ownsLayout = false
	p.dirty = true
}

func (p *bindGroupProvider) entry(b shader.Binding) (wgpu.BindGroupEntry, bool) {
	e := wgpu.BindGroupEntry{Binding: b.Binding}
	switch {
	case IsBuffer(b.Kind):
		bb, ok := p.buffers[b.Binding]
		if !ok || bb.Buffer == nil {
			return e, false
		}
		e.Buffer, e.Offset, e.Size = bb.Buffer, bb.Offset, bb.Size
	case b.Kind == shader.BindingSampler || b.Kind == shader.BindingComparisonSampler:
		s, ok := p.samplers[b.Binding]
		if !ok || s == nil {
			return e, false
		}
		e.Sampler = s
	default:
		tv, ok := p.textureViews[b.Binding]
		if !ok || tv == nil {
			return e, false
		}
		e.TextureView = tv
	}
	return e, true
}
