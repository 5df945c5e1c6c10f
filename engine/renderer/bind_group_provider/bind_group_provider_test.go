package bind_group_provider

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	layouts []*wgpu.BindGroupLayoutDescriptor
	groups  []*wgpu.BindGroupDescriptor
	fail    error
}

func (f *fakeFactory) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.layouts = append(f.layouts, desc)
	return &wgpu.BindGroupLayout{}, nil
}

func (f *fakeFactory) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.groups = append(f.groups, desc)
	return &wgpu.BindGroup{}, nil
}

func testBindings() []shader.Binding {
	return []shader.Binding{
		{Group: 1, Binding: 2, Kind: shader.BindingSampler, Name: "samp"},
		{Group: 0, Binding: 0, Kind: shader.BindingUniformBuffer, Name: "other"},
		{Group: 1, Binding: 0, Kind: shader.BindingUniformBuffer, Name: "params", MinBindingSize: 64},
		{Group: 1, Binding: 1, Kind: shader.BindingSampledTexture, Dimension: shader.ViewDimension2D, Name: "tex"},
	}
}

// newTestProvider returns a provider whose native releases are counted instead of performed.
func newTestProvider(opts ...BindGroupProviderOption) (*bindGroupProvider, *int, *int) {
	p := NewBindGroupProvider("material", 1, testBindings(), opts...).(*bindGroupProvider)
	groupReleases, layoutReleases := 0, 0
	p.releaseBindGroup = func(*wgpu.BindGroup) { groupReleases++ }
	p.releaseLayout = func(*wgpu.BindGroupLayout) { layoutReleases++ }
	return p, &groupReleases, &layoutReleases
}

func fill(p BindGroupProvider, buf *wgpu.Buffer) {
	p.SetBuffer(0, buf, 0, 64)
	p.SetTextureView(1, &wgpu.TextureView{})
	p.SetSampler(2, &wgpu.Sampler{})
}

func TestNewBindGroupProvider_FiltersAndSortsGroup(t *testing.T) {
	p, _, _ := newTestProvider()

	require.Len(t, p.Bindings(), 3)
	assert.Equal(t, "params", p.Bindings()[0].Name)
	assert.Equal(t, "tex", p.Bindings()[1].Name)
	assert.Equal(t, "samp", p.Bindings()[2].Name)
	assert.Equal(t, uint32(1), p.Group())
	assert.Equal(t, "material", p.Label())
	assert.True(t, p.Dirty())
}

func TestBindGroup_MissingBindingsFail(t *testing.T) {
	p, _, _ := newTestProvider()
	p.SetBuffer(0, &wgpu.Buffer{}, 0, wgpu.WholeSize)

	assert.Equal(t, []uint32{1, 2}, p.Missing())
	f := &fakeFactory{}
	_, err := p.BindGroup(f)
	require.Error(t, err)
	assert.Empty(t, f.groups)
}

func TestBindGroup_BuildsOnceUntilChanged(t *testing.T) {
	p, groupReleases, _ := newTestProvider()
	buf := &wgpu.Buffer{}
	fill(p, buf)
	f := &fakeFactory{}

	first, err := p.BindGroup(f)
	require.NoError(t, err)
	require.Len(t, f.layouts, 1)
	require.Len(t, f.groups, 1)
	assert.Len(t, f.layouts[0].Entries, 3)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, f.layouts[0].Entries[0].Buffer.Type)
	assert.Equal(t, uint64(64), f.layouts[0].Entries[0].Buffer.MinBindingSize)

	entries := f.groups[0].Entries
	require.Len(t, entries, 3)
	assert.Same(t, buf, entries[0].Buffer)
	assert.Equal(t, uint64(64), entries[0].Size)
	assert.NotNil(t, entries[1].TextureView)
	assert.NotNil(t, entries[2].Sampler)

	// Re-setting the same range keeps the group.
	p.SetBuffer(0, buf, 0, 64)
	again, err := p.BindGroup(f)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Len(t, f.groups, 1)

	p.SetBuffer(0, buf, 256, 64)
	assert.True(t, p.Dirty())
	rebuilt, err := p.BindGroup(f)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.Len(t, f.groups, 2)
	assert.Len(t, f.layouts, 1)
	assert.Equal(t, 1, *groupReleases)
}

func TestBindGroup_FactoryFailureWrapsErrDevice(t *testing.T) {
	p, _, _ := newTestProvider()
	fill(p, &wgpu.Buffer{})

	_, err := p.BindGroup(&fakeFactory{fail: errors.New("lost")})
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrDevice)
	assert.True(t, p.Dirty())
}

func TestRelease_OwnedLayoutOnly(t *testing.T) {
	p, groupReleases, layoutReleases := newTestProvider()
	fill(p, &wgpu.Buffer{})
	_, err := p.BindGroup(&fakeFactory{})
	require.NoError(t, err)

	p.Release()
	assert.Equal(t, 1, *groupReleases)
	assert.Equal(t, 1, *layoutReleases)
	assert.Nil(t, p.BindGroupLayout())
	assert.True(t, p.Dirty())

	shared := &wgpu.BindGroupLayout{}
	q, _, sharedReleases := newTestProvider(WithBindGroupLayout(shared))
	fill(q, &wgpu.Buffer{})
	f := &fakeFactory{}
	_, err = q.BindGroup(f)
	require.NoError(t, err)
	assert.Empty(t, f.layouts)
	assert.Same(t, shared, f.groups[0].Layout)

	q.Release()
	assert.Equal(t, 0, *sharedReleases)
}

func TestLayoutEntry_Kinds(t *testing.T) {
	depth, err := LayoutEntry(shader.Binding{Binding: 3, Kind: shader.BindingDepthTexture, Dimension: shader.ViewDimension2DArray, Visibility: shader.VisiblePixel})
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, depth.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, depth.Texture.ViewDimension)
	assert.Equal(t, wgpu.ShaderStageFragment, depth.Visibility)

	storage, err := LayoutEntry(shader.Binding{
		Kind:       shader.BindingStorageTexture,
		Dimension:  shader.ViewDimension2D,
		Access:     shader.StorageAccessReadWrite,
		Format:     gpu.FormatRGBA8Unorm,
		Visibility: shader.VisibleCompute,
	})
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, storage.StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessReadWrite, storage.StorageTexture.Access)
	assert.Equal(t, wgpu.ShaderStageCompute, storage.Visibility)

	_, err = LayoutEntry(shader.Binding{Kind: shader.BindingStorageTexture, Format: gpu.FormatRGB32Float, Name: "bad"})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	cmp, err := LayoutEntry(shader.Binding{Kind: shader.BindingComparisonSampler, Visibility: shader.VisibleGraphics})
	require.NoError(t, err)
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, cmp.Sampler.Type)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, cmp.Visibility)
}

func TestTextureFormat_RoundTrip(t *testing.T) {
	for _, f := range []gpu.Format{gpu.FormatBGRA8Unorm, gpu.FormatRGBA16Float, gpu.FormatD32Float, gpu.FormatD24UnormS8Uint} {
		tf, ok := TextureFormat(f)
		require.True(t, ok, f.String())
		assert.Equal(t, f, GPUFormat(tf))
	}

	_, ok := TextureFormat(gpu.FormatRGB32Float)
	assert.False(t, ok)
	assert.Equal(t, gpu.FormatUnknown, GPUFormat(wgpu.TextureFormatUndefined))
}
