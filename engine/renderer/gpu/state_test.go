package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceStateString(t *testing.T) {
	assert.Equal(t, "Common", StatePresent.String())
	assert.Equal(t, "RenderTarget", StateRenderTarget.String())
	assert.Equal(t, "NonPixelShaderResource|PixelShaderResource", StateAllShaderResource.String())
}

func TestEnumText(t *testing.T) {
	var c CullMode
	require.NoError(t, c.UnmarshalText([]byte("Back")))
	assert.Equal(t, CullBack, c)
	assert.Equal(t, "back", c.String())

	var b BlendFactor
	require.NoError(t, b.UnmarshalText([]byte("inv-src-alpha")))
	assert.Equal(t, BlendInvSrcAlpha, b)
	assert.Error(t, b.UnmarshalText([]byte("sideways")))
	text, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "inv-src-alpha", string(text))

	var top PrimitiveTopologyType
	require.NoError(t, top.UnmarshalText([]byte("triangle")))
	assert.Equal(t, TopologyTypeTriangle, top)

	var f Format
	require.NoError(t, f.UnmarshalText([]byte("rgb32float")))
	assert.Equal(t, uint32(12), f.BytesPerPixel())
	assert.True(t, FormatD24UnormS8Uint.HasStencil())
	assert.False(t, FormatD32Float.HasStencil())

	var pt PipelineType
	require.NoError(t, pt.UnmarshalText([]byte("compute")))
	assert.Equal(t, PipelineTypeCompute, pt)
}
