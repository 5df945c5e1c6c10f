package rootconfig_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/rootconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindRecordsEntriesInOrder(t *testing.T) {
	buf := &gputest.Resource{Name: "frame constants"}
	rc, err := rootconfig.NewRootConfiguration(gpu.PipelineTypeCompute, []rootconfig.Entry{
		rootconfig.RootConstants{Values: []uint32{1, 2}},
		rootconfig.ConstantBufferView{Buffer: buf, Offset: 256},
		rootconfig.ShaderResourceView{Buffer: buf},
		rootconfig.UnorderedAccessView{Buffer: buf},
		rootconfig.DescriptorTable{},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, rc.Len())
	assert.Equal(t, gpu.PipelineTypeCompute, rc.Type())

	rec := gputest.NewRecorder()
	rc.Bind(rec)
	assert.Equal(t, []string{
		"SetRootConstants compute 0",
		"SetRootView compute 1 0",
		"SetRootView compute 2 1",
		"SetRootView compute 3 2",
		"SetRootDescriptorTable compute 4",
	}, rec.Calls)
	assert.Equal(t, []uint32{1, 2}, rec.Constants[0])
}

func TestCapacity(t *testing.T) {
	entries := make([]rootconfig.Entry, rootconfig.Capacity)
	for i := range entries {
		entries[i] = rootconfig.RootConstants{Values: []uint32{uint32(i)}}
	}
	rc, err := rootconfig.NewRootConfiguration(gpu.PipelineTypeGraphics, entries)
	require.NoError(t, err)
	assert.ErrorIs(t, rc.PushBack(rootconfig.RootConstants{}), rootconfig.ErrCapacityExceeded)
	assert.Equal(t, rootconfig.Capacity, rc.Len())

	_, err = rootconfig.NewRootConfiguration(gpu.PipelineTypeGraphics, append(entries, rootconfig.RootConstants{}))
	assert.ErrorIs(t, err, rootconfig.ErrCapacityExceeded)
}

func TestAt(t *testing.T) {
	rc, err := rootconfig.NewRootConfiguration(gpu.PipelineTypeGraphics, nil)
	require.NoError(t, err)
	require.NoError(t, rc.PushBack(rootconfig.RootConstants{Values: []uint32{7}}))

	assert.Equal(t, rootconfig.RootConstants{Values: []uint32{7}}, rc.At(0))
	assert.Panics(t, func() { rc.At(1) })
	assert.Panics(t, func() { rc.At(-1) })
}
