package upload_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	buf    *upload.Buffer
	rec    *gputest.Recorder
	native *gputest.Queue
	heap   *gputest.UploadHeap
}

func newFixture(t *testing.T, size uint64, autoComplete bool) *fixture {
	t.Helper()
	device := &gputest.Device{}
	f := &fixture{rec: gputest.NewRecorder(), native: gputest.NewQueue(autoComplete)}
	buf, err := upload.NewBuffer("staging", &gfx.Context{Device: device, Allocator: device}, queue.NewQueue(f.native), f.rec, size)
	require.NoError(t, err)
	f.buf = buf
	return f
}

func TestRequiredRowStride(t *testing.T) {
	tests := []struct {
		width, bpp uint32
		want       uint32
	}{
		{1, 4, 256},
		{64, 4, 256},
		{65, 4, 512},
		{100, 3, 512},
		{256, 16, 4096},
		{0, 4, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, upload.RequiredRowStride(tt.width, tt.bpp), "%dx%d", tt.width, tt.bpp)
	}
}

func TestReserveIsAlignedAndBounded(t *testing.T) {
	f := newFixture(t, 1024, true)

	a, err := f.buf.Reserve(10)
	require.NoError(t, err)
	b, err := f.buf.Reserve(300)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), a.Offset)
	assert.Equal(t, uint64(256), b.Offset)
	assert.Equal(t, 2, f.buf.OpenReservations())
	assert.Equal(t, 10, cap(a.Bytes), "reservations cannot grow into each other")

	_, err = f.buf.Reserve(512)
	assert.ErrorIs(t, err, upload.ErrOutOfMemory)
	_, err = f.buf.Reserve(256)
	assert.NoError(t, err)
}

func TestCopyBufferData(t *testing.T) {
	f := newFixture(t, 1024, true)
	dst := &gputest.Resource{Name: "vertices"}

	require.NoError(t, f.buf.CopyBufferData([]byte{1, 2, 3, 4}, dst, 64))
	assert.Zero(t, f.buf.OpenReservations())
	require.Len(t, f.rec.BufferCopies, 1)
	c := f.rec.BufferCopies[0]
	assert.Same(t, dst, c.Dst)
	assert.Equal(t, uint64(64), c.DstOffset)
	assert.Equal(t, uint64(4), c.Size)

	heap := c.Src.(*gputest.UploadHeap)
	assert.Equal(t, []byte{1, 2, 3, 4}, heap.Data[:4])
	assert.Equal(t, [][2]uint64{{0, 4}}, heap.Flushes)
}

func TestCopyTextureDataRepitchesRows(t *testing.T) {
	f := newFixture(t, 4096, true)
	dst := &gputest.Resource{Name: "albedo"}
	pixels := make([]byte, 3*2*4)
	for i := range pixels {
		pixels[i] = byte(i + 1)
	}

	require.NoError(t, f.buf.CopyTextureData(upload.TextureData{
		Dst: dst, MipLevel: 1, Width: 3, Height: 2, Format: gpu.FormatRGBA8Unorm, Pixels: pixels,
	}))
	require.Len(t, f.rec.TextureCopies, 1)
	c := f.rec.TextureCopies[0]
	assert.Equal(t, uint32(256), c.RowPitch)
	assert.Equal(t, uint32(1), c.MipLevel)
	assert.Equal(t, uint32(3), c.Width)

	heap := c.Src.(*gputest.UploadHeap)
	assert.Equal(t, pixels[:12], heap.Data[c.SrcOffset:c.SrcOffset+12])
	assert.Equal(t, pixels[12:], heap.Data[c.SrcOffset+256:c.SrcOffset+268])
	assert.Zero(t, heap.Data[c.SrcOffset+12])
}

func TestCopyTextureDataRejectsShortPixels(t *testing.T) {
	f := newFixture(t, 4096, true)
	err := f.buf.CopyTextureData(upload.TextureData{Width: 4, Height: 4, Format: gpu.FormatRGBA8Unorm, Pixels: make([]byte, 10)})
	assert.Error(t, err)
	assert.Empty(t, f.rec.TextureCopies)
}

func TestInFlightUntilWait(t *testing.T) {
	f := newFixture(t, 1024, false)
	dst := &gputest.Resource{}
	require.NoError(t, f.buf.CopyBufferData([]byte{1}, dst, 0))
	mem, err := f.buf.Reserve(4)
	require.NoError(t, err)

	require.NoError(t, f.buf.Execute())
	assert.True(t, f.buf.Executing())
	assert.True(t, f.rec.Closed)

	_, err = f.buf.Reserve(1)
	assert.ErrorIs(t, err, upload.ErrInFlight)
	assert.ErrorIs(t, f.buf.CommitBufferCopy(mem, dst, 0), upload.ErrInFlight)
	assert.ErrorIs(t, f.buf.Execute(), upload.ErrInFlight)

	done, err := f.buf.CheckFinished()
	require.NoError(t, err)
	assert.False(t, done)

	f.native.Complete(1)
	require.NoError(t, f.buf.Wait())
	assert.False(t, f.buf.Executing())
	assert.Zero(t, f.buf.Used())
	assert.False(t, f.rec.Closed)

	_, err = f.buf.Reserve(1)
	assert.NoError(t, err)
}

func TestCheckFinishedResets(t *testing.T) {
	f := newFixture(t, 1024, false)
	require.NoError(t, f.buf.CopyBufferData([]byte{1}, &gputest.Resource{}, 0))
	require.NoError(t, f.buf.Execute())

	f.native.Complete(1)
	done, err := f.buf.CheckFinished()
	require.NoError(t, err)
	assert.True(t, done)
	assert.False(t, f.buf.Executing())
	assert.Equal(t, 1, f.rec.Resets)
}

func TestExecuteSync(t *testing.T) {
	f := newFixture(t, 1024, true)
	require.NoError(t, f.buf.ExecuteSync(), "nothing to submit")
	assert.Empty(t, f.native.Submitted)

	require.NoError(t, f.buf.CopyBufferData([]byte{1, 2}, &gputest.Resource{}, 0))
	require.NoError(t, f.buf.ExecuteSync())
	assert.Len(t, f.native.Submitted, 1)
	assert.False(t, f.buf.Executing())
}
