// Package upload stages CPU data in an upload heap and records the copies into GPU resources.
package upload

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
)

const (
	// RowPitchAlignment is the alignment of texture rows in a staged footprint.
	RowPitchAlignment = 256
	// ReservationAlignment is the alignment of every reservation's offset in the heap.
	ReservationAlignment = 256
)

var (
	// ErrInFlight is returned when the buffer is used between Execute and the completion of its work.
	ErrInFlight = errors.New("upload: buffer in flight")
	// ErrOutOfMemory is returned when a reservation does not fit in the remaining heap space.
	ErrOutOfMemory = errors.New("upload: out of memory")
)

// Reservation is a region of the upload heap returned by Reserve.
type Reservation struct {
	// Bytes is the CPU-writable memory of the region.
	Bytes  []byte
	Offset uint64
}

// Size returns the length of the region.
func (r Reservation) Size() uint64 {
	return uint64(len(r.Bytes))
}

// TextureData is a block of pixels to copy into one texture mip level.
type TextureData struct {
	Dst      gpu.Resource
	MipLevel uint32
	X, Y     uint32
	Width    uint32
	Height   uint32
	Format   gpu.Format
	Pixels   []byte
	// RowPitch is the stride of Pixels; 0 means tightly packed rows.
	RowPitch uint32
}

// Buffer is a single-writer staging buffer. Reservations are carved linearly from the heap, commits
// record copies on the buffer's own recorder, and Execute submits them. After Execute the buffer
// rejects new work with ErrInFlight until Wait or CheckFinished observes completion.
type Buffer struct {
	key    string
	heap   gpu.UploadHeap
	rec    gpu.Recorder
	queue  *queue.Queue
	logger *slog.Logger

	head      uint64
	open      int
	commits   int
	marker    uint64
	executing bool
}

// NewBuffer creates an upload heap of the given size through the context's allocator.
//
// Parameters:
//   - key: a debug name, also the heap label
//   - ctx: supplies the allocator and logger
//   - q: the queue copies are submitted to
//   - rec: an open recorder owned by the buffer
//   - size: the heap size in bytes
//   - opts: optional BufferBuilderOption values
//
// Returns:
//   - *Buffer: the upload buffer
//   - error: an error wrapping gpu.ErrDevice if the heap cannot be created
func NewBuffer(key string, ctx *gfx.Context, q *queue.Queue, rec gpu.Recorder, size uint64, opts ...BufferBuilderOption) (*Buffer, error) {
	if ctx == nil || ctx.Allocator == nil || q == nil || rec == nil {
		panic(fmt.Sprintf("upload: %s needs an allocator, a queue and a recorder", key))
	}
	heap, err := ctx.Allocator.CreateUploadHeap(key, size)
	if err != nil {
		return nil, fmt.Errorf("upload: %s: create heap: %w", key, err)
	}
	b := &Buffer{key: key, heap: heap, rec: rec, queue: q}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = ctx.Log()
	}
	b.logger = b.logger.With("upload", key)
	return b, nil
}

// Capacity returns the heap size.
func (b *Buffer) Capacity() uint64 {
	return uint64(len(b.heap.Bytes()))
}

// Used returns the number of heap bytes reserved since the last reset.
func (b *Buffer) Used() uint64 {
	return b.head
}

// OpenReservations returns the number of reservations not yet committed.
func (b *Buffer) OpenReservations() int {
	return b.open
}

// Executing reports whether submitted copies may still be running.
func (b *Buffer) Executing() bool {
	return b.executing
}

// Reserve carves size bytes from the heap.
//
// Parameters:
//   - size: the number of bytes needed
//
// Returns:
//   - Reservation: the writable region
//   - error: ErrInFlight while executing, ErrOutOfMemory when the heap is exhausted
func (b *Buffer) Reserve(size uint64) (Reservation, error) {
	if b.executing {
		return Reservation{}, fmt.Errorf("%w: %s: reserve", ErrInFlight, b.key)
	}
	offset := alignUp(b.head, ReservationAlignment)
	if offset+size > b.Capacity() {
		return Reservation{}, fmt.Errorf("%w: %s: %d bytes requested, %d free", ErrOutOfMemory, b.key, size, b.Capacity()-min(offset, b.Capacity()))
	}
	b.head = offset + size
	b.open++
	return Reservation{Bytes: b.heap.Bytes()[offset : offset+size : offset+size], Offset: offset}, nil
}

func (b *Buffer) commit(mem Reservation) error {
	if b.executing {
		return fmt.Errorf("%w: %s: commit", ErrInFlight, b.key)
	}
	if err := b.heap.Flush(mem.Offset, mem.Size()); err != nil {
		return fmt.Errorf("upload: %s: flush heap: %w", b.key, err)
	}
	b.open = max(b.open-1, 0)
	b.commits++
	return nil
}

// CommitBufferCopy records a copy of a reservation into a buffer.
//
// Parameters:
//   - mem: a reservation from Reserve, fully written
//   - dst: the destination buffer
//   - dstOffset: the byte offset in dst
//
// Returns:
//   - error: ErrInFlight while executing
func (b *Buffer) CommitBufferCopy(mem Reservation, dst gpu.Resource, dstOffset uint64) error {
	if err := b.commit(mem); err != nil {
		return err
	}
	b.rec.CopyBufferRegion(dst, dstOffset, b.heap, mem.Offset, mem.Size())
	return nil
}

// CommitTextureCopy records a copy of a reservation into a texture. The source fields of c are
// filled from mem.
//
// Returns:
//   - error: ErrInFlight while executing
func (b *Buffer) CommitTextureCopy(mem Reservation, c gpu.TextureCopy) error {
	if uint64(c.RowPitch)*uint64(c.Height) > mem.Size() {
		panic(fmt.Sprintf("upload: %s: texture footprint %dx%d exceeds reservation of %d bytes", b.key, c.RowPitch, c.Height, mem.Size()))
	}
	if err := b.commit(mem); err != nil {
		return err
	}
	c.Src = b.heap
	c.SrcOffset = mem.Offset
	b.rec.CopyTextureRegion(c)
	return nil
}

// CopyBufferData stages data and records its copy into dst.
func (b *Buffer) CopyBufferData(data []byte, dst gpu.Resource, dstOffset uint64) error {
	mem, err := b.Reserve(uint64(len(data)))
	if err != nil {
		return err
	}
	copy(mem.Bytes, data)
	return b.CommitBufferCopy(mem, dst, dstOffset)
}

// CopyTextureData stages pixels with rows re-pitched to RequiredRowStride and records the copy.
func (b *Buffer) CopyTextureData(d TextureData) error {
	if d.Width == 0 || d.Height == 0 {
		return nil
	}
	bpp := d.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("upload: %s: format %s has no fixed texel size", b.key, d.Format)
	}
	tight := d.Width * bpp
	srcPitch := d.RowPitch
	if srcPitch == 0 {
		srcPitch = tight
	}
	if srcPitch < tight || uint64(len(d.Pixels)) < uint64(srcPitch)*uint64(d.Height-1)+uint64(tight) {
		return fmt.Errorf("upload: %s: %d bytes of pixels do not cover %dx%d %s", b.key, len(d.Pixels), d.Width, d.Height, d.Format)
	}

	dstPitch := RequiredRowStride(d.Width, bpp)
	mem, err := b.Reserve(uint64(dstPitch) * uint64(d.Height))
	if err != nil {
		return err
	}
	for y := range d.Height {
		src := d.Pixels[y*srcPitch : y*srcPitch+tight]
		copy(mem.Bytes[y*dstPitch:], src)
	}
	return b.CommitTextureCopy(mem, gpu.TextureCopy{
		Dst:      d.Dst,
		MipLevel: d.MipLevel,
		X:        d.X,
		Y:        d.Y,
		RowPitch: dstPitch,
		Width:    d.Width,
		Height:   d.Height,
		Format:   d.Format,
	})
}

// Execute closes the buffer's recorder and submits the recorded copies. It does nothing when no
// copy was committed.
//
// Returns:
//   - error: ErrInFlight if already executing, or an error wrapping gpu.ErrDevice
func (b *Buffer) Execute() error {
	if b.executing {
		return fmt.Errorf("%w: %s: execute", ErrInFlight, b.key)
	}
	if b.commits == 0 {
		return nil
	}
	if b.open > 0 {
		b.logger.Warn("executing with open reservations", "open", b.open)
	}
	if err := b.rec.Close(); err != nil {
		return fmt.Errorf("upload: %s: close: %w", b.key, err)
	}
	marker, err := b.queue.Execute(b.rec)
	if err != nil {
		return err
	}
	b.marker = marker
	b.executing = true
	b.logger.Debug("upload submitted", "bytes", b.head, "copies", b.commits, "marker", marker)
	return nil
}

// Wait blocks until executed copies complete and makes the buffer writable again.
func (b *Buffer) Wait() error {
	if !b.executing {
		return nil
	}
	b.queue.Wait(b.marker)
	return b.reset()
}

// CheckFinished reports without blocking whether the buffer is writable, resetting it when its
// copies have completed.
//
// Returns:
//   - bool: true if the buffer is idle
//   - error: an error from reopening the recorder
func (b *Buffer) CheckFinished() (bool, error) {
	if !b.executing {
		return true, nil
	}
	if !b.queue.IsFinished(b.marker) {
		return false, nil
	}
	return true, b.reset()
}

// ExecuteSync submits the recorded copies and waits for them.
func (b *Buffer) ExecuteSync() error {
	if err := b.Execute(); err != nil {
		return err
	}
	return b.Wait()
}

func (b *Buffer) reset() error {
	b.executing = false
	b.head = 0
	b.open = 0
	b.commits = 0
	if err := b.rec.Reset(); err != nil {
		return fmt.Errorf("upload: %s: reset: %w", b.key, err)
	}
	return nil
}

// Release frees the upload heap. The buffer must not be executing.
func (b *Buffer) Release() {
	if b.executing {
		b.queue.Wait(b.marker)
		b.executing = false
	}
	b.heap.Release()
}

// RequiredRowStride returns the row pitch of a staged texture footprint: the tight row size
// rounded up to RowPitchAlignment.
//
// Parameters:
//   - width: the row width in texels
//   - bytesPerPixel: the texel size
//
// Returns:
//   - uint32: the aligned row pitch
func RequiredRowStride(width, bytesPerPixel uint32) uint32 {
	return uint32(alignUp(uint64(width)*uint64(bytesPerPixel), RowPitchAlignment))
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}
