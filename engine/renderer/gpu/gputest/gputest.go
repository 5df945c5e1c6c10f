// Package gputest provides in-memory fakes of the gpu interfaces for tests.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
)

// Resource is a fake buffer or texture that counts releases.
type Resource struct {
	Name     string
	Released int
}

func (r *Resource) Label() string { return r.Name }
func (r *Resource) Release()      { r.Released++ }

// RootSignature is a fake root signature remembering the blob it was created from.
type RootSignature struct {
	Blob     []byte
	Released int
}

func (r *RootSignature) Release() { r.Released++ }

// PipelineObject is a fake pipeline remembering its description.
type PipelineObject struct {
	Desc     gpu.Description
	Released int
}

func (p *PipelineObject) Release() { p.Released++ }

func (p *PipelineObject) Type() gpu.PipelineType { return p.Desc.PipelineType() }

// Device is a fake gpu.Device and gpu.Allocator with failure injection.
type Device struct {
	RootSignatures []*RootSignature
	Pipelines      []*PipelineObject

	// FailRootSignature and FailPipeline make the next creations fail with the given error.
	FailRootSignature error
	FailPipeline      error
}

var (
	_ gpu.Device    = &Device{}
	_ gpu.Allocator = &Device{}
)

func (d *Device) CreateRootSignature(blob []byte) (gpu.RootSignature, error) {
	if d.FailRootSignature != nil {
		return nil, d.FailRootSignature
	}
	rs := &RootSignature{Blob: append([]byte(nil), blob...)}
	d.RootSignatures = append(d.RootSignatures, rs)
	return rs, nil
}

func (d *Device) CreatePipelineObject(desc gpu.Description) (gpu.PipelineObject, error) {
	if d.FailPipeline != nil {
		return nil, d.FailPipeline
	}
	p := &PipelineObject{Desc: cloneDescription(desc)}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Resource, error) {
	return &Resource{Name: desc.Label}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Resource, error) {
	return &Resource{Name: desc.Label}, nil
}

func (d *Device) CreateUploadHeap(label string, size uint64) (gpu.UploadHeap, error) {
	return &UploadHeap{Resource: Resource{Name: label}, Data: make([]byte, size)}, nil
}

// Live returns the number of pipelines that have not been released.
func (d *Device) Live() int {
	n := 0
	for _, p := range d.Pipelines {
		if p.Released == 0 {
			n++
		}
	}
	return n
}

func cloneDescription(desc gpu.Description) gpu.Description {
	switch d := desc.(type) {
	case *gpu.GraphicsDescription:
		c := *d
		c.InputLayout = append([]gpu.InputElement(nil), d.InputLayout...)
		c.StreamOutput.Entries = append([]gpu.StreamOutputEntry(nil), d.StreamOutput.Entries...)
		c.StreamOutput.Strides = append([]uint32(nil), d.StreamOutput.Strides...)
		return &c
	case *gpu.ComputeDescription:
		c := *d
		return &c
	default:
		panic(fmt.Sprintf("gputest: unknown description %T", desc))
	}
}

// UploadHeap is a fake upload heap backed by a Go slice.
type UploadHeap struct {
	Resource
	Data    []byte
	Flushes [][2]uint64
}

func (h *UploadHeap) Bytes() []byte { return h.Data }

func (h *UploadHeap) Flush(offset, size uint64) error {
	if offset+size > uint64(len(h.Data)) {
		return errors.New("gputest: flush out of range")
	}
	h.Flushes = append(h.Flushes, [2]uint64{offset, size})
	return nil
}

// BufferCopy is a recorded CopyBufferRegion call.
type BufferCopy struct {
	Dst       gpu.Resource
	DstOffset uint64
	Src       gpu.Resource
	SrcOffset uint64
	Size      uint64
}

// Recorder is a fake gpu.Recorder that records every call.
type Recorder struct {
	Calls          []string
	Barriers       [][]gpu.Transition
	Pipeline       gpu.PipelineObject
	RootSignatures map[gpu.PipelineType]gpu.RootSignature
	RenderTargets  []gpu.RenderTargetBinding
	Depth          *gpu.DepthStencilBinding
	Viewports      []gpu.Viewport
	Scissors       []gpu.Rect
	Topology       gpu.PrimitiveTopology
	BufferCopies   []BufferCopy
	TextureCopies  []gpu.TextureCopy
	Constants      map[uint32][]uint32
	Closed         bool
	Resets         int
}

var _ gpu.Recorder = &Recorder{}

// NewRecorder creates an open fake recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		RootSignatures: make(map[gpu.PipelineType]gpu.RootSignature),
		Constants:      make(map[uint32][]uint32),
	}
}

func (r *Recorder) call(format string, args ...any) {
	if r.Closed {
		panic("gputest: recording into a closed recorder")
	}
	r.Calls = append(r.Calls, fmt.Sprintf(format, args...))
}

// Count returns how many recorded calls start with name.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls {
		if len(c) >= len(name) && c[:len(name)] == name {
			n++
		}
	}
	return n
}

func (r *Recorder) ResourceBarrier(transitions []gpu.Transition) {
	r.call("ResourceBarrier %d", len(transitions))
	r.Barriers = append(r.Barriers, append([]gpu.Transition(nil), transitions...))
}

func (r *Recorder) SetPipelineState(p gpu.PipelineObject) {
	r.call("SetPipelineState")
	r.Pipeline = p
}

func (r *Recorder) SetRootSignature(t gpu.PipelineType, rs gpu.RootSignature) {
	r.call("SetRootSignature %s", t)
	r.RootSignatures[t] = rs
}

func (r *Recorder) SetRootConstants(t gpu.PipelineType, index uint32, values []uint32, destOffset uint32) {
	r.call("SetRootConstants %s %d", t, index)
	r.Constants[index] = append([]uint32(nil), values...)
}

func (r *Recorder) SetRootView(t gpu.PipelineType, index uint32, kind gpu.RootViewKind, buf gpu.Resource, offset uint64) {
	r.call("SetRootView %s %d %d", t, index, kind)
}

func (r *Recorder) SetRootDescriptorTable(t gpu.PipelineType, index uint32, table gpu.DescriptorTable) {
	r.call("SetRootDescriptorTable %s %d", t, index)
}

func (r *Recorder) SetRenderTargets(targets []gpu.RenderTargetBinding, depth *gpu.DepthStencilBinding) {
	r.call("SetRenderTargets %d", len(targets))
	r.RenderTargets = append([]gpu.RenderTargetBinding(nil), targets...)
	r.Depth = depth
}

func (r *Recorder) IASetVertexBuffers(startSlot uint32, views []gpu.VertexBufferView) {
	r.call("IASetVertexBuffers %d %d", startSlot, len(views))
}

func (r *Recorder) IASetIndexBuffer(view *gpu.IndexBufferView) {
	r.call("IASetIndexBuffer")
}

func (r *Recorder) IASetPrimitiveTopology(t gpu.PrimitiveTopology) {
	r.call("IASetPrimitiveTopology %d", t)
	r.Topology = t
}

func (r *Recorder) SOSetTargets(startSlot uint32, views []gpu.StreamOutputView) {
	r.call("SOSetTargets %d %d", startSlot, len(views))
}

func (r *Recorder) RSSetViewports(viewports []gpu.Viewport) {
	r.call("RSSetViewports %d", len(viewports))
	r.Viewports = append([]gpu.Viewport(nil), viewports...)
}

func (r *Recorder) RSSetScissorRects(rects []gpu.Rect) {
	r.call("RSSetScissorRects %d", len(rects))
	r.Scissors = append([]gpu.Rect(nil), rects...)
}

func (r *Recorder) OMSetBlendFactor(factor [4]float32) { r.call("OMSetBlendFactor") }
func (r *Recorder) OMSetStencilRef(ref uint32)         { r.call("OMSetStencilRef %d", ref) }
func (r *Recorder) OMSetDepthBounds(min, max float32)  { r.call("OMSetDepthBounds") }

func (r *Recorder) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	r.call("DrawInstanced %d %d", vertexCount, instanceCount)
}

func (r *Recorder) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	r.call("DrawIndexedInstanced %d %d", indexCount, instanceCount)
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	r.call("Dispatch %d %d %d", x, y, z)
}

func (r *Recorder) CopyBufferRegion(dst gpu.Resource, dstOffset uint64, src gpu.Resource, srcOffset, size uint64) {
	r.call("CopyBufferRegion")
	r.BufferCopies = append(r.BufferCopies, BufferCopy{Dst: dst, DstOffset: dstOffset, Src: src, SrcOffset: srcOffset, Size: size})
}

func (r *Recorder) CopyTextureRegion(c gpu.TextureCopy) {
	r.call("CopyTextureRegion")
	r.TextureCopies = append(r.TextureCopies, c)
}

func (r *Recorder) Close() error {
	r.call("Close")
	r.Closed = true
	return nil
}

func (r *Recorder) Reset() error {
	r.Closed = false
	r.Resets++
	r.Calls = append(r.Calls, "Reset")
	return nil
}

// Queue is a fake native queue whose fence completes when Complete is called,
// or immediately when AutoComplete is set.
type Queue struct {
	mu           sync.Mutex
	completed    uint64
	signaled     uint64
	waiters      map[uint64][]chan struct{}
	Submitted    []gpu.Recorder
	AutoComplete bool
	// FailNotify makes NotifyOnCompletion fail, forcing the busy-poll path.
	FailNotify bool
	Polls      int
}

// NewQueue creates a fake queue.
func NewQueue(autoComplete bool) *Queue {
	return &Queue{waiters: make(map[uint64][]chan struct{}), AutoComplete: autoComplete}
}

func (q *Queue) Submit(rec gpu.Recorder) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Submitted = append(q.Submitted, rec)
	return nil
}

func (q *Queue) Signal(value uint64) error {
	q.mu.Lock()
	q.signaled = value
	q.mu.Unlock()
	if q.AutoComplete {
		q.Complete(value)
	}
	return nil
}

func (q *Queue) CompletedValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Polls++
	return q.completed
}

func (q *Queue) NotifyOnCompletion(value uint64, done chan<- struct{}) error {
	if q.FailNotify {
		return errors.New("gputest: notify unavailable")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed >= value {
		close(done)
		return nil
	}
	ch := make(chan struct{})
	q.waiters[value] = append(q.waiters[value], ch)
	go func() {
		<-ch
		close(done)
	}()
	return nil
}

// Complete advances the completed fence value and wakes matching waiters.
func (q *Queue) Complete(value uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if value > q.completed {
		q.completed = value
	}
	for v, chs := range q.waiters {
		if v <= q.completed {
			for _, ch := range chs {
				close(ch)
			}
			delete(q.waiters, v)
		}
	}
}

// Signaled returns the last signalled fence value.
func (q *Queue) Signaled() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.signaled
}
