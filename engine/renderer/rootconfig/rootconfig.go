// Package rootconfig describes the per-draw root arguments bound alongside a pipeline's root
// signature.
package rootconfig

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
)

// Capacity is the maximum number of entries in a RootConfiguration.
const Capacity = 32

// ErrCapacityExceeded is returned when a configuration would hold more than Capacity entries.
var ErrCapacityExceeded = errors.New("rootconfig: capacity exceeded")

// Entry is one root argument. The root parameter index is the entry's position in the configuration.
type Entry interface {
	bind(rec gpu.Recorder, t gpu.PipelineType, index uint32)
}

// RootConstants are 32-bit values written directly into the root arguments.
type RootConstants struct {
	Values     []uint32
	DestOffset uint32
}

func (e RootConstants) bind(rec gpu.Recorder, t gpu.PipelineType, index uint32) {
	rec.SetRootConstants(t, index, e.Values, e.DestOffset)
}

// ConstantBufferView binds a buffer range as uniform data.
type ConstantBufferView struct {
	Buffer gpu.Resource
	Offset uint64
}

func (e ConstantBufferView) bind(rec gpu.Recorder, t gpu.PipelineType, index uint32) {
	rec.SetRootView(t, index, gpu.RootViewConstantBuffer, e.Buffer, e.Offset)
}

// ShaderResourceView binds a buffer range as read-only storage.
type ShaderResourceView struct {
	Buffer gpu.Resource
	Offset uint64
}

func (e ShaderResourceView) bind(rec gpu.Recorder, t gpu.PipelineType, index uint32) {
	rec.SetRootView(t, index, gpu.RootViewShaderResource, e.Buffer, e.Offset)
}

// UnorderedAccessView binds a buffer range as read/write storage.
type UnorderedAccessView struct {
	Buffer gpu.Resource
	Offset uint64
}

func (e UnorderedAccessView) bind(rec gpu.Recorder, t gpu.PipelineType, index uint32) {
	rec.SetRootView(t, index, gpu.RootViewUnorderedAccess, e.Buffer, e.Offset)
}

// DescriptorTable binds a group of descriptors.
type DescriptorTable struct {
	Table gpu.DescriptorTable
}

func (e DescriptorTable) bind(rec gpu.Recorder, t gpu.PipelineType, index uint32) {
	rec.SetRootDescriptorTable(t, index, e.Table)
}

// RootConfiguration is an ordered list of root arguments for one pipeline type.
type RootConfiguration struct {
	pipelineType gpu.PipelineType
	entries      [Capacity]Entry
	n            int
}

// NewRootConfiguration creates a configuration holding entries in order.
//
// Parameters:
//   - t: whether the arguments are bound to the graphics or compute root signature
//   - entries: the initial entries
//
// Returns:
//   - *RootConfiguration: the configuration
//   - error: ErrCapacityExceeded when len(entries) > Capacity
func NewRootConfiguration(t gpu.PipelineType, entries []Entry) (*RootConfiguration, error) {
	rc := &RootConfiguration{pipelineType: t}
	for _, e := range entries {
		if err := rc.PushBack(e); err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// Type returns the pipeline type the configuration binds to.
func (rc *RootConfiguration) Type() gpu.PipelineType {
	return rc.pipelineType
}

// PushBack appends an entry.
//
// Returns:
//   - error: ErrCapacityExceeded when the configuration is full
func (rc *RootConfiguration) PushBack(e Entry) error {
	if e == nil {
		panic("rootconfig: nil entry")
	}
	if rc.n == Capacity {
		return fmt.Errorf("%w: more than %d entries", ErrCapacityExceeded, Capacity)
	}
	rc.entries[rc.n] = e
	rc.n++
	return nil
}

// At returns entry i. It panics when i is out of range.
func (rc *RootConfiguration) At(i int) Entry {
	if i < 0 || i >= rc.n {
		panic(fmt.Sprintf("rootconfig: index %d out of range [0, %d)", i, rc.n))
	}
	return rc.entries[i]
}

// Len returns the number of entries.
func (rc *RootConfiguration) Len() int {
	return rc.n
}

// Bind records every entry as the root parameter at its index.
func (rc *RootConfiguration) Bind(rec gpu.Recorder) {
	for i := range rc.n {
		rc.entries[i].bind(rec, rc.pipelineType, uint32(i))
	}
}
