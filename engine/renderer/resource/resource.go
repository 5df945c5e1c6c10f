// Package resource tracks the state of native GPU resources so transitions are only recorded when
// a resource's usage actually changes.
package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
)

// BarrierQueue hands out writable transition slots. command.BarrierBatcher implements it.
type BarrierQueue interface {
	// PeekAndPush reserves the next transition slot, flushing first when the queue is full.
	//
	// Returns:
	//   - *gpu.Transition: the slot to fill; valid until the next PeekAndPush or flush
	PeekAndPush() *gpu.Transition
}

// TrackedResource pairs a native resource with the state it will be in once every queued barrier
// has executed.
type TrackedResource struct {
	res   *gpu.Ref[gpu.Resource]
	state gpu.ResourceState
}

// NewTrackedResource takes ownership of res, which is currently in state.
//
// Parameters:
//   - res: the native resource
//   - state: the resource's current state
//
// Returns:
//   - *TrackedResource: the tracked resource
func NewTrackedResource(res gpu.Resource, state gpu.ResourceState) *TrackedResource {
	if res == nil {
		panic("resource: NewTrackedResource needs a resource")
	}
	return &TrackedResource{res: gpu.NewRef(res), state: state}
}

// Resource returns the native resource, nil after Release.
func (t *TrackedResource) Resource() gpu.Resource {
	if !t.res.Valid() {
		return nil
	}
	return t.res.Get()
}

// State returns the tracked post-barrier state.
func (t *TrackedResource) State() gpu.ResourceState {
	return t.state
}

// SetState overrides the tracked state without recording a barrier, for transitions performed
// outside the queue such as presentation.
func (t *TrackedResource) SetState(state gpu.ResourceState) {
	t.state = state
}

// EnsureResourceState queues a transition of the whole resource to desired unless it is already
// there.
//
// Parameters:
//   - q: the queue receiving the transition
//   - desired: the state the resource must be in for its next use
//
// Returns:
//   - bool: true if a transition was queued
func (t *TrackedResource) EnsureResourceState(q BarrierQueue, desired gpu.ResourceState) bool {
	if t.state == desired {
		return false
	}
	if !t.res.Valid() {
		panic(fmt.Sprintf("resource: transition of released resource to %s", desired))
	}
	slot := q.PeekAndPush()
	*slot = gpu.Transition{
		Resource:    t.res.Get(),
		Subresource: gpu.AllSubresources,
		Before:      t.state,
		After:       desired,
		Flags:       gpu.BarrierFlagNone,
	}
	t.state = desired
	return true
}

// Clone returns a second tracked handle sharing the native resource. The clone starts from the
// current tracked state and tracks independently.
func (t *TrackedResource) Clone() *TrackedResource {
	return &TrackedResource{res: t.res.Clone(), state: t.state}
}

// Release drops this handle's reference to the native resource.
func (t *TrackedResource) Release() {
	t.res.Release()
}
