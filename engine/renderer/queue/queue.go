// Package queue wraps a native command queue and its fence.
package queue

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
)

// NativeQueue is the fence primitive of a backend queue.
type NativeQueue interface {
	// Submit executes a closed recorder.
	//
	// Parameters:
	//   - rec: the closed recorder
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrDevice
	Submit(rec gpu.Recorder) error

	// Signal sets the fence to value once all previously submitted work completes.
	Signal(value uint64) error

	// CompletedValue returns the last fence value reached by the GPU.
	CompletedValue() uint64

	// NotifyOnCompletion closes done once the fence reaches value.
	//
	// Returns:
	//   - error: non-nil if the backend cannot register a notification; callers then poll
	NotifyOnCompletion(value uint64, done chan<- struct{}) error
}

// Queue submits recorded work and hands out monotonically increasing fence markers.
type Queue struct {
	native NativeQueue
	fence  uint64
	logger *slog.Logger
}

// NewQueue wraps a native queue. The fence starts at zero.
//
// Parameters:
//   - native: the backend queue
//   - opts: optional QueueBuilderOption values
//
// Returns:
//   - *Queue: the queue
func NewQueue(native NativeQueue, opts ...QueueBuilderOption) *Queue {
	if native == nil {
		panic("queue: NewQueue needs a native queue")
	}
	q := &Queue{native: native}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logger.Or(q.logger)
	return q
}

// Native returns the wrapped backend queue.
func (q *Queue) Native() NativeQueue {
	return q.native
}

// Fence returns the last marker handed out.
func (q *Queue) Fence() uint64 {
	return q.fence
}

// Execute submits a closed recorder and signals the next fence value.
//
// Parameters:
//   - rec: the closed recorder
//
// Returns:
//   - uint64: the marker to Wait on for this work
//   - error: an error wrapping gpu.ErrDevice
func (q *Queue) Execute(rec gpu.Recorder) (uint64, error) {
	if err := q.native.Submit(rec); err != nil {
		return 0, fmt.Errorf("queue: submit: %w", err)
	}
	return q.signal()
}

func (q *Queue) signal() (uint64, error) {
	q.fence++
	if err := q.native.Signal(q.fence); err != nil {
		return 0, fmt.Errorf("queue: signal %d: %w", q.fence, err)
	}
	return q.fence, nil
}

// IsFinished reports without blocking whether the work behind marker has completed.
func (q *Queue) IsFinished(marker uint64) bool {
	return q.native.CompletedValue() >= marker
}

// Wait blocks until the work behind marker has completed. It registers for a completion
// notification and falls back to polling when the backend cannot notify. There is no timeout.
func (q *Queue) Wait(marker uint64) {
	if q.IsFinished(marker) {
		return
	}
	done := make(chan struct{})
	if err := q.native.NotifyOnCompletion(marker, done); err == nil {
		<-done
		return
	}
	q.logger.Debug("fence notification unavailable, polling", "marker", marker)
	for !q.IsFinished(marker) {
		runtime.Gosched()
	}
}

// Flush signals the fence and waits for it count times, draining all in-flight work.
//
// Parameters:
//   - count: the number of signal and wait rounds
//
// Returns:
//   - error: an error wrapping gpu.ErrDevice
func (q *Queue) Flush(count int) error {
	for range count {
		marker, err := q.signal()
		if err != nil {
			return err
		}
		q.Wait(marker)
	}
	return nil
}
