package renderer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuNativeQueue implements queue.NativeQueue. WebGPU has no fence object: a signal registers a
// work-done callback that advances the completed value, and callbacks fire while the device is polled.
type wgpuNativeQueue struct {
	mu        sync.Mutex
	device    *wgpu.Device
	queue     *wgpu.Queue
	logger    *slog.Logger
	completed uint64
	waiters   map[uint64][]chan<- struct{}
	polling   bool
	lost      bool
}

var _ queue.NativeQueue = &wgpuNativeQueue{}

func newWGPUNativeQueue(device *wgpu.Device, q *wgpu.Queue, log *slog.Logger) *wgpuNativeQueue {
	return &wgpuNativeQueue{
		device:  device,
		queue:   q,
		logger:  log,
		waiters: make(map[uint64][]chan<- struct{}),
	}
}

func (q *wgpuNativeQueue) Submit(rec gpu.Recorder) error {
	r, ok := rec.(*wgpuRecorder)
	if !ok {
		panic(fmt.Sprintf("renderer: recorder %T was not created by the wgpu device", rec))
	}
	q.mu.Lock()
	lost := q.lost
	q.mu.Unlock()
	if lost {
		return fmt.Errorf("%w: queue work failed earlier", gpu.ErrDevice)
	}

	cb, err := r.takeCommands()
	if err != nil {
		return fmt.Errorf("%w: submit: %v", gpu.ErrDevice, err)
	}
	q.queue.Submit(cb)
	cb.Release()
	return nil
}

func (q *wgpuNativeQueue) Signal(value uint64) error {
	q.queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
		if status != wgpu.QueueWorkDoneStatusSuccess {
			q.logger.Error("queue: submitted work did not complete", "fence", value, "status", status)
			q.mu.Lock()
			q.lost = true
			q.mu.Unlock()
		}
		q.complete(value)
	})
	return nil
}

func (q *wgpuNativeQueue) CompletedValue() uint64 {
	q.device.Poll(false, nil)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

func (q *wgpuNativeQueue) NotifyOnCompletion(value uint64, done chan<- struct{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed >= value {
		close(done)
		return nil
	}
	q.waiters[value] = append(q.waiters[value], done)
	if !q.polling {
		q.polling = true
		go q.poll()
	}
	return nil
}

// poll blocks on the device until every waiter has been released.
func (q *wgpuNativeQueue) poll() {
	for {
		q.device.Poll(true, nil)
		q.mu.Lock()
		if len(q.waiters) == 0 {
			q.polling = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
	}
}

func (q *wgpuNativeQueue) complete(value uint64) {
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
