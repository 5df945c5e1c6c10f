package renderer

import (
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-reload/engine/dirwatch"
	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/queue"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/upload"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultUploadSize is the upload buffer capacity used when WithUploadSize is not given.
const DefaultUploadSize = 16 << 20

// Surface is the part of a window the renderer presents into.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backend  RendererBackend
	ctx      *gfx.Context
	queue    *queue.Queue
	recorder *wgpuRecorder
	commands *command.CommandList
	uploads  *upload.Buffer
	staging  *wgpuRecorder

	backBuffer *resource.TrackedResource
	backView   gpu.View
	depth      *resource.TrackedResource
	depthView  gpu.View

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	depthFormat          gpu.Format
	uploadSize           uint64
	clearColor           [4]float64
	logger               *slog.Logger
	revisions            dirwatch.RevisionSource
	shaders              *shader.Environment
	counters             *gfx.Counters
}

// Renderer owns the device, queue, main command list and upload buffer, and drives the per-frame
// flow of acquiring, rendering into and presenting the back buffer.
//
// The Renderer also keeps a cache of Pipelines by key. Pipelines build their native objects lazily
// on the first Bind, so registering one creates nothing on the GPU.
type Renderer interface {
	// Context returns the context shared with pipelines, shaders and command lists.
	//
	// Returns:
	//   - *gfx.Context: the context
	Context() *gfx.Context

	// Queue returns the fence-tracked graphics queue.
	//
	// Returns:
	//   - *queue.Queue: the queue
	Queue() *queue.Queue

	// CommandList returns the main command list. Between BeginFrame and EndFrame it is recording a
	// render pass on the back buffer.
	//
	// Returns:
	//   - *command.CommandList: the command list
	CommandList() *command.CommandList

	// Uploads returns the upload buffer used for buffer and texture initialization.
	//
	// Returns:
	//   - *upload.Buffer: the upload buffer
	Uploads() *upload.Buffer

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines caches one or more pipelines by key. Keys that are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	RegisterPipelines(pipelines ...pipeline.Pipeline)

	// Format returns the back buffer format render pipelines must target.
	//
	// Returns:
	//   - gpu.Format: the back buffer format
	Format() gpu.Format

	// DepthFormat returns the depth attachment format render pipelines must target.
	//
	// Returns:
	//   - gpu.Format: the depth format
	DepthFormat() gpu.Format

	// SampleCount returns the MSAA sample count render pipelines must use.
	//
	// Returns:
	//   - uint32: the sample count
	SampleCount() uint32

	// Resize waits for the GPU to drain two frames, then reconfigures the surface and its attachments.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrDevice
	Resize(width, height int) error

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the back buffer and begins a render pass on it and the depth attachment,
	// both cleared.
	//
	// Returns:
	//   - error: an error if the back buffer could not be acquired
	BeginFrame() error

	// BackBuffer returns the render target of the current frame with a load action, for passes that
	// rebind it after rendering elsewhere. The target restores to Present.
	//
	// Returns:
	//   - command.RenderTarget: the back buffer target
	//   - *command.DepthTarget: the depth target
	BackBuffer() (command.RenderTarget, *command.DepthTarget)

	// EndFrame ends the open render pass and executes the command list synchronously.
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrDevice
	EndFrame() error

	// Present presents the back buffer to the display.
	Present()

	// CreateTextureView creates a sampled view of a texture for a descriptor table.
	//
	// Parameters:
	//   - res: a texture created by the context allocator
	//
	// Returns:
	//   - *wgpu.TextureView: the view
	//   - error: an error wrapping gpu.ErrDevice
	CreateTextureView(res gpu.Resource) (*wgpu.TextureView, error)

	// CreateSampler creates a sampler for a descriptor table.
	//
	// Parameters:
	//   - desc: the sampler descriptor
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler
	//   - error: an error wrapping gpu.ErrDevice
	CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error)

	// WriteBuffers writes small per-frame updates, such as constants, straight through the queue.
	// The writes land before the next submitted command list executes.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []BufferWrite)

	// Release drains the queue and releases every pipeline, the command list, the upload buffer and
	// the device.
	Release()
}

var _ Renderer = &renderer{}

// BufferWrite is one queue write into a buffer created by the context allocator.
type BufferWrite struct {
	Buffer gpu.Resource
	Offset uint64
	Data   []byte
}

// NewRenderer creates the device and swapchain for a surface and the core components on top of them.
//
// Parameters:
//   - surface: the window to present into
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error wrapping gpu.ErrDevice or gpu.ErrUnsupported
func NewRenderer(surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		depthFormat:   gpu.FormatD32Float,
		uploadSize:    DefaultUploadSize,
		clearColor:    [4]float64{0.1, 0.1, 0.1, 1},
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	r.logger = logger.Or(r.logger)
	if r.counters == nil {
		r.counters = &gfx.Counters{}
	}
	if r.revisions == nil {
		// Without a watcher, shaders refresh only when a technique asks.
		r.revisions = &dirwatch.Counter{}
	}

	msaa := MSAAOff
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	backend, err := newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, msaa, r.depthFormat, r.logger)
	if err != nil {
		return nil, err
	}
	r.backend = backend

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.configure(surface.Width(), surface.Height()); err != nil {
		r.backend.Release()
		return nil, err
	}

	dev := r.backend.Device()
	r.ctx = &gfx.Context{
		Device:    dev,
		Allocator: dev,
		Revisions: r.revisions,
		Shaders:   r.shaders,
		Counters:  r.counters,
		Logger:    r.logger,
	}
	r.queue = queue.NewQueue(r.backend.NativeQueue(), queue.WithLogger(r.logger))

	if r.recorder, err = r.backend.NewRecorder(); err != nil {
		r.backend.Release()
		return nil, err
	}
	r.commands = command.NewCommandList("main", r.ctx, r.recorder)

	if r.staging, err = r.backend.NewRecorder(); err != nil {
		r.recorder.Release()
		r.backend.Release()
		return nil, err
	}
	if r.uploads, err = upload.NewBuffer("uploads", r.ctx, r.queue, r.staging, r.uploadSize); err != nil {
		r.staging.Release()
		r.recorder.Release()
		r.backend.Release()
		return nil, err
	}

	r.logger.Info("renderer: ready",
		"format", r.backend.Format(),
		"depth", r.backend.DepthFormat(),
		"msaa", r.backend.SampleCount(),
		"width", surface.Width(),
		"height", surface.Height(),
	)
	return r, nil
}

// configure sets up the surface and wraps the new depth attachment.
func (r *renderer) configure(width, height int) error {
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return err
	}
	tex, view := r.backend.DepthTarget()
	r.depth = resource.NewTrackedResource(tex, gpu.StateDepthWrite)
	r.depthView = view
	return nil
}

func (r *renderer) Context() *gfx.Context {
	return r.ctx
}

func (r *renderer) Queue() *queue.Queue {
	return r.queue
}

func (r *renderer) CommandList() *command.CommandList {
	return r.commands
}

func (r *renderer) Uploads() *upload.Buffer {
	return r.uploads
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		if _, exists := r.pipelineCache[p.Key()]; exists {
			continue
		}
		r.pipelineCache[p.Key()] = p
	}
}

func (r *renderer) Format() gpu.Format {
	return r.backend.Format()
}

func (r *renderer) DepthFormat() gpu.Format {
	return r.backend.DepthFormat()
}

func (r *renderer) SampleCount() uint32 {
	return r.backend.SampleCount()
}

func (r *renderer) Resize(width, height int) error {
	// The attachments may still be referenced by in-flight frames.
	if err := r.queue.Flush(2); err != nil {
		return err
	}
	if err := r.configure(width, height); err != nil {
		return err
	}
	r.logger.Debug("renderer: resized", "width", width, "height", height)
	return nil
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) BeginFrame() error {
	tex, view, err := r.backend.AcquireBackBuffer()
	if err != nil {
		return err
	}
	r.backBuffer = resource.NewTrackedResource(tex, gpu.StatePresent)
	r.backView = view

	r.commands.BeginRender(
		[]command.RenderTarget{{
			Target:       r.backBuffer,
			View:         r.backView,
			Load:         gpu.LoadActionClear,
			ClearColor:   r.clearColor,
			RestoreState: gpu.StatePresent,
		}},
		&command.DepthTarget{
			Target:       r.depth,
			View:         r.depthView,
			Load:         gpu.LoadActionClear,
			ClearDepth:   1,
			RestoreState: gpu.StateDepthWrite,
		},
	)
	return nil
}

func (r *renderer) BackBuffer() (command.RenderTarget, *command.DepthTarget) {
	return command.RenderTarget{
			Target:       r.backBuffer,
			View:         r.backView,
			Load:         gpu.LoadActionLoad,
			RestoreState: gpu.StatePresent,
		}, &command.DepthTarget{
			Target:       r.depth,
			View:         r.depthView,
			Load:         gpu.LoadActionLoad,
			RestoreState: gpu.StateDepthWrite,
		}
}

func (r *renderer) EndFrame() error {
	if r.commands.Rendering() {
		r.commands.EndRender()
	}
	return r.commands.ExecuteSync(r.queue)
}

func (r *renderer) Present() {
	r.backend.Present()
	r.backBuffer = nil
	r.backView = nil
}

func (r *renderer) CreateTextureView(res gpu.Resource) (*wgpu.TextureView, error) {
	return r.backend.CreateTextureView(res)
}

func (r *renderer) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return r.backend.CreateSampler(desc)
}

func (r *renderer) WriteBuffers(writes []BufferWrite) {
	for _, w := range writes {
		if w.Buffer == nil || len(w.Data) == 0 {
			continue
		}
		r.backend.WriteBuffer(nativeBuffer(w.Buffer), w.Offset, w.Data)
	}
}

func (r *renderer) Release() {
	if err := r.queue.Flush(2); err != nil {
		r.logger.Warn("renderer: drain before release", "error", err)
	}

	r.mu.Lock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()

	r.uploads.Release()
	r.staging.Release()
	r.recorder.Release()
	r.backend.Release()
	r.depth, r.depthView = nil, nil
}
