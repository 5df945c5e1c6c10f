package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-reload/common"
	"github.com/Carmen-Shannon/oxy-reload/engine/dirwatch"
	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/profiler"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-reload/engine/window"
)

// Frame is what a Pass records into.
type Frame struct {
	// Renderer owns the back buffer and pipelines.
	Renderer renderer.Renderer
	// Commands is the main command list, recording a render pass on the back buffer.
	Commands *command.CommandList
	// Delta is the time since the previous frame in seconds.
	Delta float32
	// Index counts frames from zero.
	Index uint64
	// Width and Height are the back buffer size in pixels.
	Width, Height int
}

// Pass records one part of a frame.
type Pass interface {
	// Name identifies the pass in logs.
	Name() string

	// Record records the pass's commands.
	//
	// Parameters:
	//   - f: the current frame
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrDevice or shader.ErrToolchain stops the engine; any other
	//     error is logged and the frame continues
	Record(f *Frame) error
}

type passFunc struct {
	name   string
	record func(f *Frame) error
}

func (p *passFunc) Name() string          { return p.name }
func (p *passFunc) Record(f *Frame) error { return p.record(f) }

// PassFunc adapts a function into a Pass.
//
// Parameters:
//   - name: the pass name
//   - record: the function called every frame
//
// Returns:
//   - Pass: the pass
func PassFunc(name string, record func(f *Frame) error) Pass {
	return &passFunc{name: name, record: record}
}

// engine implements the Engine interface.
// Runs the render loop on the window thread and the fixed-rate tick loop in its own goroutine.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	watcher  dirwatch.Watcher
	logger   *slog.Logger

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)

	passes []Pass

	rebuildGeneration atomic.Uint64
	frameIndex        uint64
	lastRender        time.Time

	errMu sync.Mutex
	err   error

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It owns the window, renderer and shader watcher and runs the frame loop over its passes.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer the passes draw with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Watcher returns the shader directory watcher, or nil when watching is off.
	//
	// Returns:
	//   - dirwatch.Watcher: the watcher
	Watcher() dirwatch.Watcher

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddPass appends a pass. Passes record in the order they were added.
	//
	// Parameters:
	//   - p: the pass
	AddPass(p Pass)

	// Passes returns a copy of the registered passes.
	//
	// Returns:
	//   - []Pass: the passes in record order
	Passes() []Pass

	// NewPipeline creates a pipeline that also rebuilds on RequestRebuild and registers it with the renderer.
	//
	// Parameters:
	//   - key: the pipeline key
	//   - pipelineType: graphics or compute
	//   - t: the technique
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline
	NewPipeline(key string, pipelineType gpu.PipelineType, t pipeline.Technique) pipeline.Pipeline

	// Rebuildable wraps t so that it rebuilds once after every RequestRebuild.
	//
	// Parameters:
	//   - t: the technique
	//
	// Returns:
	//   - pipeline.Technique: the wrapped technique
	Rebuildable(t pipeline.Technique) pipeline.Technique

	// RequestRebuild makes every Rebuildable technique rebuild on its next Bind. The R key calls it.
	RequestRebuild()

	// RenderFrame runs one frame: resize if needed, begin, passes, end, present, then refresh the
	// shader watcher.
	//
	// Parameters:
	//   - dt: the time since the previous frame in seconds
	//
	// Returns:
	//   - error: a fatal error; recoverable errors are logged
	RenderFrame(dt float32) error

	// Run runs the frame loop until the window closes or a fatal error occurs, then releases the
	// renderer and the watcher.
	//
	// Returns:
	//   - error: the fatal error that stopped the loop, or nil
	Run() error

	// Quit signals all engine goroutines to stop and closes the window.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Err returns the fatal error that stopped the loop.
	//
	// Returns:
	//   - error: the error, or nil
	Err() error
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// A window and a renderer are required.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the window or renderer is missing
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		running:          false,
		wg:               sync.WaitGroup{},
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil || e.renderer == nil {
		return nil, errors.New("engine: a window and a renderer are required")
	}
	e.logger = logger.Or(e.logger)
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(
			profiler.WithCounters(e.renderer.Context().Counters),
			profiler.WithLogger(e.logger),
		)
	}

	e.window.SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.KeyR, common.KeyF5:
			e.logger.Info("rebuild requested")
			e.RequestRebuild()
		case common.KeyP:
			if e.profilingEnabled {
				e.DisableProfiler()
			} else {
				e.EnableProfiler()
			}
		case common.KeyEsc:
			e.Quit()
		}
	})

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Watcher() dirwatch.Watcher {
	return e.watcher
}

func (e *engine) AddPass(p Pass) {
	e.passes = append(e.passes, p)
}

func (e *engine) Passes() []Pass {
	cp := make([]Pass, len(e.passes))
	copy(cp, e.passes)
	return cp
}

func (e *engine) NewPipeline(key string, pipelineType gpu.PipelineType, t pipeline.Technique) pipeline.Pipeline {
	p := pipeline.NewPipeline(key, e.renderer.Context(), pipelineType, e.Rebuildable(t),
		pipeline.WithLogger(e.logger))
	e.renderer.RegisterPipelines(p)
	return p
}

func (e *engine) Rebuildable(t pipeline.Technique) pipeline.Technique {
	seen := e.rebuildGeneration.Load()
	return pipeline.WithRebuildHook(t, func() bool {
		g := e.rebuildGeneration.Load()
		if g == seen {
			return false
		}
		seen = g
		return true
	})
}

func (e *engine) RequestRebuild() {
	e.rebuildGeneration.Add(1)
}

// IsFatal reports whether err means the device or the shader toolchain is broken.
//
// Parameters:
//   - err: the error
//
// Returns:
//   - bool: true if the process should stop
func IsFatal(err error) bool {
	return errors.Is(err, gpu.ErrDevice) || errors.Is(err, shader.ErrToolchain)
}

func (e *engine) RenderFrame(dt float32) error {
	// Minimized; the restore reports a resize.
	if e.window.Width() == 0 || e.window.Height() == 0 {
		return nil
	}
	if w, h, ok := e.window.TakeResize(); ok {
		if err := e.renderer.Resize(w, h); err != nil {
			return fmt.Errorf("engine: resize: %w", err)
		}
		e.logger.Debug("resized", "width", w, "height", h)
	}

	if err := e.renderer.BeginFrame(); err != nil {
		if IsFatal(err) {
			return err
		}
		// Surface loss is recovered by the next resize.
		e.logger.Warn("frame skipped", "err", err)
		return nil
	}

	f := &Frame{
		Renderer: e.renderer,
		Commands: e.renderer.CommandList(),
		Delta:    dt,
		Index:    e.frameIndex,
		Width:    e.window.Width(),
		Height:   e.window.Height(),
	}
	var passErr error
	for _, p := range e.passes {
		if err := p.Record(f); err != nil {
			if IsFatal(err) {
				passErr = fmt.Errorf("engine: pass %s: %w", p.Name(), err)
				break
			}
			e.logger.Warn("pass failed", "pass", p.Name(), "err", err)
		}
	}

	if err := e.renderer.EndFrame(); err != nil {
		return err
	}
	e.renderer.Present()
	e.frameIndex++
	if passErr != nil {
		return passErr
	}

	for key, p := range e.renderer.Pipelines() {
		if err := p.Err(); err != nil && IsFatal(err) {
			return fmt.Errorf("engine: pipeline %s: %w", key, err)
		}
	}

	if e.watcher != nil && e.watcher.Refresh() {
		e.logger.Debug("shader sources changed", "revision", e.watcher.CurrentRevision())
	}
	return nil
}

func (e *engine) Run() error {
	e.running = true
	e.wg.Add(1)
	go e.handleEngine()

	e.lastRender = time.Now()
	e.window.SetUpdateCallback(e.frame)
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
	e.shutdown()
	return e.Err()
}

// frame is the window update callback.
func (e *engine) frame() {
	select {
	case <-e.quitChannel:
		return
	default:
	}

	now := time.Now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	if err := e.RenderFrame(dt); err != nil {
		e.fail(err)
		return
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}

	// Frame rate limiting
	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.logger.Error("fatal error, stopping", "err", err)
	e.Quit()
}

func (e *engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *engine) shutdown() {
	e.renderer.Release()
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.logger.Warn("closing watcher", "err", err)
		}
	}
	if err := e.window.Close(); err != nil {
		e.logger.Warn("closing window", "err", err)
	}
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
	e.window.RequestClose()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if !e.running {
		e.engineTickRate = newRate
		return
	}
	// Replace any pending update.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}
