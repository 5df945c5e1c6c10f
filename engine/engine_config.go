package engine

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-reload/engine/config"
	"github.com/Carmen-Shannon/oxy-reload/engine/dirwatch"
	"github.com/Carmen-Shannon/oxy-reload/engine/logger"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-reload/engine/window"
)

// NewEngineFromConfig builds the whole application a configuration describes: the process logger,
// the window, the shader watcher and environment, the renderer, and one registered pipeline per
// technique keyed by technique name.
//
// Parameters:
//   - cfg: the configuration, usually from config.Load
//   - options: further engine options, applied after the configured ones
//
// Returns:
//   - Engine: the engine
//   - error: an error wrapping gpu.ErrDevice, or a technique or cache error
func NewEngineFromConfig(cfg *config.Config, options ...EngineBuilderOption) (Engine, error) {
	log := logger.NewText(logger.ParseLevel(cfg.Log.Level))
	logger.SetLogger(log)

	w := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithMinSize(cfg.Window.MinWidth, cfg.Window.MinHeight),
		window.WithMaxSize(cfg.Window.MaxWidth, cfg.Window.MaxHeight),
	)

	var watcher dirwatch.Watcher
	var revisions dirwatch.RevisionSource = &dirwatch.Counter{}
	if cfg.Shaders.Watch {
		dw, err := dirwatch.NewWatcher(cfg.Shaders.Root, dirwatch.WithRecursive(true), dirwatch.WithLogger(log))
		if err != nil {
			log.Warn("shader watching disabled", "root", cfg.Shaders.Root, "err", err)
		} else {
			watcher, revisions = dw, dw
		}
	}

	env, err := cfg.NewShaderEnvironment(shader.NewNagaCompiler(shader.WithCompilerLogger(log)))
	if err != nil {
		closeAll(watcher, w)
		return nil, err
	}
	env.Logger = log

	r, err := renderer.NewRenderer(w,
		renderer.WithPresentMode(cfg.Renderer.PresentMode),
		renderer.WithMSAA(cfg.Renderer.MSAA),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.FallbackAdapter),
		renderer.WithDepthFormat(cfg.Renderer.DepthFormat),
		renderer.WithUploadSize(cfg.UploadSize()),
		renderer.WithLogger(log),
		renderer.WithRevisionSource(revisions),
		renderer.WithShaderEnvironment(env),
		renderer.WithCounters(&gfx.Counters{}),
	)
	if err != nil {
		closeAll(watcher, w)
		return nil, err
	}

	opts := append([]EngineBuilderOption{
		WithWindow(w),
		WithRenderer(r),
		WithWatcher(watcher),
		WithLogger(log),
	}, options...)
	e, err := NewEngine(opts...)
	if err != nil {
		r.Release()
		closeAll(watcher, w)
		return nil, err
	}

	techniques, err := cfg.BuildTechniques(r.Context(), config.WithTargets(r.Format(), r.DepthFormat(), r.SampleCount()))
	if err != nil {
		r.Release()
		closeAll(watcher, w)
		return nil, fmt.Errorf("engine: %w", err)
	}
	for _, t := range techniques {
		e.NewPipeline(t.Name(), t.Type(), t)
	}
	log.Info("engine: ready", "techniques", len(techniques), "watch", watcher != nil)
	return e, nil
}

func closeAll(watcher dirwatch.Watcher, w window.Window) {
	if watcher != nil {
		_ = watcher.Close()
	}
	_ = w.Close()
}
