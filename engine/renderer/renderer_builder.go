package renderer

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-reload/engine/dirwatch"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gfx"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/shader"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the back buffer and depth attachment.
// When not specified, MSAA is off. Render pipelines must use the same count, see Renderer.SampleCount.
// Higher values (MSAA8x, MSAA16x) are adapter-dependent and may not be supported by all hardware.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x, MSAA8x, or MSAA16x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithDepthFormat sets the depth attachment format. The default is gpu.FormatD32Float.
//
// Parameters:
//   - format: a depth format
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithDepthFormat(format gpu.Format) RendererBuilderOption {
	return func(r *renderer) {
		r.depthFormat = format
	}
}

// WithUploadSize sets the upload buffer capacity in bytes. The default is DefaultUploadSize.
//
// Parameters:
//   - size: the capacity in bytes
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithUploadSize(size uint64) RendererBuilderOption {
	return func(r *renderer) {
		r.uploadSize = size
	}
}

// WithClearColor sets the color the back buffer is cleared to by BeginFrame.
//
// Parameters:
//   - rgba: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithClearColor(rgba [4]float64) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = rgba
	}
}

// WithLogger sets the logger shared through the renderer's context.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithLogger(l *slog.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = l
	}
}

// WithRevisionSource sets the revision source pipelines poll for shader changes, usually a
// dirwatch.Watcher on the shader root.
//
// Parameters:
//   - rs: the revision source
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithRevisionSource(rs dirwatch.RevisionSource) RendererBuilderOption {
	return func(r *renderer) {
		r.revisions = rs
	}
}

// WithShaderEnvironment sets the compiler, cache and include configuration shaders load with.
//
// Parameters:
//   - env: the shader environment
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithShaderEnvironment(env *shader.Environment) RendererBuilderOption {
	return func(r *renderer) {
		r.shaders = env
	}
}

// WithCounters shares a counter set with the renderer's context.
//
// Parameters:
//   - c: the counters
//
// Returns:
//   - RendererBuilderOption: a function that applies the option
func WithCounters(c *gfx.Counters) RendererBuilderOption {
	return func(r *renderer) {
		r.counters = c
	}
}
