package renderer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

func (m PresentMode) String() string {
	if m == PresentModeUncapped {
		return "uncapped"
	}
	return "vsync"
}

// UnmarshalText parses "vsync" or "uncapped".
func (m *PresentMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "vsync", "fifo":
		*m = PresentModeVSync
	case "uncapped", "immediate":
		*m = PresentModeUncapped
	default:
		return fmt.Errorf("renderer: unknown present mode %q", text)
	}
	return nil
}

func (m PresentMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1). This is the default.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA16x MSAASampleCount = 16
)

// UnmarshalText parses "off" or a sample count such as "4" or "4x".
func (c *MSAASampleCount) UnmarshalText(text []byte) error {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(string(text))), "x")
	if s == "off" || s == "" {
		*c = MSAAOff
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("renderer: bad msaa sample count %q", text)
	}
	switch v := MSAASampleCount(n); v {
	case MSAAOff, MSAA4x, MSAA8x, MSAA16x:
		*c = v
		return nil
	}
	return fmt.Errorf("renderer: msaa sample count %d is not 1, 4, 8 or 16", n)
}

func (c MSAASampleCount) MarshalText() ([]byte, error) {
	if c <= MSAAOff {
		return []byte("off"), nil
	}
	return []byte(strconv.FormatUint(uint64(c), 10) + "x"), nil
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}

// wgpuRendererBackend owns the WebGPU instance, surface and swapchain attachments, and creates the
// device-level objects the renderer hands to the core components.
type wgpuRendererBackend interface {
	// ConfigureSurface (re)configures the swapchain and recreates the MSAA and depth attachments.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrDevice if an attachment could not be created
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode used by the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Format returns the swapchain format.
	//
	// Returns:
	//   - gpu.Format: the back buffer format
	Format() gpu.Format

	// DepthFormat returns the format of the depth attachment.
	//
	// Returns:
	//   - gpu.Format: the depth format
	DepthFormat() gpu.Format

	// SampleCount returns the MSAA sample count of the back buffer and depth attachments.
	//
	// Returns:
	//   - uint32: the sample count
	SampleCount() uint32

	// Device returns the gpu.Device and gpu.Allocator implementation.
	//
	// Returns:
	//   - *wgpuDevice: the device
	Device() *wgpuDevice

	// NativeQueue returns the fence-backed queue implementation.
	//
	// Returns:
	//   - *wgpuNativeQueue: the native queue
	NativeQueue() *wgpuNativeQueue

	// NewRecorder creates an open command recorder.
	//
	// Returns:
	//   - *wgpuRecorder: the recorder
	//   - error: an error wrapping gpu.ErrDevice
	NewRecorder() (*wgpuRecorder, error)

	// AcquireBackBuffer acquires the next swapchain image. The returned view renders into the MSAA
	// attachment and resolves into the swapchain image when MSAA is on.
	//
	// Returns:
	//   - gpu.Resource: the swapchain image
	//   - gpu.View: the render-target view
	//   - error: an error if the image could not be acquired
	AcquireBackBuffer() (gpu.Resource, gpu.View, error)

	// DepthTarget returns the depth attachment created by the last ConfigureSurface.
	//
	// Returns:
	//   - gpu.Resource: the depth texture
	//   - gpu.View: its view
	DepthTarget() (gpu.Resource, gpu.View)

	// Present presents the acquired swapchain image and releases it.
	Present()

	// CreateTextureView creates a sampled view of a texture for a descriptor table.
	//
	// Parameters:
	//   - res: a texture created by the device
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

	// WriteBuffer writes data into a buffer through the queue.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset into buf
	//   - data: the bytes to write
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// Release drops the attachments, surface, device and instance.
	Release()
}
