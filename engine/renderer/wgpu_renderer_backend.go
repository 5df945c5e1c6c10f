package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-reload/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	dev    *wgpuDevice
	native *wgpuNativeQueue

	surfaceFormat wgpu.TextureFormat
	format        gpu.Format
	depthFormat   gpu.Format
	presentMode   wgpu.PresentMode // defaults to PresentModeFifo (VSync)
	sampleCount   MSAASampleCount
	width, height uint32

	// Attachments recreated on every ConfigureSurface.
	msaaTexture *wgpu.Texture
	msaaView    *wgpu.TextureView
	depth       *wgpuTexture
	depthView   *wgpuView

	// Frame state between AcquireBackBuffer and Present.
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount, depthFormat gpu.Format, log *slog.Logger) (wgpuRendererBackend, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      log,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		sampleCount: max(sampleCount, MSAAOff),
		depthFormat: depthFormat,
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("%w: request adapter: %v", gpu.ErrDevice, err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("%w: request device: %v", gpu.ErrDevice, err)
	}
	w.device = d
	w.queue = d.GetQueue()
	w.dev = newWGPUDevice(d, w.queue, log)
	w.native = newWGPUNativeQueue(d, w.queue, w.dev.logger)

	capabilities := w.surface.GetCapabilities(a)
	for _, tf := range capabilities.Formats {
		if f := bind_group_provider.GPUFormat(tf); f != gpu.FormatUnknown {
			w.surfaceFormat, w.format = tf, f
			break
		}
	}
	if w.format == gpu.FormatUnknown {
		w.Release()
		return nil, fmt.Errorf("%w: no supported surface format among %v", gpu.ErrUnsupported, capabilities.Formats)
	}
	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	width, height = max(width, 1), max(height, 1)
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseAttachments()
	b.width, b.height = uint32(width), uint32(height)
	count := uint32(b.sampleCount)
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	if count > 1 {
		// The pass draws into the MSAA texture and resolves into the swapchain image.
		tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("%w: msaa texture: %v", gpu.ErrDevice, err)
		}
		b.msaaTexture = tex
		if b.msaaView, err = tex.CreateView(nil); err != nil {
			return fmt.Errorf("%w: msaa view: %v", gpu.ErrDevice, err)
		}
	}

	depthFormat, err := textureFormat(b.depthFormat)
	if err != nil {
		return err
	}
	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("%w: depth texture: %v", gpu.ErrDevice, err)
	}
	b.depth = &wgpuTexture{
		label:       "Depth Texture",
		tex:         depthTexture,
		format:      b.depthFormat,
		width:       uint32(width),
		height:      uint32(height),
		sampleCount: count,
	}
	view, err := depthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("%w: depth view: %v", gpu.ErrDevice, err)
	}
	b.depthView = &wgpuView{view: view, format: b.depthFormat, sampleCount: count}
	return nil
}

func (b *wgpuRendererBackendImpl) releaseAttachments() {
	if b.msaaView != nil {
		b.msaaView.Release()
		b.msaaView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.depthView != nil {
		b.depthView.Release()
		b.depthView = nil
	}
	if b.depth != nil {
		b.depth.Release()
		b.depth = nil
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) Format() gpu.Format {
	return b.format
}

func (b *wgpuRendererBackendImpl) DepthFormat() gpu.Format {
	return b.depthFormat
}

func (b *wgpuRendererBackendImpl) SampleCount() uint32 {
	return uint32(b.sampleCount)
}

func (b *wgpuRendererBackendImpl) Device() *wgpuDevice {
	return b.dev
}

func (b *wgpuRendererBackendImpl) NativeQueue() *wgpuNativeQueue {
	return b.native
}

func (b *wgpuRendererBackendImpl) NewRecorder() (*wgpuRecorder, error) {
	return newWGPURecorder(b.dev)
}

func (b *wgpuRendererBackendImpl) AcquireBackBuffer() (gpu.Resource, gpu.View, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A held surface image must be presented before another one can be acquired.
	if b.frameSurface != nil {
		return nil, nil, errors.New("renderer: previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, nil, fmt.Errorf("renderer: acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, nil, fmt.Errorf("renderer: surface view: %w", err)
	}
	b.frameSurface = surfaceTexture
	b.frameView = view

	tex := &wgpuTexture{
		label:       "Back Buffer",
		tex:         surfaceTexture,
		format:      b.format,
		width:       b.width,
		height:      b.height,
		sampleCount: 1,
		external:    true,
	}
	rt := &wgpuView{view: view, format: b.format, sampleCount: 1}
	if b.msaaView != nil {
		rt = &wgpuView{view: b.msaaView, format: b.format, sampleCount: uint32(b.sampleCount), resolve: view}
	}
	return tex, rt, nil
}

func (b *wgpuRendererBackendImpl) DepthTarget() (gpu.Resource, gpu.View) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth, b.depthView
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameView = nil
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) CreateTextureView(res gpu.Resource) (*wgpu.TextureView, error) {
	t := nativeTexture(res)
	view, err := t.tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: texture view of %q: %v", gpu.ErrDevice, t.label, err)
	}
	return view, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	s, err := b.device.CreateSampler(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: sampler: %v", gpu.ErrDevice, err)
	}
	return s, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	b.queue.WriteBuffer(buf, offset, data)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	b.releaseAttachments()
	b.queue = nil
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
