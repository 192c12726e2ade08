// Package swapchain manages a presentable surface's acquire/present
// cycle and the backbuffer views each frame needs, reconfiguring the
// surface when the window resizes or the backend reports it as
// outdated.
package swapchain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/fotia/internal/logging"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

// Swapchain owns a surface and the fence used to pace acquisition.
type Swapchain struct {
	device rhi.Device
	queue  rhi.Queue
	surface rhi.Surface
	fence  rhi.Fence

	width  uint32
	height uint32
	format types.TextureFormat
}

// Config parameterizes swapchain creation.
type Config struct {
	Width  uint32
	Height uint32
	Format types.TextureFormat
}

// New configures surface for presentation at the given size and format.
func New(device rhi.Device, queue rhi.Queue, surface rhi.Surface, cfg Config) (*Swapchain, error) {
	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("swapchain: create fence: %w", err)
	}
	sc := &Swapchain{device: device, queue: queue, surface: surface, fence: fence}
	if err := sc.configure(cfg); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Swapchain) configure(cfg Config) error {
	if cfg.Width == 0 || cfg.Height == 0 {
		return rhi.ErrZeroArea
	}
	if err := sc.surface.Configure(sc.device, &rhi.SurfaceConfiguration{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      cfg.Format,
		PresentMode: rhi.PresentModeFifo,
	}); err != nil {
		return fmt.Errorf("swapchain: configure: %w", err)
	}
	sc.width, sc.height, sc.format = cfg.Width, cfg.Height, cfg.Format
	return nil
}

// Frame bundles an acquired backbuffer, the render-target view the
// gamma-correction pass writes through, and whether the backbuffer was
// suboptimal (still usable, but the surface should be resized soon).
type Frame struct {
	Texture    rhi.SurfaceTexture
	View       rhi.TextureView
	Suboptimal bool
}

// NextFrame acquires the next backbuffer and allocates its RTV from the
// device's render-target descriptor heap. If the surface reports itself
// outdated (e.g. after a resize the caller hasn't yet applied via
// Resize), it is reconfigured once at the current size and acquisition
// is retried exactly once before giving up.
func (sc *Swapchain) NextFrame() (Frame, error) {
	acquired, err := sc.surface.AcquireTexture(sc.fence)
	if err == nil {
		return sc.viewFrame(acquired)
	}
	if !errors.Is(err, rhi.ErrSurfaceOutdated) {
		return Frame{}, fmt.Errorf("swapchain: acquire: %w", err)
	}
	if err := sc.configure(Config{Width: sc.width, Height: sc.height, Format: sc.format}); err != nil {
		return Frame{}, fmt.Errorf("swapchain: reconfigure after outdated surface: %w", err)
	}
	acquired, err = sc.surface.AcquireTexture(sc.fence)
	if err != nil {
		return Frame{}, fmt.Errorf("swapchain: acquire after reconfigure: %w", err)
	}
	return sc.viewFrame(acquired)
}

func (sc *Swapchain) viewFrame(acquired *rhi.AcquiredSurfaceTexture) (Frame, error) {
	view, err := sc.device.CreateTextureView(acquired.Texture, &rhi.TextureViewDescriptor{
		Label: "swapchain backbuffer",
		Usage: types.TextureUsageRenderAttachment,
	})
	if err != nil {
		return Frame{}, fmt.Errorf("swapchain: backbuffer view: %w", err)
	}
	return Frame{Texture: acquired.Texture, View: view, Suboptimal: acquired.Suboptimal}, nil
}

// Present hands the frame's texture to the queue for display, releases
// the backbuffer's RTV slot back to the descriptor pool, and returns the
// texture to the surface.
func (sc *Swapchain) Present(frame Frame) error {
	if err := sc.queue.Present(sc.surface, frame.Texture); err != nil {
		return fmt.Errorf("swapchain: present: %w", err)
	}
	frame.View.Destroy()
	sc.surface.DiscardTexture(frame.Texture)
	return nil
}

// Resize reconfigures the surface for a new backbuffer size, e.g. on a
// window resize event. It is a no-op if the size is unchanged.
func (sc *Swapchain) Resize(width, height uint32) error {
	if width == sc.width && height == sc.height {
		return nil
	}
	logging.Logger().Debug("swapchain: resize", slog.Uint64("from_width", uint64(sc.width)), slog.Uint64("from_height", uint64(sc.height)), slog.Uint64("to_width", uint64(width)), slog.Uint64("to_height", uint64(height)))
	return sc.configure(Config{Width: width, Height: height, Format: sc.format})
}

// Size returns the swapchain's current backbuffer dimensions.
func (sc *Swapchain) Size() (width, height uint32) {
	return sc.width, sc.height
}
