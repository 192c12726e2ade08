package swapchain

import (
	"testing"

	"github.com/gogpu/fotia/descriptor"
	"github.com/gogpu/fotia/rhi/sim"
	"github.com/gogpu/fotia/rhi/types"
)

func openTestSwapchain(t *testing.T, w, h uint32) *Swapchain {
	t.Helper()
	adapter := sim.NewAdapter("test-gpu", false)
	device, rq, err := adapter.Open()
	if err != nil {
		t.Fatalf("open adapter: %v", err)
	}
	surface := sim.NewSurface()
	sc, err := New(device, rq, surface, Config{Width: w, Height: h, Format: types.FormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("new swapchain: %v", err)
	}
	return sc
}

func TestNextFrameAcquiresConfiguredBackbuffer(t *testing.T) {
	sc := openTestSwapchain(t, 640, 480)
	frame, err := sc.NextFrame()
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	if frame.Texture == nil {
		t.Fatal("expected non-nil backbuffer texture")
	}
}

func TestPresentDiscardsFrameWithoutError(t *testing.T) {
	sc := openTestSwapchain(t, 640, 480)
	frame, err := sc.NextFrame()
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	if err := sc.Present(frame); err != nil {
		t.Fatalf("present: %v", err)
	}
}

func TestResizeChangesReportedSize(t *testing.T) {
	sc := openTestSwapchain(t, 640, 480)
	if err := sc.Resize(1280, 720); err != nil {
		t.Fatalf("resize: %v", err)
	}
	w, h := sc.Size()
	if w != 1280 || h != 720 {
		t.Fatalf("expected 1280x720, got %dx%d", w, h)
	}
	frame, err := sc.NextFrame()
	if err != nil {
		t.Fatalf("next frame after resize: %v", err)
	}
	if frame.Texture.Size().Width != 1280 || frame.Texture.Size().Height != 720 {
		t.Fatalf("expected backbuffer sized 1280x720, got %+v", frame.Texture.Size())
	}
}

func TestResizeToSameSizeIsNoop(t *testing.T) {
	sc := openTestSwapchain(t, 640, 480)
	if err := sc.Resize(640, 480); err != nil {
		t.Fatalf("resize to same size: %v", err)
	}
	w, h := sc.Size()
	if w != 640 || h != 480 {
		t.Fatalf("expected size unchanged at 640x480, got %dx%d", w, h)
	}
}

func TestNextFrameAllocatesBackbufferViewWithinRenderTargetHeap(t *testing.T) {
	sc := openTestSwapchain(t, 640, 480)
	frame, err := sc.NextFrame()
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	kind, slot, ok := frame.View.Descriptor()
	if !ok {
		t.Fatal("expected the backbuffer view to carry a descriptor slot")
	}
	if kind != descriptor.KindRenderTarget {
		t.Fatalf("expected the backbuffer view's descriptor to come from the render-target heap, got %v", kind)
	}
	if int(slot) >= descriptor.DefaultRenderTargetCapacity {
		t.Fatalf("expected slot %d to lie within the render-target heap's capacity %d", slot, descriptor.DefaultRenderTargetCapacity)
	}
}

func TestPresentReleasesBackbufferViewSlotForReuse(t *testing.T) {
	sc := openTestSwapchain(t, 640, 480)

	frame1, err := sc.NextFrame()
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	_, slot1, _ := frame1.View.Descriptor()
	if err := sc.Present(frame1); err != nil {
		t.Fatalf("present: %v", err)
	}

	frame2, err := sc.NextFrame()
	if err != nil {
		t.Fatalf("next frame: %v", err)
	}
	_, slot2, _ := frame2.View.Descriptor()
	if slot2 != slot1 {
		t.Fatalf("expected Present to release slot %d back to the pool for reuse, got a fresh slot %d", slot1, slot2)
	}
}

func TestNewRejectsZeroArea(t *testing.T) {
	adapter := sim.NewAdapter("test-gpu", false)
	device, rq, err := adapter.Open()
	if err != nil {
		t.Fatalf("open adapter: %v", err)
	}
	surface := sim.NewSurface()
	if _, err := New(device, rq, surface, Config{Width: 0, Height: 480, Format: types.FormatRGBA8Unorm}); err == nil {
		t.Fatal("expected error for zero-width configuration")
	}
}
