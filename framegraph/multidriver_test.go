package framegraph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	fctx "github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/csm"
	"github.com/gogpu/fotia/rhi/sim"
)

func openTestDualContext(t *testing.T) *fctx.DualContext {
	t.Helper()
	primaryAdapter, secondaryAdapter := sim.NewAdapterPair("gpu0", "gpu1")
	primary, err := fctx.Open(primaryAdapter)
	if err != nil {
		t.Fatalf("open primary: %v", err)
	}
	secondary, err := fctx.Open(secondaryAdapter)
	if err != nil {
		t.Fatalf("open secondary: %v", err)
	}
	return fctx.NewDual(primary, secondary)
}

func TestMultiDriverRenderFrameEmptySceneSucceeds(t *testing.T) {
	dual := openTestDualContext(t)
	extent := Extent{Width: 64, Height: 64}

	const framesInFlight = 2
	driver, err := NewMultiDriver(dual, extent, 256, 0.5, framesInFlight)
	if err != nil {
		t.Fatalf("new multi driver: %v", err)
	}

	globals := testGlobalsArgument(t, dual.Primary)
	swapchain := testSwapchainView(t, dual.Primary, extent)

	camera := csm.Camera{View: mgl32.Ident4(), Fov: 1.2, Aspect: 1.0, Near: 0.1, Far: 100}
	sawSecondaryTiming := false
	for i := 0; i < 3; i++ {
		primary, secondary, err := driver.RenderFrame(globals, swapchain, camera, mgl32.Vec3{0, -1, 0}, SliceScene(nil))
		if err != nil {
			t.Fatalf("render frame %d: %v", i, err)
		}
		if len(primary.Entries) != 4 {
			t.Fatalf("frame %d: expected 4 primary-side timed passes, got %d", i, len(primary.Entries))
		}
		if len(secondary.Entries) > 0 {
			sawSecondaryTiming = true
		}
	}
	if !sawSecondaryTiming {
		t.Fatal("expected the secondary-side cascade-write pass to resolve a timing at least once across 3 frames")
	}
}

func TestMultiDriverResizePropagatesExtent(t *testing.T) {
	dual := openTestDualContext(t)
	extent := Extent{Width: 64, Height: 64}

	driver, err := NewMultiDriver(dual, extent, 256, 0.5, 1)
	if err != nil {
		t.Fatalf("new multi driver: %v", err)
	}

	if err := driver.Resize(Extent{Width: 128, Height: 128}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if driver.extent.Width != 128 || driver.extent.Height != 128 {
		t.Fatalf("expected extent to update, got %+v", driver.extent)
	}
}
