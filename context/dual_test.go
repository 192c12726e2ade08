package context

import (
	"testing"

	"github.com/gogpu/fotia/rhi/sim"
	"github.com/gogpu/fotia/rhi/types"
)

func openTestDualContext(t *testing.T) *DualContext {
	t.Helper()
	primaryAdapter, secondaryAdapter := sim.NewAdapterPair("gpu0", "gpu1")
	primary, err := Open(primaryAdapter)
	if err != nil {
		t.Fatalf("open primary: %v", err)
	}
	secondary, err := Open(secondaryAdapter)
	if err != nil {
		t.Fatalf("open secondary: %v", err)
	}
	return NewDual(primary, secondary)
}

func TestOpenSharedTextureResolvesAcrossPairedAdapters(t *testing.T) {
	dual := openTestDualContext(t)

	desc := &types.TextureDescriptor{
		Type:   types.TextureType2D,
		Format: types.FormatD32Float,
		Size:   types.Extent3D{Width: 512, Height: 512, DepthOrArrayLayers: 1},
		Usage:  types.TextureUsageDepthStencilAttachment | types.TextureUsageSampled | types.TextureUsageShared,
	}
	secondaryTex, err := dual.Secondary.Device.CreateTexture(desc)
	if err != nil {
		t.Fatalf("create secondary texture: %v", err)
	}

	primaryTex, err := dual.Primary.Device.OpenSharedTexture(secondaryTex)
	if err != nil {
		t.Fatalf("open shared texture on paired adapter: %v", err)
	}
	if primaryTex == nil {
		t.Fatal("expected a non-nil opened texture")
	}
}

func TestOpenSharedTextureFailsAcrossUnpairedAdapters(t *testing.T) {
	primary := openTestContext(t, "gpu0", true)
	secondary := openTestContext(t, "gpu1", true)
	dual := NewDual(primary, secondary)

	desc := &types.TextureDescriptor{
		Type:   types.TextureType2D,
		Format: types.FormatD32Float,
		Size:   types.Extent3D{Width: 512, Height: 512, DepthOrArrayLayers: 1},
		Usage:  types.TextureUsageDepthStencilAttachment | types.TextureUsageSampled | types.TextureUsageShared,
	}
	secondaryTex, err := dual.Secondary.Device.CreateTexture(desc)
	if err != nil {
		t.Fatalf("create secondary texture: %v", err)
	}

	// Both adapters individually report SupportsSharedHeaps() == true,
	// but NewAdapter never pairs a heap — each got its own independent
	// one from Open, so the secondary's heap ID is unknown to the
	// primary's heap and OpenSharedTexture must fail.
	if _, err := dual.Primary.Device.OpenSharedTexture(secondaryTex); err == nil {
		t.Fatal("expected OpenSharedTexture to fail across independently-constructed adapters")
	}
}
