package sim

import (
	"testing"

	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

func sharedTextureDescriptor(label string) *rhi.TextureDescriptor {
	return &rhi.TextureDescriptor{
		Label:  label,
		Type:   types.TextureType2D,
		Format: types.FormatD32Float,
		Size:   types.Extent3D{Width: 1024, Height: 1024, DepthOrArrayLayers: 1},
		Usage:  types.TextureUsageShared,
	}
}

func TestAdapterPairSharesOneHeap(t *testing.T) {
	a, b := NewAdapterPair("gpu0", "gpu1")
	if a.heap == nil || b.heap == nil || a.heap != b.heap {
		t.Fatalf("expected NewAdapterPair to return two adapters backed by the same heap")
	}

	devA, _, err := a.Open()
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	devB, _, err := b.Open()
	if err != nil {
		t.Fatalf("open b: %v", err)
	}

	tex, err := devA.CreateTexture(sharedTextureDescriptor("paired"))
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}
	if _, err := devB.OpenSharedTexture(tex); err != nil {
		t.Fatalf("expected peer device to open the texture across the paired heap, got: %v", err)
	}
}

func TestLoneAdaptersEachGetAPrivateHeap(t *testing.T) {
	a := NewAdapter("gpu0", true)
	b := NewAdapter("gpu1", true)

	devA, _, err := a.Open()
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	devB, _, err := b.Open()
	if err != nil {
		t.Fatalf("open b: %v", err)
	}

	tex, err := devA.CreateTexture(sharedTextureDescriptor("unpaired"))
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}
	if _, err := devB.OpenSharedTexture(tex); err == nil {
		t.Fatal("expected OpenSharedTexture to fail across two independently-opened adapters")
	}
}

func TestOpeningTheSameAdapterTwiceGivesEachDeviceItsOwnPrivateHeap(t *testing.T) {
	a := NewAdapter("gpu0", true)

	dev1, _, err := a.Open()
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}
	dev2, _, err := a.Open()
	if err != nil {
		t.Fatalf("open 2: %v", err)
	}

	tex, err := dev1.CreateTexture(sharedTextureDescriptor("reopened"))
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}
	if _, err := dev2.OpenSharedTexture(tex); err == nil {
		t.Fatal("expected two independent Opens of a lone adapter to not share a heap")
	}
}
