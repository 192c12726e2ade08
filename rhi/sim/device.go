package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/fotia/descriptor"
	"github.com/gogpu/fotia/internal/logging"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

// Device is the simulated backend's rhi.Device implementation.
type Device struct {
	adapter     *Adapter
	shared      *sharedHeap
	descriptors *descriptor.Pool
}

func (d *Device) CreateBuffer(desc *rhi.BufferDescriptor) (rhi.Buffer, error) {
	return &Buffer{data: make([]byte, desc.Size), usage: desc.Usage}, nil
}

// CreateTexture applies the renderer's texture-creation policy:
//
//  1. A texture with no Shared usage bit is always Local: it lives
//     entirely on this adapter.
//  2. A texture with the Shared usage bit set, on an adapter that
//     reports SupportsSharedHeaps, is created CrossAdapter: its storage
//     comes from the shared heap so a peer device's OpenSharedTexture
//     aliases the same bytes.
//  3. A texture with the Shared usage bit set, on an adapter that does
//     not support shared heaps, falls back to Bound: fast local storage
//     plus a shadow copy buffer the consumer pulls from after the
//     producer signals completion.
func (d *Device) CreateTexture(desc *rhi.TextureDescriptor) (rhi.Texture, error) {
	size := uint64(desc.Size.Width) * uint64(desc.Size.Height) * uint64(desc.Size.DepthOrArrayLayers) * uint64(desc.Format.BytesPerTexel())

	if desc.Usage&types.TextureUsageShared == 0 {
		return &Texture{
			data:   make([]byte, size),
			size:   desc.Size,
			format: desc.Format,
			usage:  desc.Usage,
			flavor: types.TextureFlavorLocal,
		}, nil
	}

	if d.adapter.SupportsSharedHeaps() {
		id, buf := d.shared.alloc(size)
		return &Texture{
			data:   buf,
			heapID: id,
			size:   desc.Size,
			format: desc.Format,
			usage:  desc.Usage,
			flavor: types.TextureFlavorCrossAdapter,
		}, nil
	}

	logging.Logger().Warn("sim: adapter lacks shared-heap support, falling back to Bound texture flavor", slog.String("adapter", d.adapter.Name()), slog.String("label", desc.Label))
	return &Texture{
		data:   make([]byte, size),
		shadow: make([]byte, size),
		size:   desc.Size,
		format: desc.Format,
		usage:  desc.Usage,
		flavor: types.TextureFlavorBound,
	}, nil
}

// OpenSharedTexture imports a CrossAdapter texture created by a peer
// device sharing this device's heap. Bound-flavor textures cannot be
// opened this way; the consumer must read the producer's shadow copy
// via CopyTextureToBuffer/CopyBufferToTexture staging instead.
func (d *Device) OpenSharedTexture(peer rhi.Texture) (rhi.Texture, error) {
	pt, ok := peer.(*Texture)
	if !ok || pt.flavor != types.TextureFlavorCrossAdapter {
		return nil, rhi.ErrUnsupportedFlavor
	}
	buf, ok := d.shared.open(pt.heapID)
	if !ok {
		return nil, rhi.ErrUnsupportedFlavor
	}
	return &Texture{
		data:   buf,
		heapID: pt.heapID,
		size:   pt.size,
		format: pt.format,
		usage:  pt.usage,
		flavor: types.TextureFlavorCrossAdapter,
	}, nil
}

// CreateTextureView allocates a view over tex and, when desc.Usage names
// a descriptor-bearing aspect, a slot from the matching heap in this
// device's descriptor pool: render-target, depth-stencil, or
// shader-resource. A texture bound for more than one aspect (a G-buffer
// target that is both written as a render attachment and later sampled)
// gets one view and one slot per aspect.
func (d *Device) CreateTextureView(tex rhi.Texture, desc *rhi.TextureViewDescriptor) (rhi.TextureView, error) {
	t, _ := tex.(*Texture)
	view := &TextureView{texture: t, pool: d.descriptors}

	if kind, ok := descriptorKindFor(desc.Usage); ok {
		slot, err := d.descriptors.Allocate(kind)
		if err != nil {
			return nil, fmt.Errorf("sim: create texture view %q: %w", desc.Label, err)
		}
		view.kind, view.slot, view.hasSlot = kind, slot, true
	}
	return view, nil
}

// descriptorKindFor maps a view's single usage aspect to the heap it
// should be allocated from. usage carrying none of these bits (or more
// than one) yields ok false — Sampler- and storage-only views never
// need an RTV/DSV/SRV slot in this simplified heap layout.
func descriptorKindFor(usage types.TextureUsage) (descriptor.Kind, bool) {
	switch usage {
	case types.TextureUsageRenderAttachment:
		return descriptor.KindRenderTarget, true
	case types.TextureUsageDepthStencilAttachment:
		return descriptor.KindDepthStencil, true
	case types.TextureUsageSampled:
		return descriptor.KindShaderResource, true
	default:
		return 0, false
	}
}

func (d *Device) CreateSampler(desc *rhi.SamplerDescriptor) (rhi.Sampler, error) {
	return &Sampler{desc: *desc}, nil
}

func (d *Device) CreatePipelineLayout(desc *rhi.PipelineLayoutDescriptor) (rhi.PipelineLayout, error) {
	return &PipelineLayout{slots: desc.ArgumentSlots}, nil
}

func (d *Device) CreateShaderArgument(desc *rhi.ShaderArgumentDescriptor) (rhi.ShaderArgument, error) {
	return &ShaderArgument{entries: desc.Entries}, nil
}

func (d *Device) CreateRasterPipeline(desc *rhi.RasterPipelineDescriptor) (rhi.RasterPipeline, error) {
	return &RasterPipeline{desc: *desc}, nil
}

func (d *Device) CreateCommandEncoder() (rhi.CommandEncoder, error) {
	return &CommandEncoder{}, nil
}

func (d *Device) CreateFence() (rhi.Fence, error) {
	return &Fence{}, nil
}

func (d *Device) Wait(fence rhi.Fence, value uint64, timeout time.Duration) (bool, error) {
	f, ok := fence.(*Fence)
	if !ok {
		return true, nil
	}
	if f.Value() >= value {
		return true, nil
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.Value() >= value {
			return true, nil
		}
		time.Sleep(time.Microsecond * 50)
	}
	return f.Value() >= value, nil
}

func (d *Device) Destroy() {}
