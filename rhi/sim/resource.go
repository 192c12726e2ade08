package sim

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/fotia/descriptor"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

// Buffer is a simulated linear buffer with real byte storage.
type Buffer struct {
	mu    sync.RWMutex
	data  []byte
	usage types.BufferUsage
}

func (b *Buffer) Destroy()               {}
func (b *Buffer) Size() uint64           { return uint64(len(b.data)) }
func (b *Buffer) Usage() types.BufferUsage { return b.usage }

func (b *Buffer) read(offset uint64, dst []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	copy(dst, b.data[offset:])
}

func (b *Buffer) write(offset uint64, src []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:], src)
}

func (b *Buffer) clear(offset, size uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := offset + size
	if end > uint64(len(b.data)) {
		end = uint64(len(b.data))
	}
	for i := offset; i < end; i++ {
		b.data[i] = 0
	}
}

// Texture is a simulated texture. For TextureFlavorCrossAdapter, data
// aliases a sharedHeap entry so both adapters observe the same bytes;
// for TextureFlavorBound, data is the producing adapter's fast local
// storage and shadow holds the row-major copy the consumer pulls from.
type Texture struct {
	mu       sync.RWMutex
	data     []byte
	shadow   []byte
	heapID   uint64
	size     types.Extent3D
	format   types.TextureFormat
	usage    types.TextureUsage
	flavor   types.TextureFlavor
}

func (t *Texture) Destroy()                     {}
func (t *Texture) Size() types.Extent3D         { return t.size }
func (t *Texture) Format() types.TextureFormat  { return t.format }
func (t *Texture) Flavor() types.TextureFlavor  { return t.flavor }

func (t *Texture) clear(c types.Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bpt := t.format.BytesPerTexel()
	r := byte(c.R * 255)
	g := byte(c.G * 255)
	bl := byte(c.B * 255)
	a := byte(c.A * 255)
	for i := uint32(0); i+bpt <= uint32(len(t.data)); i += bpt {
		t.data[i+0] = r
		if bpt > 1 {
			t.data[i+1] = g
		}
		if bpt > 2 {
			t.data[i+2] = bl
		}
		if bpt > 3 {
			t.data[i+3] = a
		}
	}
}

// pullShadow copies the producer's live data into the shadow buffer a
// Bound-flavor consumer reads from. Nothing in the module calls it, so a
// Bound texture's shadow buffer is never filled from the live data.
func (t *Texture) pullShadow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shadow == nil {
		return
	}
	copy(t.shadow, t.data)
}

// TextureView references a parent texture; the simulated backend has no
// separate view storage since all reads go through the parent's bytes.
// It still owns a real descriptor-heap slot when created for a
// descriptor-bearing aspect, released back to the pool on Destroy.
type TextureView struct {
	texture *Texture
	pool    *descriptor.Pool
	kind    descriptor.Kind
	slot    descriptor.Slot
	hasSlot bool
}

func (v *TextureView) Destroy() {
	if v.hasSlot {
		v.pool.Release(v.kind, v.slot)
		v.hasSlot = false
	}
}

// Descriptor reports the heap slot this view was allocated from, ok
// false if it was created for an aspect with no descriptor-bearing
// usage (see Device.CreateTextureView).
func (v *TextureView) Descriptor() (descriptor.Kind, descriptor.Slot, bool) {
	return v.kind, v.slot, v.hasSlot
}

// Sampler carries filter configuration only; the simulated rasterizer
// samples nearest-neighbor regardless, since no shader stage actually
// executes a texture fetch instruction.
type Sampler struct {
	desc rhi.SamplerDescriptor
}

func (s *Sampler) Destroy() {}

// PipelineLayout, ShaderArgument, and RasterPipeline carry enough state
// for the frame graph to validate bindings, but the simulated backend
// draws by walking vertex/index buffers directly rather than executing
// naga IR per-fragment.
type PipelineLayout struct {
	slots uint32
}

func (p *PipelineLayout) Destroy() {}

type ShaderArgument struct {
	entries []rhi.ShaderArgumentEntry
}

func (a *ShaderArgument) Destroy() {}

type RasterPipeline struct {
	desc rhi.RasterPipelineDescriptor
}

func (p *RasterPipeline) Destroy() {}

// Fence is a monotonically increasing sync-point counter.
type Fence struct {
	value atomic.Uint64
}

func (f *Fence) Destroy()       {}
func (f *Fence) Value() uint64  { return f.value.Load() }
func (f *Fence) signal(v uint64) {
	for {
		cur := f.value.Load()
		if v <= cur {
			return
		}
		if f.value.CompareAndSwap(cur, v) {
			return
		}
	}
}

// CommandBuffer is an opaque recorded command list; the simulated
// backend replays its op list immediately on Submit.
type CommandBuffer struct {
	ops []func()
}

func (c *CommandBuffer) Destroy() {}

// Surface is a simulated presentable target backed by an in-memory
// framebuffer a caller can read back for screenshot/telemetry purposes.
type Surface struct {
	mu          sync.RWMutex
	configured  bool
	width       uint32
	height      uint32
	format      types.TextureFormat
	framebuffer []byte
}

// NewSurface creates an unconfigured simulated surface. Configure must
// be called before AcquireTexture will succeed.
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) Destroy() {}

func (s *Surface) Configure(_ rhi.Device, config *rhi.SurfaceConfiguration) error {
	if config.Width == 0 || config.Height == 0 {
		return rhi.ErrZeroArea
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = true
	s.width = config.Width
	s.height = config.Height
	s.format = config.Format
	s.framebuffer = make([]byte, int(config.Width)*int(config.Height)*int(config.Format.BytesPerTexel()))
	return nil
}

func (s *Surface) Unconfigure(_ rhi.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = false
	s.framebuffer = nil
}

func (s *Surface) AcquireTexture(_ rhi.Fence) (*rhi.AcquiredSurfaceTexture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.configured {
		return nil, rhi.ErrSurfaceOutdated
	}
	tex := &SurfaceTexture{
		Texture: Texture{
			data:   s.framebuffer,
			size:   types.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: 1},
			format: s.format,
			usage:  types.TextureUsageRenderAttachment,
		},
		surface: s,
	}
	return &rhi.AcquiredSurfaceTexture{Texture: tex, Suboptimal: false}, nil
}

func (s *Surface) DiscardTexture(_ rhi.SurfaceTexture) {}

// GetFramebuffer returns a copy of the current framebuffer contents.
func (s *Surface) GetFramebuffer() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.framebuffer))
	copy(out, s.framebuffer)
	return out
}

// SurfaceTexture is a Texture acquired from a Surface for one frame.
type SurfaceTexture struct {
	Texture
	surface *Surface
}
