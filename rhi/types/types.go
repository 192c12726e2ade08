// Package types defines the resource vocabulary shared by the rhi device
// abstraction and its concrete backend: formats, usage flags, and the
// descriptor structs passed to resource-creation calls.
package types

// TextureFormat enumerates the pixel formats the renderer actually uses.
// The set is deliberately small: one depth format per shadow/prepass use,
// one depth+stencil format, and the handful of color formats the deferred
// G-buffer and swapchain need.
type TextureFormat uint8

const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Float
	FormatD32Float
	FormatD24UnormS8Uint
)

// BytesPerTexel returns the byte size of one texel in the given format.
// Panics on FormatUndefined; callers must validate format before calling.
func (f TextureFormat) BytesPerTexel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSrgb, FormatBGRA8Unorm, FormatBGRA8UnormSrgb, FormatD24UnormS8Uint:
		return 4
	case FormatR32Float, FormatD32Float:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		panic("types: BytesPerTexel called on undefined format")
	}
}

// IsDepthFormat reports whether the format carries a depth aspect.
func (f TextureFormat) IsDepthFormat() bool {
	return f == FormatD32Float || f == FormatD24UnormS8Uint
}

// TextureType is the dimensionality of a texture, including the array
// variants the original taxonomy collapses into a single "2D" dimension
// with an array-layer count; the renderer treats a 2D array and a 2D
// texture as distinct kinds so the CSM atlas can opt into array semantics
// explicitly.
type TextureType uint8

const (
	TextureType1D TextureType = iota
	TextureType1DArray
	TextureType2D
	TextureType2DArray
	TextureType3D
)

// TextureUsage is a bitflag set describing how a texture may be bound.
type TextureUsage uint32

const (
	TextureUsageCopySrc TextureUsage = 1 << iota
	TextureUsageCopyDst
	TextureUsageSampled
	TextureUsageRenderAttachment
	TextureUsageDepthStencilAttachment
	// Shared marks a texture created against a cross-adapter shared heap:
	// the primary and secondary device both hold a handle to the same
	// backing allocation (or its row-major shadow copy, for the Bound
	// flavor). Only CrossAdapter and Bound textures carry this bit.
	TextureUsageShared
)

// MemoryLocation states which device the allocation physically resides on
// and, for shared allocations, how data travels from one adapter to the
// other. CpuToGpu/GpuToCpu describe staging buffers; GpuOnly/SharedGpu
// describe device-local and cross-adapter-visible allocations.
type MemoryLocation uint8

const (
	MemoryLocationGpuOnly MemoryLocation = iota
	MemoryLocationCpuToGpu
	MemoryLocationGpuToCpu
	MemoryLocationSharedGpu
)

// TextureFlavor selects how a texture's backing memory is shared (or not)
// between the primary and secondary adapter. See rhi.Device.CreateTexture
// for the policy that picks a flavor for a given request.
type TextureFlavor uint8

const (
	// TextureFlavorLocal textures live entirely on one adapter and are
	// never read by the other.
	TextureFlavorLocal TextureFlavor = iota
	// TextureFlavorCrossAdapter textures live in a heap both adapters can
	// open directly, used when the secondary adapter supports shared
	// heaps natively.
	TextureFlavorCrossAdapter
	// TextureFlavorBound textures are fast device-local textures on the
	// producing adapter with a row-major shadow copy the consuming
	// adapter pulls via a CPU-visible staging buffer, used when the
	// secondary adapter cannot open the primary's heap directly.
	TextureFlavorBound
)

// BufferUsage is a bitflag set describing how a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageCopySrc BufferUsage = 1 << iota
	BufferUsageCopyDst
	BufferUsageUniform
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageMapRead
	BufferUsageMapWrite
	BufferUsageQueryResolve
)

// IndexFormat preserves the dual 16/32-bit index ambiguity the original
// renderer leaves unresolved: callers choose per-draw, nothing in the
// queue or encoder forces one or the other.
type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Size returns the byte width of one index in the format.
func (f IndexFormat) Size() uint64 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

// Extent3D is a width/height/depth-or-layers triple used for texture
// sizing and copy regions.
type Extent3D struct {
	Width              uint32
	Height             uint32
	DepthOrArrayLayers uint32
}

// Origin3D is a copy-region offset.
type Origin3D struct {
	X, Y, Z uint32
}

// Color is a normalized RGBA clear/blend value.
type Color struct {
	R, G, B, A float64
}

// BufferDescriptor configures buffer creation.
type BufferDescriptor struct {
	Label    string
	Size     uint64
	Usage    BufferUsage
	Location MemoryLocation
}

// TextureDescriptor configures texture creation.
type TextureDescriptor struct {
	Label         string
	Type          TextureType
	Format        TextureFormat
	Size          Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Usage         TextureUsage
	Location      MemoryLocation
}

// TextureViewDescriptor configures a texture view into a parent texture.
// Usage names the single aspect this view exposes — RenderAttachment,
// DepthStencilAttachment, or Sampled — so the backend knows which
// descriptor heap to allocate the view's slot from. A texture created
// with more than one of those usage bits (a G-buffer target that is
// both a render attachment and later sampled) gets one view per aspect,
// each with its own Usage value; Usage is never a combination of bits.
type TextureViewDescriptor struct {
	Label      string
	Usage      TextureUsage
	BaseLevel  uint32
	LevelCount uint32
	BaseLayer  uint32
	LayerCount uint32
}

// SamplerDescriptor configures sampler creation. The renderer only needs
// the filtering axis the CSM and G-buffer passes exercise; wrap modes are
// fixed to clamp-to-edge, matching the original renderer's sampler usage.
type SamplerDescriptor struct {
	Label          string
	MinFilterLinear bool
	MagFilterLinear bool
	CompareEnabled  bool
}
