// Package rhi defines the render hardware interface: the explicit,
// single-backend abstraction the renderer drives directly. Unlike a
// multi-backend HAL, there is exactly one concrete implementation
// (rhi/sim) per build. Device-facing code (context, queue, encoder,
// framegraph) holds the backend only through these interfaces, so its
// calls into the backend, frame-time calls included, are dispatched
// through them. The interfaces exist to separate device-facing code from
// backend internals, not to support swapping backends at runtime.
package rhi

import (
	"errors"
	"time"

	"github.com/gogpu/fotia/descriptor"
	"github.com/gogpu/fotia/rhi/types"
)

// Sentinel errors surfaced by device and queue operations.
var (
	ErrZeroArea          = errors.New("rhi: surface configured with zero width or height")
	ErrDeviceLost        = errors.New("rhi: device lost")
	ErrOutOfMemory       = errors.New("rhi: allocation exceeds device memory")
	ErrShaderCompile     = errors.New("rhi: shader module failed to compile")
	ErrSurfaceOutdated   = errors.New("rhi: surface is outdated and must be reconfigured")
	ErrUnsupportedFlavor = errors.New("rhi: requested texture flavor is not supported on this adapter")
)

// Resource is the base interface every created GPU object satisfies.
type Resource interface {
	Destroy()
}

// Buffer is an allocated linear memory region.
type Buffer interface {
	Resource
	Size() uint64
	Usage() types.BufferUsage
}

// Texture is an allocated image resource, possibly backed by memory
// shared with a second adapter (see types.TextureFlavor).
type Texture interface {
	Resource
	Size() types.Extent3D
	Format() types.TextureFormat
	Flavor() types.TextureFlavor
}

// TextureView is a typed view into a Texture's subresources. Descriptor
// reports the heap slot the backend allocated for this view, ok false
// for a view whose TextureViewDescriptor.Usage carried no descriptor-
// bearing aspect.
type TextureView interface {
	Resource
	Descriptor() (kind descriptor.Kind, slot descriptor.Slot, ok bool)
}

// Sampler configures texture filtering for shader reads.
type Sampler interface {
	Resource
}

// ShaderModule is a validated, lowered shader program.
type ShaderModule interface {
	Resource
}

// PipelineLayout describes the set of ShaderArgument slots a pipeline
// expects, analogous to a bind group layout but named for what it is:
// the argument list a shader takes.
type PipelineLayout interface {
	Resource
}

// ShaderArgument binds concrete resources (buffers, textures, samplers)
// to the slots a PipelineLayout declares.
type ShaderArgument interface {
	Resource
}

// RasterPipeline is a compiled graphics pipeline state object: shader
// stages, vertex layout, rasterizer and depth-stencil state, and render
// target formats, fixed at creation time.
type RasterPipeline interface {
	Resource
}

// CommandBuffer is a finished, submittable list of encoded commands.
type CommandBuffer interface {
	Resource
}

// Fence is a monotonically increasing sync-point counter a queue signals
// and callers wait on.
type Fence interface {
	Resource
	// Value returns the highest sync-point value reached so far.
	Value() uint64
}

// Surface is a presentable swapchain target bound to a platform window.
type Surface interface {
	Resource
	Configure(device Device, config *SurfaceConfiguration) error
	Unconfigure(device Device)
	AcquireTexture(fence Fence) (*AcquiredSurfaceTexture, error)
	DiscardTexture(tex SurfaceTexture)
}

// SurfaceTexture is a Texture acquired from a Surface for one frame.
type SurfaceTexture interface {
	Texture
}

// AcquiredSurfaceTexture bundles an acquired texture with whether the
// surface configuration has degraded (still presentable, but should be
// reconfigured soon).
type AcquiredSurfaceTexture struct {
	Texture    SurfaceTexture
	Suboptimal bool
}

// PresentMode selects the swapchain's presentation cadence.
type PresentMode uint8

const (
	PresentModeFifo PresentMode = iota
	PresentModeImmediate
	PresentModeMailbox
)

// SurfaceConfiguration parameterizes Surface.Configure.
type SurfaceConfiguration struct {
	Width       uint32
	Height      uint32
	Format      types.TextureFormat
	PresentMode PresentMode
}

// BufferDescriptor and friends are re-exported from rhi/types so callers
// only need to import one package for the common creation path.
type (
	BufferDescriptor      = types.BufferDescriptor
	TextureDescriptor     = types.TextureDescriptor
	TextureViewDescriptor = types.TextureViewDescriptor
	SamplerDescriptor     = types.SamplerDescriptor
)

// ShaderModuleDescriptor configures shader module creation from WGSL
// source. Compilation failures are fatal at startup per the renderer's
// error policy: a broken shader means a broken build, not a runtime
// fallback.
type ShaderModuleDescriptor struct {
	Label  string
	Source string
}

// PipelineLayoutDescriptor configures a pipeline layout. ArgumentSlots
// gives the number of ShaderArgument bindings the layout reserves.
type PipelineLayoutDescriptor struct {
	Label         string
	ArgumentSlots uint32
}

// ShaderArgumentEntry binds one resource into a ShaderArgument slot.
type ShaderArgumentEntry struct {
	Binding uint32
	Buffer  Buffer
	View    TextureView
	Sampler Sampler
}

// ShaderArgumentDescriptor configures a ShaderArgument.
type ShaderArgumentDescriptor struct {
	Layout  PipelineLayout
	Entries []ShaderArgumentEntry
}

// RasterPipelineDescriptor configures a RasterPipeline.
type RasterPipelineDescriptor struct {
	Label          string
	Layout         PipelineLayout
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	ColorFormats   []types.TextureFormat
	DepthFormat    types.TextureFormat
	DepthWrite     bool
	DepthCompare   CompareFunc
	CullMode       CullMode
}

// CompareFunc mirrors the depth/stencil comparison functions the
// rasterizer supports.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// CullMode selects back-face culling behavior.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// Adapter represents one physical or simulated device the renderer can
// open. In a multi-GPU build, two distinct Adapter values are opened:
// primary (renders the G-buffer) and secondary (renders the CSM atlas).
type Adapter interface {
	// Name identifies the adapter for logs and telemetry.
	Name() string
	// Open creates a Device and its default Queue.
	Open() (Device, Queue, error)
	// SupportsSharedHeaps reports whether CreateTexture can return a
	// CrossAdapter-flavor texture when requested; if false, the device
	// falls back to the Bound flavor (local texture + shadow copy).
	SupportsSharedHeaps() bool
	Destroy()
}

// Device creates and destroys GPU resources. All methods are safe to
// call from any goroutine; callers are responsible for not destroying a
// resource while it is in flight on a Queue.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateTextureView(tex Texture, desc *TextureViewDescriptor) (TextureView, error)
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateShaderArgument(desc *ShaderArgumentDescriptor) (ShaderArgument, error)
	CreateRasterPipeline(desc *RasterPipelineDescriptor) (RasterPipeline, error)
	CreateCommandEncoder() (CommandEncoder, error)
	CreateFence() (Fence, error)
	// Wait blocks until fence reaches value or timeout elapses, returning
	// false on timeout.
	Wait(fence Fence, value uint64, timeout time.Duration) (bool, error)
	// OpenSharedTexture imports a texture created on a peer device that
	// shares a cross-adapter heap with this one. Only valid for textures
	// created with types.TextureFlavorCrossAdapter.
	OpenSharedTexture(peer Texture) (Texture, error)
	Destroy()
}

// Queue submits command buffers and performs immediate data uploads.
type Queue interface {
	// Submit enqueues buffers for execution and, if fence is non-nil,
	// arranges for it to reach fenceValue once all of them complete.
	Submit(buffers []CommandBuffer, fence Fence, fenceValue uint64) error
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	WriteTexture(dst Texture, data []byte, size types.Extent3D) error
	Present(surface Surface, tex SurfaceTexture) error
	// GetTimestampPeriod returns the number of nanoseconds one timestamp
	// tick represents, used to convert raw timestamp query results into
	// milliseconds: ms = (end - start) * period / 1e6.
	GetTimestampPeriod() float32
}
