// Package context bundles one GPU device with its command queues and
// shared resource map (Context), and a primary/secondary device pair
// with sequential/parallel fan-out for multi-GPU operations
// (DualContext).
package context

import (
	"fmt"

	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/queue"
	"github.com/gogpu/fotia/rhi"
)

// BufferHandle and TextureHandle are re-exported so callers addressing
// context-owned resources don't need to import the handle package
// directly for the common cases.
type (
	BufferHandle  = handle.BufferHandle
	TextureHandle = handle.TextureHandle
)

// Context is one GPU's aggregate: the device, its three logical command
// queues, a dedicated uploader queue, the barrier-tracking state shared
// by every encoder created against this device, and the resource map
// every handle in this context resolves against.
type Context struct {
	Device rhi.Device

	Graphics *queue.Queue
	Compute  *queue.Queue
	Transfer *queue.Queue
	Uploader *queue.Queue

	Tracking  *encoder.Tracking
	Resources *Resources
}

// New opens the four logical queues a Context needs over a single
// device/queue pair. The simulated backend exposes one physical queue;
// Graphics/Compute/Transfer/Uploader each get independent fences and
// encoder pools so frame-pacing and barrier state never cross between
// them, even though submissions ultimately replay through the same
// underlying rhi.Queue.
func New(device rhi.Device, rq rhi.Queue) (*Context, error) {
	graphics, err := queue.New(device, rq)
	if err != nil {
		return nil, fmt.Errorf("context: graphics queue: %w", err)
	}
	compute, err := queue.New(device, rq)
	if err != nil {
		return nil, fmt.Errorf("context: compute queue: %w", err)
	}
	transfer, err := queue.New(device, rq)
	if err != nil {
		return nil, fmt.Errorf("context: transfer queue: %w", err)
	}
	uploader, err := queue.New(device, rq)
	if err != nil {
		return nil, fmt.Errorf("context: uploader queue: %w", err)
	}
	return &Context{
		Device:    device,
		Graphics:  graphics,
		Compute:   compute,
		Transfer:  transfer,
		Uploader:  uploader,
		Tracking:  encoder.NewTracking(),
		Resources: NewResources(),
	}, nil
}

// Open opens a device against adapter and wraps it in a Context.
func Open(adapter rhi.Adapter) (*Context, error) {
	device, rq, err := adapter.Open()
	if err != nil {
		return nil, fmt.Errorf("context: open adapter %q: %w", adapter.Name(), err)
	}
	return New(device, rq)
}

// CreateBuffer creates a buffer on this context's device and registers
// it in the resource map, returning the handle callers address it by.
func (c *Context) CreateBuffer(desc *rhi.BufferDescriptor) (BufferHandle, error) {
	buf, err := c.Device.CreateBuffer(desc)
	if err != nil {
		return BufferHandle{}, fmt.Errorf("context: create buffer: %w", err)
	}
	return c.Resources.Buffers.Insert(buf), nil
}

// CreateTexture creates a texture on this context's device and
// registers it in the resource map.
func (c *Context) CreateTexture(desc *rhi.TextureDescriptor) (TextureHandle, error) {
	tex, err := c.Device.CreateTexture(desc)
	if err != nil {
		return TextureHandle{}, fmt.Errorf("context: create texture: %w", err)
	}
	return c.Resources.Textures.Insert(tex), nil
}

// CreateSampler creates a sampler and registers it in the resource map.
func (c *Context) CreateSampler(desc *rhi.SamplerDescriptor) (handle.SamplerHandle, error) {
	s, err := c.Device.CreateSampler(desc)
	if err != nil {
		return handle.SamplerHandle{}, fmt.Errorf("context: create sampler: %w", err)
	}
	return c.Resources.Samplers.Insert(s), nil
}

// CreateShaderModule compiles WGSL source into a shader module. Shader
// modules aren't handle-addressed: a pass holds the rhi.ShaderModule
// directly, since nothing ever looks one up by handle.
func (c *Context) CreateShaderModule(desc *rhi.ShaderModuleDescriptor) (rhi.ShaderModule, error) {
	m, err := c.Device.CreateShaderModule(desc)
	if err != nil {
		return nil, fmt.Errorf("context: create shader module: %w", err)
	}
	return m, nil
}

// CreatePipelineLayout creates a pipeline layout and registers it.
func (c *Context) CreatePipelineLayout(desc *rhi.PipelineLayoutDescriptor) (handle.PipelineLayoutHandle, rhi.PipelineLayout, error) {
	layout, err := c.Device.CreatePipelineLayout(desc)
	if err != nil {
		return handle.PipelineLayoutHandle{}, nil, fmt.Errorf("context: create pipeline layout: %w", err)
	}
	return c.Resources.PipelineLayouts.Insert(layout), layout, nil
}

// CreateRasterPipeline creates a raster pipeline and registers it.
func (c *Context) CreateRasterPipeline(desc *rhi.RasterPipelineDescriptor) (handle.RasterPipelineHandle, error) {
	p, err := c.Device.CreateRasterPipeline(desc)
	if err != nil {
		return handle.RasterPipelineHandle{}, fmt.Errorf("context: create raster pipeline: %w", err)
	}
	return c.Resources.RasterPipelines.Insert(p), nil
}

// CreateShaderArgument creates a shader argument and registers it.
func (c *Context) CreateShaderArgument(desc *rhi.ShaderArgumentDescriptor) (handle.ShaderArgumentHandle, error) {
	a, err := c.Device.CreateShaderArgument(desc)
	if err != nil {
		return handle.ShaderArgumentHandle{}, fmt.Errorf("context: create shader argument: %w", err)
	}
	return c.Resources.ShaderArguments.Insert(a), nil
}

// CreateTextureView creates a view into an already-created texture. Views
// aren't handle-addressed in the resource map; callers hold the
// rhi.TextureView directly, matching how render-pass attachments and
// SRV bindings consume it.
func (c *Context) CreateTextureView(tex TextureHandle, desc *rhi.TextureViewDescriptor) (rhi.TextureView, error) {
	raw, ok := c.Resources.Textures.Get(tex)
	if !ok {
		return nil, fmt.Errorf("context: create texture view: stale texture handle %v", tex)
	}
	view, err := c.Device.CreateTextureView(raw, desc)
	if err != nil {
		return nil, fmt.Errorf("context: create texture view: %w", err)
	}
	return view, nil
}

// DestroyBuffer destroys the buffer behind h (if still live) and frees
// its handle slot.
func (c *Context) DestroyBuffer(h BufferHandle) {
	if buf, ok := c.Resources.Buffers.Get(h); ok {
		buf.Destroy()
	}
	c.Resources.Buffers.Remove(h)
}

// DestroyTexture destroys the texture behind h (if still live) and
// frees its handle slot.
func (c *Context) DestroyTexture(h TextureHandle) {
	if tex, ok := c.Resources.Textures.Get(h); ok {
		tex.Destroy()
	}
	c.Resources.Textures.Remove(h)
}

// NewEncoder wraps a freshly created command encoder from the device, sharing
// this context's barrier-tracking state.
func (c *Context) NewEncoder() (*encoder.Encoder, error) {
	raw, err := c.Device.CreateCommandEncoder()
	if err != nil {
		return nil, fmt.Errorf("context: create command encoder: %w", err)
	}
	return encoder.New(raw, c.Tracking), nil
}

// Destroy tears down the device. Queues hold no resources of their own
// beyond encoders and fences, which the device owns.
func (c *Context) Destroy() {
	c.Device.Destroy()
}
