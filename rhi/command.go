package rhi

import "github.com/gogpu/fotia/rhi/types"

// BufferBarrier transitions a buffer between usage states.
type BufferBarrier struct {
	Buffer Buffer
	From   types.BufferUsage
	To     types.BufferUsage
}

// TextureBarrier transitions a texture between usage states.
type TextureBarrier struct {
	Texture Texture
	From    types.TextureUsage
	To      types.TextureUsage
}

// BufferCopy describes one buffer-to-buffer copy region.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// ImageDataLayout describes how linear buffer data maps onto a texture
// copy region.
type ImageDataLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// BufferTextureCopy describes a buffer<->texture copy region.
type BufferTextureCopy struct {
	BufferLayout  ImageDataLayout
	TextureOrigin types.Origin3D
	Size          types.Extent3D
}

// TextureCopy describes a texture-to-texture copy region.
type TextureCopy struct {
	SrcOrigin types.Origin3D
	DstOrigin types.Origin3D
	Size      types.Extent3D
}

// ColorAttachment configures one render-pass color target.
type ColorAttachment struct {
	View       TextureView
	LoadClear  bool
	ClearValue types.Color
}

// DepthStencilAttachment configures a render-pass depth target.
type DepthStencilAttachment struct {
	View            TextureView
	LoadClear       bool
	DepthClearValue float32
}

// RenderPassDescriptor configures BeginRenderPass.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []ColorAttachment
	DepthStencilAttachment *DepthStencilAttachment
}

// CommandEncoder records GPU commands for later submission. A single
// encoder produces exactly one CommandBuffer; callers create a fresh
// encoder per frame (see queue.Queue's triple-buffered pool).
type CommandEncoder interface {
	// BeginEncoding resets the encoder, labeling the resulting command
	// buffer for diagnostics.
	BeginEncoding(label string) error
	// EndEncoding finishes recording and returns a submittable buffer.
	EndEncoding() (CommandBuffer, error)
	// DiscardEncoding abandons in-progress recording without producing
	// a command buffer, returning the encoder to the pool.
	DiscardEncoding()

	TransitionBuffers(barriers []BufferBarrier)
	TransitionTextures(barriers []TextureBarrier)

	ClearBuffer(buf Buffer, offset, size uint64)
	CopyBufferToBuffer(src, dst Buffer, regions []BufferCopy)
	CopyBufferToTexture(src Buffer, dst Texture, regions []BufferTextureCopy)
	CopyTextureToBuffer(src Texture, dst Buffer, regions []BufferTextureCopy)
	CopyTextureToTexture(src, dst Texture, regions []TextureCopy)

	// WriteTimestamp records a GPU timestamp into the query set at index,
	// used to bracket passes for the benchmark telemetry protocol.
	WriteTimestamp(index uint32)

	BeginRenderPass(desc *RenderPassDescriptor) RenderPassEncoder
}

// RenderPassEncoder records draw commands within a render pass.
type RenderPassEncoder interface {
	End()
	SetPipeline(pipeline RasterPipeline)
	SetShaderArgument(slot uint32, arg ShaderArgument)
	SetVertexBuffer(slot uint32, buf Buffer, offset uint64)
	SetIndexBuffer(buf Buffer, format types.IndexFormat, offset uint64)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount uint32, firstIndex int32, firstInstance uint32)
}
