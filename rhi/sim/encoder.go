package sim

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim/raster"
	"github.com/gogpu/fotia/rhi/types"
)

// CommandEncoder records operations as closures and defers their
// execution until Queue.Submit replays them, so recording order always
// matches GPU execution order even though nothing runs until submit.
type CommandEncoder struct {
	label string
	ops   []func()
}

func (c *CommandEncoder) BeginEncoding(label string) error {
	c.label = label
	c.ops = c.ops[:0]
	return nil
}

func (c *CommandEncoder) EndEncoding() (rhi.CommandBuffer, error) {
	cb := &CommandBuffer{ops: c.ops}
	c.ops = nil
	return cb, nil
}

func (c *CommandEncoder) DiscardEncoding() {
	c.ops = nil
}

// TransitionBuffers and TransitionTextures are no-ops: the simulated
// backend replays ops in strict recorded order on a single goroutine,
// so there is no hazard a barrier would need to resolve. A hardware
// backend would translate these into real resource barriers.
func (c *CommandEncoder) TransitionBuffers(_ []rhi.BufferBarrier)   {}
func (c *CommandEncoder) TransitionTextures(_ []rhi.TextureBarrier) {}

func (c *CommandEncoder) ClearBuffer(buf rhi.Buffer, offset, size uint64) {
	c.ops = append(c.ops, func() {
		if b, ok := buf.(*Buffer); ok {
			b.clear(offset, size)
		}
	})
}

func (c *CommandEncoder) CopyBufferToBuffer(src, dst rhi.Buffer, regions []rhi.BufferCopy) {
	c.ops = append(c.ops, func() {
		s, sok := src.(*Buffer)
		d, dok := dst.(*Buffer)
		if !sok || !dok {
			return
		}
		for _, r := range regions {
			tmp := make([]byte, r.Size)
			s.read(r.SrcOffset, tmp)
			d.write(r.DstOffset, tmp)
		}
	})
}

func (c *CommandEncoder) CopyBufferToTexture(src rhi.Buffer, dst rhi.Texture, regions []rhi.BufferTextureCopy) {
	c.ops = append(c.ops, func() {
		s, sok := src.(*Buffer)
		d, dok := dst.(*Texture)
		if !sok || !dok {
			return
		}
		for _, r := range regions {
			size := uint64(r.Size.Width) * uint64(r.Size.Height) * uint64(r.Size.DepthOrArrayLayers) * uint64(d.format.BytesPerTexel())
			tmp := make([]byte, size)
			s.read(r.BufferLayout.Offset, tmp)
			d.mu.Lock()
			copy(d.data, tmp)
			d.mu.Unlock()
		}
	})
}

func (c *CommandEncoder) CopyTextureToBuffer(src rhi.Texture, dst rhi.Buffer, regions []rhi.BufferTextureCopy) {
	c.ops = append(c.ops, func() {
		s, sok := src.(*Texture)
		d, dok := dst.(*Buffer)
		if !sok || !dok {
			return
		}
		for _, r := range regions {
			size := uint64(r.Size.Width) * uint64(r.Size.Height) * uint64(r.Size.DepthOrArrayLayers) * uint64(s.format.BytesPerTexel())
			s.mu.RLock()
			tmp := make([]byte, size)
			copy(tmp, s.data)
			s.mu.RUnlock()
			d.write(r.BufferLayout.Offset, tmp)
		}
	})
}

func (c *CommandEncoder) CopyTextureToTexture(src, dst rhi.Texture, regions []rhi.TextureCopy) {
	c.ops = append(c.ops, func() {
		s, sok := src.(*Texture)
		d, dok := dst.(*Texture)
		if !sok || !dok {
			return
		}
		for _, r := range regions {
			size := uint64(r.Size.Width) * uint64(r.Size.Height) * uint64(r.Size.DepthOrArrayLayers) * uint64(d.format.BytesPerTexel())
			s.mu.RLock()
			d.mu.Lock()
			n := size
			if uint64(len(s.data)) < n {
				n = uint64(len(s.data))
			}
			if uint64(len(d.data)) < n {
				n = uint64(len(d.data))
			}
			copy(d.data[:n], s.data[:n])
			d.mu.Unlock()
			s.mu.RUnlock()
		}
	})
}

// timestampClock is the simulated GPU clock: each replayed WriteTimestamp
// advances it and records the new value under its query index, which
// ResolveTimestamp reads back.
var timestampClock uint64

func (c *CommandEncoder) WriteTimestamp(index uint32) {
	c.ops = append(c.ops, func() {
		timestampClock++
		recordTimestamp(index, timestampClock)
	})
}

func (c *CommandEncoder) BeginRenderPass(desc *rhi.RenderPassDescriptor) rhi.RenderPassEncoder {
	return &renderPass{encoder: c, desc: desc}
}

// renderPass accumulates draw state and, like CommandEncoder, defers
// actual rasterization into the parent encoder's op list.
type renderPass struct {
	encoder *CommandEncoder
	desc    *rhi.RenderPassDescriptor

	viewport      raster.Viewport
	vertexBuffer  *Buffer
	indexBuffer   *Buffer
	indexFormat   types.IndexFormat
	pipeline      *RasterPipeline
}

func (r *renderPass) End() {
	for _, att := range r.desc.ColorAttachments {
		if !att.LoadClear {
			continue
		}
		if v, ok := att.View.(*TextureView); ok && v.texture != nil {
			cv := att.ClearValue
			r.encoder.ops = append(r.encoder.ops, func() { v.texture.clear(cv) })
		}
	}
	if r.desc.DepthStencilAttachment != nil && r.desc.DepthStencilAttachment.LoadClear {
		if v, ok := r.desc.DepthStencilAttachment.View.(*TextureView); ok && v.texture != nil {
			val := r.desc.DepthStencilAttachment.DepthClearValue
			r.encoder.ops = append(r.encoder.ops, func() {
				v.texture.clear(types.Color{R: float64(val), G: float64(val), B: float64(val), A: 1})
			})
		}
	}
}

func (r *renderPass) SetPipeline(p rhi.RasterPipeline) {
	rp, _ := p.(*RasterPipeline)
	r.pipeline = rp
}

func (r *renderPass) SetShaderArgument(_ uint32, _ rhi.ShaderArgument) {}

func (r *renderPass) SetVertexBuffer(_ uint32, buf rhi.Buffer, _ uint64) {
	r.vertexBuffer, _ = buf.(*Buffer)
}

func (r *renderPass) SetIndexBuffer(buf rhi.Buffer, format types.IndexFormat, _ uint64) {
	r.indexBuffer, _ = buf.(*Buffer)
	r.indexFormat = format
}

func (r *renderPass) SetViewport(x, y, w, h, minD, maxD float32) {
	r.viewport = raster.Viewport{X: int(x), Y: int(y), Width: int(w), Height: int(h), MinDepth: minD, MaxDepth: maxD}
}

func (r *renderPass) SetScissorRect(_, _, _, _ uint32) {}

// Draw rasterizes vertexCount/3 triangles read from the bound vertex
// buffer. Each vertex is 3 float32 (already in NDC space: no vertex
// shader stage executes in the simulated backend, so vertex data is
// rasterized exactly as uploaded, with no transform applied).
func (r *renderPass) Draw(vertexCount, _ uint32, firstVertex, _ uint32) {
	vb, pipeline, viewport := r.vertexBuffer, r.pipeline, r.viewport
	colorTarget, depthTarget := r.colorTargetTexture(), r.depthTargetTexture()
	r.encoder.ops = append(r.encoder.ops, func() {
		if vb == nil {
			return
		}
		tris := readTriangles(vb, firstVertex, vertexCount)
		rasterizeTriangles(tris, pipeline, viewport, colorTarget, depthTarget)
	})
}

// DrawIndexed rasterizes triangles selected from the vertex buffer by
// the bound index buffer.
func (r *renderPass) DrawIndexed(indexCount, _ uint32, firstIndex int32, _ uint32) {
	vb, ib, ifmt, pipeline, viewport := r.vertexBuffer, r.indexBuffer, r.indexFormat, r.pipeline, r.viewport
	colorTarget, depthTarget := r.colorTargetTexture(), r.depthTargetTexture()
	r.encoder.ops = append(r.encoder.ops, func() {
		if vb == nil || ib == nil {
			return
		}
		indices := readIndices(ib, ifmt, firstIndex, indexCount)
		tris := readIndexedTriangles(vb, indices)
		rasterizeTriangles(tris, pipeline, viewport, colorTarget, depthTarget)
	})
}

func (r *renderPass) colorTargetTexture() *Texture {
	if len(r.desc.ColorAttachments) == 0 {
		return nil
	}
	if v, ok := r.desc.ColorAttachments[0].View.(*TextureView); ok {
		return v.texture
	}
	return nil
}

func (r *renderPass) depthTargetTexture() *Texture {
	if r.desc.DepthStencilAttachment == nil {
		return nil
	}
	if v, ok := r.desc.DepthStencilAttachment.View.(*TextureView); ok {
		return v.texture
	}
	return nil
}

const vertexStride = 12 // 3 * float32

func readVertex(vb *Buffer, index uint32) raster.ScreenVertex {
	vb.mu.RLock()
	defer vb.mu.RUnlock()
	off := uint64(index) * vertexStride
	if off+vertexStride > uint64(len(vb.data)) {
		return raster.ScreenVertex{W: 1}
	}
	x := math.Float32frombits(binary.LittleEndian.Uint32(vb.data[off:]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(vb.data[off+4:]))
	z := math.Float32frombits(binary.LittleEndian.Uint32(vb.data[off+8:]))
	return raster.ScreenVertex{X: x, Y: y, Z: z, W: 1}
}

func readTriangles(vb *Buffer, first, count uint32) []raster.Triangle {
	var tris []raster.Triangle
	for i := first; i+3 <= first+count; i += 3 {
		tris = append(tris, raster.Triangle{
			V0: readVertex(vb, i+0),
			V1: readVertex(vb, i+1),
			V2: readVertex(vb, i+2),
		})
	}
	return tris
}

func readIndices(ib *Buffer, format types.IndexFormat, firstIndex int32, count uint32) []uint32 {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	size := format.Size()
	out := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		off := uint64(int64(firstIndex)+int64(i)) * size
		if off+size > uint64(len(ib.data)) {
			break
		}
		if format == types.IndexFormatUint32 {
			out = append(out, binary.LittleEndian.Uint32(ib.data[off:]))
		} else {
			out = append(out, uint32(binary.LittleEndian.Uint16(ib.data[off:])))
		}
	}
	return out
}

func readIndexedTriangles(vb *Buffer, indices []uint32) []raster.Triangle {
	var tris []raster.Triangle
	for i := 0; i+3 <= len(indices); i += 3 {
		tris = append(tris, raster.Triangle{
			V0: readVertex(vb, indices[i+0]),
			V1: readVertex(vb, indices[i+1]),
			V2: readVertex(vb, indices[i+2]),
		})
	}
	return tris
}

// rasterizeTriangles runs the CPU rasterizer over tris and writes the
// resulting pixels directly into the color/depth texture byte storage.
func rasterizeTriangles(tris []raster.Triangle, pipeline *RasterPipeline, viewport raster.Viewport, color, depth *Texture) {
	if len(tris) == 0 || color == nil {
		return
	}
	w, h := int(viewport.Width), int(viewport.Height)
	if w == 0 || h == 0 {
		w, h = int(color.size.Width), int(color.size.Height)
	}
	p := raster.NewPipeline(w, h)
	p.SetViewport(viewport)
	if pipeline != nil {
		p.SetCullMode(cullToRaster(pipeline.desc.CullMode))
		p.SetDepthTest(depth != nil, compareToRaster(pipeline.desc.DepthCompare))
		p.SetDepthWrite(pipeline.desc.DepthWrite)
	}
	p.DrawTriangles(tris, [4]float32{1, 1, 1, 1})

	color.mu.Lock()
	copy(color.data, p.GetColorBuffer())
	color.mu.Unlock()

	if depth != nil {
		depth.mu.Lock()
		db := p.GetDepthBuffer()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := (y*w + x) * 4
				if idx+4 > len(depth.data) {
					continue
				}
				v := db.Get(x, y)
				binary.LittleEndian.PutUint32(depth.data[idx:], math.Float32bits(v))
			}
		}
		depth.mu.Unlock()
	}
}

func cullToRaster(c rhi.CullMode) raster.CullMode {
	switch c {
	case rhi.CullFront:
		return raster.CullFront
	case rhi.CullBack:
		return raster.CullBack
	default:
		return raster.CullNone
	}
}

func compareToRaster(c rhi.CompareFunc) raster.CompareFunc {
	switch c {
	case rhi.CompareNever:
		return raster.CompareNever
	case rhi.CompareEqual:
		return raster.CompareEqual
	case rhi.CompareLessEqual:
		return raster.CompareLessEqual
	case rhi.CompareGreater:
		return raster.CompareGreater
	case rhi.CompareNotEqual:
		return raster.CompareNotEqual
	case rhi.CompareGreaterEqual:
		return raster.CompareGreaterEqual
	case rhi.CompareAlways:
		return raster.CompareAlways
	default:
		return raster.CompareLess
	}
}

// timestamps records a monotonic GPU-clock-tick per query index, read
// back by queue timestamp resolution.
var timestamps = map[uint32]uint64{}

func recordTimestamp(index uint32, tick uint64) {
	timestamps[index] = tick
}

// ResolveTimestamp returns the recorded tick for a query index, and
// whether one was ever written.
func ResolveTimestamp(index uint32) (uint64, bool) {
	v, ok := timestamps[index]
	return v, ok
}
