package framegraph

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/csm"
	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim/track"
	"github.com/gogpu/fotia/rhi/types"
)

const csmVertexShader = `
struct Cascade {
	proj_view: mat4x4<f32>,
}
struct Transform {
	model: mat4x4<f32>,
}
@group(0) @binding(0) var<uniform> cascade: Cascade;
@group(1) @binding(0) var<uniform> xform: Transform;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
	return cascade.proj_view * xform.model * vec4<f32>(position, 1.0);
}
`

// CSMPass renders the single-GPU cascaded shadow map atlas: 4 depth-only
// cascades packed into the four quadrants of a 2*size x 2*size depth
// texture, indexed by frame_idx into a per-frame-in-flight uniform range
// (the single-GPU path's uniform indexing convention; the multi-GPU
// ring path indexes by ring slot instead, and the two are deliberately
// not unified — see the ring package).
type CSMPass struct {
	ctx    *context.Context
	size   uint32
	lambda float32

	atlas    handle.TextureHandle
	atlasDSV rhi.TextureView
	atlasSRV rhi.TextureView

	// srvArgument binds the atlas SRV at slot 2 of the directional light
	// pass's pipeline, matching the source's combined {Srv, cascades
	// buffer} argument (the cascades buffer is omitted here: this core
	// has no G-buffer position target to reconstruct a per-pixel
	// cascade index from).
	srvArgument handle.ShaderArgumentHandle

	layout   handle.PipelineLayoutHandle
	pipeline handle.RasterPipelineHandle
}

// NewCSMPass creates the cascade atlas (size is one cascade's edge
// length; the atlas is 2*size square) and its depth-only pipeline.
func NewCSMPass(ctx *context.Context, size uint32, lambda float32) (*CSMPass, error) {
	p := &CSMPass{ctx: ctx, size: size, lambda: lambda}

	h, err := ctx.CreateTexture(&rhi.TextureDescriptor{
		Label:  "CSM Atlas",
		Type:   types.TextureType2D,
		Format: types.FormatD32Float,
		Size:   types.Extent3D{Width: 2 * size, Height: 2 * size, DepthOrArrayLayers: 1},
		Usage:  types.TextureUsageDepthStencilAttachment | types.TextureUsageSampled,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: create atlas: %w", err)
	}
	p.atlas = h
	if p.atlasDSV, err = ctx.CreateTextureView(h, &rhi.TextureViewDescriptor{Label: "CSM Atlas DSV", Usage: types.TextureUsageDepthStencilAttachment}); err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: dsv: %w", err)
	}
	if p.atlasSRV, err = ctx.CreateTextureView(h, &rhi.TextureViewDescriptor{Label: "CSM Atlas SRV", Usage: types.TextureUsageSampled}); err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: srv: %w", err)
	}
	p.srvArgument, err = ctx.CreateShaderArgument(&rhi.ShaderArgumentDescriptor{
		Entries: []rhi.ShaderArgumentEntry{{Binding: 0, View: p.atlasSRV}},
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: srv argument: %w", err)
	}

	vs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "csm.vs", Source: csmVertexShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: %w", err)
	}
	layoutHandle, layout, err := ctx.CreatePipelineLayout(&rhi.PipelineLayoutDescriptor{Label: "csm.layout", ArgumentSlots: 2})
	if err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: %w", err)
	}
	p.layout = layoutHandle

	p.pipeline, err = ctx.CreateRasterPipeline(&rhi.RasterPipelineDescriptor{
		Label:        "csm.pipeline",
		Layout:       layout,
		VertexShader: vs,
		DepthFormat:  types.FormatD32Float,
		DepthWrite:   true,
		DepthCompare: rhi.CompareLess,
		CullMode:     rhi.CullNone,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: csmpass: create pipeline: %w", err)
	}
	return p, nil
}

// SRV is the shader-resource view of the atlas the directional light
// pass samples.
func (p *CSMPass) SRV() rhi.TextureView { return p.atlasSRV }

// Texture is the atlas's handle, tracked for the barrier the directional
// light pass issues to bring it back to Common after sampling.
func (p *CSMPass) Texture() handle.TextureHandle { return p.atlas }

// SRVArgument is the shader argument the directional light pass binds
// at slot 2 to sample the atlas.
func (p *CSMPass) SRVArgument() handle.ShaderArgumentHandle { return p.srvArgument }

// Update recomputes this frame's cascade splits and projections.
func (p *CSMPass) Update(camera csm.Camera, lightDir mgl32.Vec3) csm.Cascades {
	return csm.Update(camera, lightDir, p.lambda)
}

// Render draws all 4 cascades into their atlas quadrants, with one
// scissor over the whole atlas and one viewport per quadrant, binding
// cascades.ProjViews[i] and every opaque item's transform.
func (p *CSMPass) Render(perCascadeTransform func(i int) handle.ShaderArgumentHandle, scene Scene) (time.Duration, error) {
	raw, sp, err := p.ctx.Graphics.Acquire("Cascaded Shadow Maps")
	if err != nil {
		return 0, fmt.Errorf("framegraph: csmpass: acquire: %w", err)
	}
	enc := encoder.New(raw, p.ctx.Tracking)
	timer := newPassTimer("Cascaded Shadow Maps")

	atlasTex, _ := p.ctx.Resources.Textures.Get(p.atlas)
	enc.UseTexture(p.atlas, atlasTex, track.TextureUsesDepthStencilWrite)

	timer.begin(enc)
	rp := enc.BeginRenderPass(&rhi.RenderPassDescriptor{
		Label: "Cascaded Shadow Maps",
		DepthStencilAttachment: &rhi.DepthStencilAttachment{
			View: p.atlasDSV, LoadClear: true, DepthClearValue: 1.0,
		},
	})
	rp.SetPipeline(mustPipeline(p.ctx, p.pipeline))
	rp.SetScissorRect(0, 0, 2*p.size, 2*p.size)

	for i := 0; i < csm.CascadeCount; i++ {
		row, col := uint32(i/2), uint32(i%2)
		rp.SetViewport(float32(p.size*col), float32(p.size*row), float32(p.size), float32(p.size), 0, 1)

		cascadeArgHandle := perCascadeTransform(i)
		cascadeArg, ok := p.ctx.Resources.ShaderArguments.Get(cascadeArgHandle)
		if !ok {
			continue
		}
		rp.SetShaderArgument(0, cascadeArg)

		for _, item := range scene.Opaque() {
			xformArg, ok := p.ctx.Resources.ShaderArguments.Get(item.Transform)
			if !ok {
				continue
			}
			rp.SetShaderArgument(1, xformArg)
			vb, _ := p.ctx.Resources.Buffers.Get(item.VertexBuf)
			ib, _ := p.ctx.Resources.Buffers.Get(item.IndexBuf)
			rp.SetVertexBuffer(0, vb, 0)
			rp.SetIndexBuffer(ib, item.IndexFmt, 0)
			rp.DrawIndexed(item.IndexCount, 1, int32(item.StartIndex), uint32(item.BaseVertex))
		}
	}
	rp.End()
	timer.finish(enc)

	if err := p.ctx.Graphics.Submit(raw, sp); err != nil {
		return 0, err
	}
	entry, ok := timer.resolve(p.ctx.Graphics)
	if !ok {
		return 0, nil
	}
	return entry.Duration, nil
}
