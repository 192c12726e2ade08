package framegraph

import (
	"fmt"
	"time"

	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim/track"
	"github.com/gogpu/fotia/rhi/types"
)

const zpassVertexShader = `
struct Globals {
	view_proj: mat4x4<f32>,
}
struct Transform {
	model: mat4x4<f32>,
}
@group(0) @binding(0) var<uniform> globals: Globals;
@group(1) @binding(0) var<uniform> xform: Transform;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
	return globals.view_proj * xform.model * vec4<f32>(position, 1.0);
}
`

// ZPass renders scene depth only, ahead of the G-pass, so the G-pass can
// run with DepthRead/Equal and skip overdrawn fragments.
type ZPass struct {
	ctx    *context.Context
	extent Extent

	depth     handle.TextureHandle
	depthView rhi.TextureView

	layout   handle.PipelineLayoutHandle
	pipeline handle.RasterPipelineHandle
}

// NewZPass creates the prepass depth target and its pipeline.
func NewZPass(ctx *context.Context, extent Extent) (*ZPass, error) {
	p := &ZPass{ctx: ctx, extent: extent}
	if err := p.createDepth(extent); err != nil {
		return nil, err
	}

	vs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "zpass.vs", Source: zpassVertexShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: zpass: %w", err)
	}
	layoutHandle, layout, err := ctx.CreatePipelineLayout(&rhi.PipelineLayoutDescriptor{Label: "zpass.layout", ArgumentSlots: 2})
	if err != nil {
		return nil, fmt.Errorf("framegraph: zpass: %w", err)
	}
	p.layout = layoutHandle

	p.pipeline, err = ctx.CreateRasterPipeline(&rhi.RasterPipelineDescriptor{
		Label:        "zpass.pipeline",
		Layout:       layout,
		VertexShader: vs,
		DepthFormat:  types.FormatD24UnormS8Uint,
		DepthWrite:   true,
		DepthCompare: rhi.CompareLess,
		CullMode:     rhi.CullBack,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: zpass: create pipeline: %w", err)
	}
	return p, nil
}

func (p *ZPass) createDepth(extent Extent) error {
	h, err := p.ctx.CreateTexture(&rhi.TextureDescriptor{
		Label:  "Prepass Depth",
		Type:   types.TextureType2D,
		Format: types.FormatD24UnormS8Uint,
		Size:   types.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
		Usage:  types.TextureUsageDepthStencilAttachment,
	})
	if err != nil {
		return fmt.Errorf("framegraph: zpass: create depth: %w", err)
	}
	view, err := p.ctx.CreateTextureView(h, &rhi.TextureViewDescriptor{Label: "Prepass Depth View", Usage: types.TextureUsageDepthStencilAttachment})
	if err != nil {
		return fmt.Errorf("framegraph: zpass: depth view: %w", err)
	}
	p.depth = h
	p.depthView = view
	return nil
}

// Depth returns the depth texture handle the G-pass reads DepthRead from.
func (p *ZPass) Depth() handle.TextureHandle { return p.depth }

// Render records the Z-prepass: clear depth, draw every opaque item's
// position stream only. The returned duration is the GPU time the pass
// itself took, resolved from the timestamp queries bracketing the
// render pass; it is zero if the queries never resolved.
func (p *ZPass) Render(globals handle.ShaderArgumentHandle, scene Scene) (time.Duration, error) {
	raw, sp, err := p.ctx.Graphics.Acquire("Z Prepass")
	if err != nil {
		return 0, fmt.Errorf("framegraph: zpass: acquire: %w", err)
	}
	enc := encoder.New(raw, p.ctx.Tracking)
	timer := newPassTimer("Z Prepass")

	depthTex, _ := p.ctx.Resources.Textures.Get(p.depth)
	enc.UseTexture(p.depth, depthTex, track.TextureUsesDepthStencilWrite)

	timer.begin(enc)
	rp := enc.BeginRenderPass(&rhi.RenderPassDescriptor{
		Label: "Z Prepass",
		DepthStencilAttachment: &rhi.DepthStencilAttachment{
			View: p.depthView, LoadClear: true, DepthClearValue: 1.0,
		},
	})
	rp.SetPipeline(mustPipeline(p.ctx, p.pipeline))
	rp.SetViewport(0, 0, float32(p.extent.Width), float32(p.extent.Height), 0, 1)
	rp.SetScissorRect(0, 0, p.extent.Width, p.extent.Height)

	globalsArg, _ := p.ctx.Resources.ShaderArguments.Get(globals)
	rp.SetShaderArgument(0, globalsArg)

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

// Resize recreates the depth target at the new extent.
func (p *ZPass) Resize(extent Extent) error {
	p.ctx.DestroyTexture(p.depth)
	if err := p.createDepth(extent); err != nil {
		return err
	}
	p.extent = extent
	return nil
}

// mustPipeline resolves a pipeline handle within the same device the
// pass was built against; passes only ever look up their own handles,
// so a miss means a destroyed-resource bug upstream.
func mustPipeline(ctx *context.Context, h handle.RasterPipelineHandle) rhi.RasterPipeline {
	p, ok := ctx.Resources.RasterPipelines.Get(h)
	if !ok {
		panic("framegraph: raster pipeline handle is stale")
	}
	return p
}
