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

const gpassFragmentShader = `
struct GOut {
	@location(0) diffuse: vec4<f32>,
	@location(1) normal: vec4<f32>,
	@location(2) material: vec4<f32>,
	@location(3) accum: vec4<f32>,
}

@fragment
fn fs_main() -> GOut {
	var out: GOut;
	out.diffuse = vec4<f32>(1.0, 1.0, 1.0, 1.0);
	out.normal = vec4<f32>(0.0, 0.0, 1.0, 0.0);
	out.material = vec4<f32>(0.5, 0.0, 0.0, 0.0);
	out.accum = vec4<f32>(0.0, 0.0, 0.0, 1.0);
	return out;
}
`

// gbuffer is one render-target slot: the render-attachment texture plus
// the shader-resource view the directional light pass samples.
type gbuffer struct {
	tex     handle.TextureHandle
	view    rhi.TextureView
	srvView rhi.TextureView
}

// GPass renders the deferred G-buffer: diffuse, normal, material, and an
// accumulation target the directional light pass writes lighting into.
type GPass struct {
	ctx    *context.Context
	extent Extent

	diffuse, normal, material, accum gbuffer
	depth                            handle.TextureHandle
	depthView                        rhi.TextureView

	layout   handle.PipelineLayoutHandle
	pipeline handle.RasterPipelineHandle
}

func (p *GPass) createTargets(extent Extent) error {
	mk := func(label string) (gbuffer, error) {
		var g gbuffer
		h, err := p.ctx.CreateTexture(&rhi.TextureDescriptor{
			Label:  label,
			Type:   types.TextureType2D,
			Format: types.FormatRGBA32Float,
			Size:   types.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
			Usage:  types.TextureUsageRenderAttachment | types.TextureUsageSampled,
		})
		if err != nil {
			return g, fmt.Errorf("create %s: %w", label, err)
		}
		view, err := p.ctx.CreateTextureView(h, &rhi.TextureViewDescriptor{Label: label + ".rtv", Usage: types.TextureUsageRenderAttachment})
		if err != nil {
			return g, fmt.Errorf("%s view: %w", label, err)
		}
		srv, err := p.ctx.CreateTextureView(h, &rhi.TextureViewDescriptor{Label: label + ".srv", Usage: types.TextureUsageSampled})
		if err != nil {
			return g, fmt.Errorf("%s srv: %w", label, err)
		}
		g.tex, g.view, g.srvView = h, view, srv
		return g, nil
	}

	var err error
	if p.diffuse, err = mk("Diffuse"); err != nil {
		return fmt.Errorf("framegraph: gpass: %w", err)
	}
	if p.normal, err = mk("Normal"); err != nil {
		return fmt.Errorf("framegraph: gpass: %w", err)
	}
	if p.material, err = mk("Material"); err != nil {
		return fmt.Errorf("framegraph: gpass: %w", err)
	}
	if p.accum, err = mk("Accumulation"); err != nil {
		return fmt.Errorf("framegraph: gpass: %w", err)
	}
	return nil
}

// NewGPass creates the four G-buffer render targets and the GPass
// pipeline; depth is the ZPass's depth texture, read (not written) here.
func NewGPass(ctx *context.Context, extent Extent, depth handle.TextureHandle) (*GPass, error) {
	p := &GPass{ctx: ctx, extent: extent, depth: depth}
	if err := p.createTargets(extent); err != nil {
		return nil, err
	}
	depthView, err := ctx.CreateTextureView(depth, &rhi.TextureViewDescriptor{Label: "GPass Depth Read", Usage: types.TextureUsageSampled})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gpass: depth view: %w", err)
	}
	p.depthView = depthView

	vs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "gpass.vs", Source: zpassVertexShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gpass: %w", err)
	}
	fs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "gpass.fs", Source: gpassFragmentShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gpass: %w", err)
	}
	layoutHandle, layout, err := ctx.CreatePipelineLayout(&rhi.PipelineLayoutDescriptor{Label: "gpass.layout", ArgumentSlots: 3})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gpass: %w", err)
	}
	p.layout = layoutHandle

	p.pipeline, err = ctx.CreateRasterPipeline(&rhi.RasterPipelineDescriptor{
		Label:          "gpass.pipeline",
		Layout:         layout,
		VertexShader:   vs,
		FragmentShader: fs,
		ColorFormats:   []types.TextureFormat{types.FormatRGBA32Float, types.FormatRGBA32Float, types.FormatRGBA32Float, types.FormatRGBA32Float},
		DepthFormat:    types.FormatD24UnormS8Uint,
		DepthWrite:     false,
		DepthCompare:   rhi.CompareEqual,
		CullMode:       rhi.CullBack,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gpass: create pipeline: %w", err)
	}
	return p, nil
}

// AccumSRV is the shader-resource view of the accumulation target, which
// the gamma-correction pass samples after the directional light pass
// writes into it.
func (p *GPass) AccumSRV() rhi.TextureView { return p.accum.srvView }

// DiffuseSRV, NormalSRV, MaterialSRV expose the G-buffer's shader-visible
// views for the directional light pass.
func (p *GPass) DiffuseSRV() rhi.TextureView  { return p.diffuse.srvView }
func (p *GPass) NormalSRV() rhi.TextureView   { return p.normal.srvView }
func (p *GPass) MaterialSRV() rhi.TextureView { return p.material.srvView }

// AccumTexture is the accumulation target's handle, tracked for barriers
// by the directional light pass and the gamma-correction pass.
func (p *GPass) AccumTexture() handle.TextureHandle { return p.accum.tex }

// Render records the G-pass: clear all four targets, draw every opaque
// item bound with its material and transform arguments.
func (p *GPass) Render(globals handle.ShaderArgumentHandle, scene Scene) (time.Duration, error) {
	raw, sp, err := p.ctx.Graphics.Acquire("GPass")
	if err != nil {
		return 0, fmt.Errorf("framegraph: gpass: acquire: %w", err)
	}
	enc := encoder.New(raw, p.ctx.Tracking)
	timer := newPassTimer("GPass")

	for _, g := range []gbuffer{p.diffuse, p.normal, p.material, p.accum} {
		tex, _ := p.ctx.Resources.Textures.Get(g.tex)
		enc.UseTexture(g.tex, tex, track.TextureUsesRenderAttachment)
	}
	depthTex, _ := p.ctx.Resources.Textures.Get(p.depth)
	enc.UseTexture(p.depth, depthTex, track.TextureUsesDepthStencilRead)

	timer.begin(enc)
	rp := enc.BeginRenderPass(&rhi.RenderPassDescriptor{
		Label: "GPass",
		ColorAttachments: []rhi.ColorAttachment{
			{View: p.diffuse.view, LoadClear: true},
			{View: p.normal.view, LoadClear: true},
			{View: p.material.view, LoadClear: true},
			{View: p.accum.view, LoadClear: true},
		},
		DepthStencilAttachment: &rhi.DepthStencilAttachment{View: p.depthView},
	})
	rp.SetPipeline(mustPipeline(p.ctx, p.pipeline))
	rp.SetViewport(0, 0, float32(p.extent.Width), float32(p.extent.Height), 0, 1)

	globalsArg, _ := p.ctx.Resources.ShaderArguments.Get(globals)
	rp.SetShaderArgument(0, globalsArg)

	for _, item := range scene.Opaque() {
		matArg, matOk := p.ctx.Resources.ShaderArguments.Get(item.Material)
		xformArg, xformOk := p.ctx.Resources.ShaderArguments.Get(item.Transform)
		if !matOk || !xformOk {
			continue
		}
		rp.SetShaderArgument(1, matArg)
		rp.SetShaderArgument(2, xformArg)
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

// Resize recreates all four G-buffer targets at the new extent; depth is
// supplied externally by the Z-prepass and passed in as depth.
func (p *GPass) Resize(extent Extent, depth handle.TextureHandle) error {
	for _, g := range []handle.TextureHandle{p.diffuse.tex, p.normal.tex, p.material.tex, p.accum.tex} {
		p.ctx.DestroyTexture(g)
	}
	if err := p.createTargets(extent); err != nil {
		return err
	}
	depthView, err := p.ctx.CreateTextureView(depth, &rhi.TextureViewDescriptor{Label: "GPass Depth Read", Usage: types.TextureUsageSampled})
	if err != nil {
		return fmt.Errorf("framegraph: gpass: resize depth view: %w", err)
	}
	p.extent = extent
	p.depth = depth
	p.depthView = depthView
	return nil
}
