package framegraph

import (
	"fmt"
	"time"

	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/types"
)

const gammaFragmentShader = `
@group(0) @binding(0) var accum_tex: texture_2d<f32>;
@group(0) @binding(1) var accum_sampler: sampler;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
	let color = textureLoad(accum_tex, vec2<i32>(pos.xy), 0).rgb;
	return vec4<f32>(pow(color, vec3<f32>(1.0 / 2.2)), 1.0);
}
`

// GammaCorrectionPass tonemaps the accumulation target into the
// swapchain view with a fixed 1/2.2 gamma curve, as a full-screen
// triangle.
type GammaCorrectionPass struct {
	ctx    *context.Context
	extent Extent

	sampler  handle.SamplerHandle
	argument handle.ShaderArgumentHandle

	layout   handle.PipelineLayoutHandle
	pipeline handle.RasterPipelineHandle
}

// NewGammaCorrectionPass binds accumSRV once; Resize rebinds it if the
// G-pass recreates its targets.
func NewGammaCorrectionPass(ctx *context.Context, extent Extent, accumSRV rhi.TextureView) (*GammaCorrectionPass, error) {
	p := &GammaCorrectionPass{ctx: ctx, extent: extent}

	sampler, err := ctx.CreateSampler(&rhi.SamplerDescriptor{Label: "Gamma Sampler", MinFilterLinear: true, MagFilterLinear: true})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gamma: %w", err)
	}
	p.sampler = sampler

	if err := p.bindArgument(accumSRV); err != nil {
		return nil, err
	}

	vs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "fullscreen.vs", Source: fullscreenTriangleVertexShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gamma: %w", err)
	}
	fs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "gamma.fs", Source: gammaFragmentShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gamma: %w", err)
	}
	layoutHandle, layout, err := ctx.CreatePipelineLayout(&rhi.PipelineLayoutDescriptor{Label: "gamma.layout", ArgumentSlots: 1})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gamma: %w", err)
	}
	p.layout = layoutHandle

	p.pipeline, err = ctx.CreateRasterPipeline(&rhi.RasterPipelineDescriptor{
		Label:          "gamma.pipeline",
		Layout:         layout,
		VertexShader:   vs,
		FragmentShader: fs,
		ColorFormats:   []types.TextureFormat{types.FormatRGBA8Unorm},
		CullMode:       rhi.CullNone,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: gamma: create pipeline: %w", err)
	}
	return p, nil
}

func (p *GammaCorrectionPass) bindArgument(accumSRV rhi.TextureView) error {
	sampler, _ := p.ctx.Resources.Samplers.Get(p.sampler)
	argument, err := p.ctx.CreateShaderArgument(&rhi.ShaderArgumentDescriptor{
		Entries: []rhi.ShaderArgumentEntry{
			{Binding: 0, View: accumSRV},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("framegraph: gamma: argument: %w", err)
	}
	p.argument = argument
	return nil
}

// Render draws the full-screen triangle into swapchainView.
func (p *GammaCorrectionPass) Render(swapchainView rhi.TextureView) (time.Duration, error) {
	raw, sp, err := p.ctx.Graphics.Acquire("Gamma Correction Pass")
	if err != nil {
		return 0, fmt.Errorf("framegraph: gamma: acquire: %w", err)
	}
	enc := encoder.New(raw, p.ctx.Tracking)
	timer := newPassTimer("Gamma Correction Pass")

	timer.begin(enc)
	rp := enc.BeginRenderPass(&rhi.RenderPassDescriptor{
		Label:            "Gamma Correction Pass",
		ColorAttachments: []rhi.ColorAttachment{{View: swapchainView, LoadClear: true, ClearValue: types.Color{R: 1, G: 1, B: 1, A: 1}}},
	})
	rp.SetPipeline(mustPipeline(p.ctx, p.pipeline))
	rp.SetViewport(0, 0, float32(p.extent.Width), float32(p.extent.Height), 0, 1)

	argument, _ := p.ctx.Resources.ShaderArguments.Get(p.argument)
	rp.SetShaderArgument(0, argument)
	rp.Draw(3, 1, 0, 0)
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

// Resize rebinds the accumulation SRV, which the G-pass recreated.
func (p *GammaCorrectionPass) Resize(extent Extent, accumSRV rhi.TextureView) error {
	p.extent = extent
	return p.bindArgument(accumSRV)
}
