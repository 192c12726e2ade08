package framegraph

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim/track"
	"github.com/gogpu/fotia/rhi/types"
)

const dirLightFragmentShader = `
struct LightData {
	strength: vec3<f32>,
	direction: vec3<f32>,
	ambient: vec4<f32>,
}
@group(1) @binding(0) var<uniform> light: LightData;
@group(2) @binding(0) var csm_tex: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
	let dims = textureDimensions(csm_tex);
	let coord = vec2<i32>(pos.xy) % vec2<i32>(dims);
	let shadow_depth = textureLoad(csm_tex, coord, 0).r;
	let shadow = select(1.0, 0.4, shadow_depth < 0.999);
	let lit = max(dot(-light.direction, vec3<f32>(0.0, 1.0, 0.0)), 0.0);
	return vec4<f32>(light.strength * lit * shadow + light.ambient.rgb, 1.0);
}
`

// GpuDirectionalLight mirrors the per-frame light uniform the pass
// uploads: strength, direction, and a flat ambient term. Each field is
// vec3-aligned to 16 bytes to match the WGSL struct's layout, for a
// total stride of 48 bytes per frame-in-flight slot.
type GpuDirectionalLight struct {
	Strength  [3]float32
	_pad      float32
	Direction [3]float32
	_pad2     float32
	Ambient   [4]float32
}

// lightDataStride is sizeof(GpuDirectionalLight) in the uniform buffer's
// layout; the light-data buffer is framesInFlight*lightDataStride bytes.
const lightDataStride = 48

// DirectionalLightPass shades the accumulation target from the G-buffer
// SRVs and the CSM atlas SRV, writing into the same accum target the
// gamma-correction pass later reads.
type DirectionalLightPass struct {
	ctx    *context.Context
	extent Extent

	diffuseSRV, normalSRV, materialSRV, accumView rhi.TextureView
	accumTex                                      handle.TextureHandle

	lightData handle.BufferHandle
	argument  handle.ShaderArgumentHandle

	layout   handle.PipelineLayoutHandle
	pipeline handle.RasterPipelineHandle
}

// NewDirectionalLightPass wires the pass to the G-pass's SRVs and
// accumulation target. framesInFlight sizes the light-data uniform
// range the driver indexes by frame_idx, matching the single-GPU CSM
// path's frame-indexed convention.
func NewDirectionalLightPass(ctx *context.Context, extent Extent, diffuseSRV, normalSRV, materialSRV rhi.TextureView, accumTex handle.TextureHandle, accumView rhi.TextureView, framesInFlight int) (*DirectionalLightPass, error) {
	p := &DirectionalLightPass{
		ctx: ctx, extent: extent,
		diffuseSRV: diffuseSRV, normalSRV: normalSRV, materialSRV: materialSRV,
		accumTex: accumTex, accumView: accumView,
	}

	lightData, err := ctx.CreateBuffer(&rhi.BufferDescriptor{
		Label:    "Light Data Buffer",
		Size:     uint64(framesInFlight) * lightDataStride,
		Usage:    types.BufferUsageUniform | types.BufferUsageCopyDst,
		Location: types.MemoryLocationCpuToGpu,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: dirlight: %w", err)
	}
	p.lightData = lightData

	defaultLight := GpuDirectionalLight{
		Strength:  [3]float32{1.0, 0.81, 0.16},
		Direction: [3]float32{-1.0, -1.0, -1.0},
		Ambient:   [4]float32{0.3, 0.3, 0.63, 1.0},
	}
	for frame := 0; frame < framesInFlight; frame++ {
		if err := p.UploadLight(frame, defaultLight); err != nil {
			return nil, fmt.Errorf("framegraph: dirlight: initial light upload: %w", err)
		}
	}

	argument, err := ctx.CreateShaderArgument(&rhi.ShaderArgumentDescriptor{Entries: []rhi.ShaderArgumentEntry{{Binding: 0, Buffer: mustBuffer(ctx, lightData)}}})
	if err != nil {
		return nil, fmt.Errorf("framegraph: dirlight: argument: %w", err)
	}
	p.argument = argument

	vs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "fullscreen.vs", Source: fullscreenTriangleVertexShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: dirlight: %w", err)
	}
	fs, err := ctx.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "dirlight.fs", Source: dirLightFragmentShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: dirlight: %w", err)
	}
	layoutHandle, layout, err := ctx.CreatePipelineLayout(&rhi.PipelineLayoutDescriptor{Label: "dirlight.layout", ArgumentSlots: 3})
	if err != nil {
		return nil, fmt.Errorf("framegraph: dirlight: %w", err)
	}
	p.layout = layoutHandle

	p.pipeline, err = ctx.CreateRasterPipeline(&rhi.RasterPipelineDescriptor{
		Label:          "dirlight.pipeline",
		Layout:         layout,
		VertexShader:   vs,
		FragmentShader: fs,
		ColorFormats:   []types.TextureFormat{types.FormatRGBA32Float},
		CullMode:       rhi.CullNone,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: dirlight: create pipeline: %w", err)
	}
	return p, nil
}

// UploadLight writes light into the frameIdx slot of the light-data
// uniform range, ahead of calling Render for that frame.
func (p *DirectionalLightPass) UploadLight(frameIdx int, light GpuDirectionalLight) error {
	buf := mustBuffer(p.ctx, p.lightData)
	var raw [lightDataStride]byte
	binary.LittleEndian.PutUint32(raw[0:4], floatBits(light.Strength[0]))
	binary.LittleEndian.PutUint32(raw[4:8], floatBits(light.Strength[1]))
	binary.LittleEndian.PutUint32(raw[8:12], floatBits(light.Strength[2]))
	binary.LittleEndian.PutUint32(raw[16:20], floatBits(light.Direction[0]))
	binary.LittleEndian.PutUint32(raw[20:24], floatBits(light.Direction[1]))
	binary.LittleEndian.PutUint32(raw[24:28], floatBits(light.Direction[2]))
	for i, v := range light.Ambient {
		binary.LittleEndian.PutUint32(raw[32+i*4:36+i*4], floatBits(v))
	}
	return p.ctx.Graphics.RawQueue().WriteBuffer(buf, uint64(frameIdx)*lightDataStride, raw[:])
}

// Render shades the accumulation target, sampling the CSM SRV through
// csmArg (whichever cascade argument the caller resolved this frame —
// frame_idx-indexed on the single-GPU path, ring-delivered on the
// multi-GPU path) and fences csmTex back to Common at the end, per the
// driver notes: this is only safe because the ring guarantees at least
// one intervening submit before the next write. Both csmTex and csmArg
// are always resolved against this pass's own context: the multi-GPU
// path registers its opened shared textures and their SRV arguments
// into the primary context exactly like the single-GPU path does its
// local atlas, so the directional light pass never needs to reach into
// a foreign resource table.
func (p *DirectionalLightPass) Render(globals handle.ShaderArgumentHandle, csmTex handle.TextureHandle, csmArg handle.ShaderArgumentHandle) (time.Duration, error) {
	raw, sp, err := p.ctx.Graphics.Acquire("Directional Light Pass")
	if err != nil {
		return 0, fmt.Errorf("framegraph: dirlight: acquire: %w", err)
	}
	enc := encoder.New(raw, p.ctx.Tracking)
	timer := newPassTimer("Directional Light Pass")

	accumTex, _ := p.ctx.Resources.Textures.Get(p.accumTex)
	enc.UseTexture(p.accumTex, accumTex, track.TextureUsesRenderAttachment)
	csmRawTex, csmTexOk := p.ctx.Resources.Textures.Get(csmTex)
	if csmTexOk {
		enc.UseTexture(csmTex, csmRawTex, track.TextureUsesSampled)
	}

	timer.begin(enc)
	rp := enc.BeginRenderPass(&rhi.RenderPassDescriptor{
		Label:            "Directional Light Pass",
		ColorAttachments: []rhi.ColorAttachment{{View: p.accumView, LoadClear: true}},
	})
	rp.SetPipeline(mustPipeline(p.ctx, p.pipeline))
	rp.SetViewport(0, 0, float32(p.extent.Width), float32(p.extent.Height), 0, 1)
	rp.SetScissorRect(0, 0, p.extent.Width, p.extent.Height)

	globalsArg, _ := p.ctx.Resources.ShaderArguments.Get(globals)
	rp.SetShaderArgument(0, globalsArg)
	lightArg, _ := p.ctx.Resources.ShaderArguments.Get(p.argument)
	rp.SetShaderArgument(1, lightArg)
	if csmShaderArg, ok := p.ctx.Resources.ShaderArguments.Get(csmArg); ok {
		rp.SetShaderArgument(2, csmShaderArg)
	}

	rp.Draw(3, 1, 0, 0)
	rp.End()
	timer.finish(enc)

	if csmTexOk {
		enc.UseTexture(csmTex, csmRawTex, track.TextureUsesNone)
		enc.FlushBarriers()
	}

	if err := p.ctx.Graphics.Submit(raw, sp); err != nil {
		return 0, err
	}
	entry, ok := timer.resolve(p.ctx.Graphics)
	if !ok {
		return 0, nil
	}
	return entry.Duration, nil
}

// Resize records the new extent; the pass's render targets are owned by
// the G-pass and don't need recreating here.
func (p *DirectionalLightPass) Resize(extent Extent) { p.extent = extent }

func floatBits(v float32) uint32 { return math.Float32bits(v) }

func mustBuffer(ctx *context.Context, h handle.BufferHandle) rhi.Buffer {
	b, ok := ctx.Resources.Buffers.Get(h)
	if !ok {
		panic("framegraph: buffer handle is stale")
	}
	return b
}
