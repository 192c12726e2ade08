package framegraph

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/csm"
	"github.com/gogpu/fotia/encoder"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/queue"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim/track"
	"github.com/gogpu/fotia/rhi/types"
	"github.com/gogpu/fotia/telemetry"
)

// MultiCSMPass renders the cascade atlas on a secondary adapter and
// streams it to the primary through a csm.Ring of shared-heap textures,
// grounded on the source's MultiCascadedShadowMapsPass. Both adapters
// must report SupportsSharedHeaps: the ring's copy step is a fence wait
// behind an already-shared allocation, not a byte copy, since
// OpenSharedTexture only aliases CrossAdapter-flavor textures. A pair
// where the secondary falls back to Bound-flavor sharing cannot drive
// this pass: it has no staging-copy path for Bound-flavor textures.
type MultiCSMPass struct {
	dual   *context.DualContext
	size   uint32
	lambda float32

	ring      *csm.Ring
	slotCount int

	// secondaryTex/secondaryDSV are the per-slot atlas the secondary
	// writes into; primaryTex/primaryArg (mirrored into ring) are the
	// primary's opened view of the same bytes.
	secondaryTex []handle.TextureHandle
	secondaryDSV []rhi.TextureView
	primaryTex   []handle.TextureHandle

	// cascadeArgs[slot*4+cascade] is the secondary-side per-cascade
	// proj_view argument, the ring-indexed analogue of the single-GPU
	// driver's frame_idx-indexed cascadeArgs.
	cascadeBufs []handle.BufferHandle
	cascadeArgs []handle.ShaderArgumentHandle

	layout   handle.PipelineLayoutHandle
	pipeline handle.RasterPipelineHandle

	// lastWrite is the most recently resolved secondary-side write
	// pass's GPU duration. The ring's producer step doesn't run every
	// Advance call, so this holds the prior value on frames where it
	// skips; lastWriteOk is false until write has run at least once.
	lastWrite   telemetry.TimingEntry
	lastWriteOk bool
}

// LastWriteTiming returns the most recently resolved secondary-side
// cascade-write pass duration, and whether write has run at least once.
func (p *MultiCSMPass) LastWriteTiming() (telemetry.TimingEntry, bool) {
	return p.lastWrite, p.lastWriteOk
}

// NewMultiCSMPass builds the shared-heap ring and the secondary-side
// depth-only pipeline. framesInFlight is clamped to at most 3 ring
// slots, per the configuration surface.
func NewMultiCSMPass(dual *context.DualContext, size uint32, lambda float32, framesInFlight int) (*MultiCSMPass, error) {
	slotCount := framesInFlight
	if slotCount > 3 {
		slotCount = 3
	}
	if slotCount < 1 {
		slotCount = 1
	}

	p := &MultiCSMPass{dual: dual, size: size, lambda: lambda, slotCount: slotCount}

	for i := 0; i < slotCount; i++ {
		secTex, err := dual.Secondary.CreateTexture(&rhi.TextureDescriptor{
			Label:  fmt.Sprintf("Shared Cascaded Shadow Maps %d", i),
			Type:   types.TextureType2D,
			Format: types.FormatD32Float,
			Size:   types.Extent3D{Width: 2 * size, Height: 2 * size, DepthOrArrayLayers: 1},
			Usage:  types.TextureUsageDepthStencilAttachment | types.TextureUsageSampled | types.TextureUsageShared,
		})
		if err != nil {
			return nil, fmt.Errorf("framegraph: multicsm: secondary texture %d: %w", i, err)
		}
		p.secondaryTex = append(p.secondaryTex, secTex)

		dsv, err := dual.Secondary.CreateTextureView(secTex, &rhi.TextureViewDescriptor{Label: "Shared CSM DSV", Usage: types.TextureUsageDepthStencilAttachment})
		if err != nil {
			return nil, fmt.Errorf("framegraph: multicsm: secondary dsv %d: %w", i, err)
		}
		p.secondaryDSV = append(p.secondaryDSV, dsv)

		secRaw, ok := dual.Secondary.Resources.Textures.Get(secTex)
		if !ok {
			return nil, fmt.Errorf("framegraph: multicsm: secondary texture %d not registered", i)
		}
		priRaw, err := dual.Primary.Device.OpenSharedTexture(secRaw)
		if err != nil {
			return nil, fmt.Errorf("framegraph: multicsm: open shared texture %d (does this adapter pair support shared heaps?): %w", i, err)
		}
		priTex := dual.Primary.Resources.Textures.Insert(priRaw)
		p.primaryTex = append(p.primaryTex, priTex)

		for c := 0; c < csm.CascadeCount; c++ {
			buf, err := dual.Secondary.CreateBuffer(&rhi.BufferDescriptor{
				Label:    fmt.Sprintf("CSM Proj View %d/%d", i, c),
				Size:     64,
				Usage:    types.BufferUsageUniform | types.BufferUsageCopyDst,
				Location: types.MemoryLocationCpuToGpu,
			})
			if err != nil {
				return nil, fmt.Errorf("framegraph: multicsm: cascade buffer %d/%d: %w", i, c, err)
			}
			p.cascadeBufs = append(p.cascadeBufs, buf)

			arg, err := dual.Secondary.CreateShaderArgument(&rhi.ShaderArgumentDescriptor{
				Entries: []rhi.ShaderArgumentEntry{{Binding: 0, Buffer: mustBuffer(dual.Secondary, buf)}},
			})
			if err != nil {
				return nil, fmt.Errorf("framegraph: multicsm: cascade argument %d/%d: %w", i, c, err)
			}
			p.cascadeArgs = append(p.cascadeArgs, arg)
		}
	}

	primaryArgs := make([]handle.ShaderArgumentHandle, slotCount)
	for i, tex := range p.primaryTex {
		srv, err := dual.Primary.CreateTextureView(tex, &rhi.TextureViewDescriptor{Label: "Shared CSM SRV", Usage: types.TextureUsageSampled})
		if err != nil {
			return nil, fmt.Errorf("framegraph: multicsm: primary srv %d: %w", i, err)
		}
		arg, err := dual.Primary.CreateShaderArgument(&rhi.ShaderArgumentDescriptor{
			Entries: []rhi.ShaderArgumentEntry{{Binding: 0, View: srv}},
		})
		if err != nil {
			return nil, fmt.Errorf("framegraph: multicsm: primary argument %d: %w", i, err)
		}
		primaryArgs[i] = arg
	}

	ring, err := csm.NewRing(p.primaryTex, primaryArgs)
	if err != nil {
		return nil, fmt.Errorf("framegraph: multicsm: %w", err)
	}
	p.ring = ring

	vs, err := dual.Secondary.CreateShaderModule(&rhi.ShaderModuleDescriptor{Label: "m_csm.vs", Source: csmVertexShader})
	if err != nil {
		return nil, fmt.Errorf("framegraph: multicsm: %w", err)
	}
	layoutHandle, layout, err := dual.Secondary.CreatePipelineLayout(&rhi.PipelineLayoutDescriptor{Label: "m_csm.layout", ArgumentSlots: 2})
	if err != nil {
		return nil, fmt.Errorf("framegraph: multicsm: %w", err)
	}
	p.layout = layoutHandle
	p.pipeline, err = dual.Secondary.CreateRasterPipeline(&rhi.RasterPipelineDescriptor{
		Label:        "m_csm.pipeline",
		Layout:       layout,
		VertexShader: vs,
		DepthFormat:  types.FormatD32Float,
		DepthWrite:   true,
		DepthCompare: rhi.CompareLess,
		CullMode:     rhi.CullNone,
	})
	if err != nil {
		return nil, fmt.Errorf("framegraph: multicsm: create pipeline: %w", err)
	}
	return p, nil
}

func (p *MultiCSMPass) indexOf(tex handle.TextureHandle) int {
	for i, t := range p.primaryTex {
		if t == tex {
			return i
		}
	}
	return -1
}

func uploadMat4(ctx *context.Context, buf handle.BufferHandle, m mgl32.Mat4) error {
	var raw [64]byte
	for i, v := range m {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(v))
	}
	return ctx.Graphics.RawQueue().WriteBuffer(mustBuffer(ctx, buf), 0, raw[:])
}

// write records and submits one ring slot's full 4-cascade depth-only
// pass on the secondary graphics queue, returning its sync point. The
// working slot is resolved by comparing the ring's currently-reported
// working texture (stable across a slot's lifetime) against
// p.primaryTex, recovering the parallel secondary-side index.
func (p *MultiCSMPass) write(cascades csm.Cascades, scene Scene) (uint64, error) {
	i := p.indexOf(p.ring.Working().Texture)
	if i < 0 {
		return 0, fmt.Errorf("framegraph: multicsm: working slot not found")
	}

	for c := 0; c < csm.CascadeCount; c++ {
		if err := uploadMat4(p.dual.Secondary, p.cascadeBufs[i*csm.CascadeCount+c], cascades.ProjViews[c]); err != nil {
			return 0, fmt.Errorf("framegraph: multicsm: upload cascade %d: %w", c, err)
		}
	}

	raw, sp, err := p.dual.Secondary.Graphics.Acquire("Cascaded Shadow Maps")
	if err != nil {
		return 0, fmt.Errorf("framegraph: multicsm: acquire: %w", err)
	}
	enc := encoder.New(raw, p.dual.Secondary.Tracking)
	timer := newPassTimer("Cascaded Shadow Maps (secondary)")

	tex, _ := p.dual.Secondary.Resources.Textures.Get(p.secondaryTex[i])
	enc.UseTexture(p.secondaryTex[i], tex, track.TextureUsesDepthStencilWrite)

	timer.begin(enc)
	rp := enc.BeginRenderPass(&rhi.RenderPassDescriptor{
		Label: "Cascaded Shadow Maps",
		DepthStencilAttachment: &rhi.DepthStencilAttachment{
			View: p.secondaryDSV[i], LoadClear: true, DepthClearValue: 1.0,
		},
	})
	rp.SetPipeline(mustPipeline(p.dual.Secondary, p.pipeline))
	rp.SetScissorRect(0, 0, 2*p.size, 2*p.size)

	for c := 0; c < csm.CascadeCount; c++ {
		row, col := uint32(c/2), uint32(c%2)
		rp.SetViewport(float32(p.size*col), float32(p.size*row), float32(p.size), float32(p.size), 0, 1)

		cascadeArg, _ := p.dual.Secondary.Resources.ShaderArguments.Get(p.cascadeArgs[i*csm.CascadeCount+c])
		rp.SetShaderArgument(0, cascadeArg)

		for _, item := range scene.Opaque() {
			xformArg, ok := p.dual.Secondary.Resources.ShaderArguments.Get(item.Transform)
			if !ok {
				continue
			}
			rp.SetShaderArgument(1, xformArg)
			vb, _ := p.dual.Secondary.Resources.Buffers.Get(item.VertexBuf)
			ib, _ := p.dual.Secondary.Resources.Buffers.Get(item.IndexBuf)
			rp.SetVertexBuffer(0, vb, 0)
			rp.SetIndexBuffer(ib, item.IndexFmt, 0)
			rp.DrawIndexed(item.IndexCount, 1, int32(item.StartIndex), uint32(item.BaseVertex))
		}
	}
	rp.End()
	timer.finish(enc)

	if err := p.dual.Secondary.Graphics.Submit(raw, sp); err != nil {
		return 0, err
	}
	if entry, ok := timer.resolve(p.dual.Secondary.Graphics); ok {
		p.lastWrite, p.lastWriteOk = entry, true
	}
	return sp, nil
}

// pull gates the primary's read behind the secondary's write, on the
// primary transfer queue. No bytes move: CrossAdapter-flavor storage
// already aliases the secondary's bytes, so this step is purely the
// synchronization half of the source's push_texture/pull_texture pair.
func (p *MultiCSMPass) pull() (uint64, error) {
	i := p.indexOf(p.ring.Copy().Texture)
	if i < 0 {
		return 0, fmt.Errorf("framegraph: multicsm: copy slot not found")
	}

	raw, sp, err := p.dual.Primary.Transfer.Acquire("CSM Cross-Adapter Pull")
	if err != nil {
		return 0, fmt.Errorf("framegraph: multicsm: transfer acquire: %w", err)
	}
	enc := encoder.New(raw, p.dual.Primary.Tracking)
	tex, _ := p.dual.Primary.Resources.Textures.Get(p.primaryTex[i])
	enc.UseTexture(p.primaryTex[i], tex, track.TextureUsesSampled)
	enc.FlushBarriers()

	if err := p.dual.Primary.Transfer.Submit(raw, sp); err != nil {
		return 0, err
	}
	return sp, nil
}

// queueChecker adapts *queue.Queue to csm.CompletionChecker.
type queueChecker struct{ q *queue.Queue }

func (c queueChecker) IsComplete(syncPoint uint64) bool { return c.q.CompletedSyncPoint() >= syncPoint }

// Advance recomputes this frame's cascades and runs one step of the
// ring's producer/copier/consumer protocol, returning the slot the
// directional light pass should sample. In the simulated backend every
// queue completes its work synchronously inside Submit, so both
// idle flags are always true; a real backend would track in-flight
// submissions per queue instead.
func (p *MultiCSMPass) Advance(camera csm.Camera, lightDir mgl32.Vec3, scene Scene) (csm.Slot, error) {
	cascades := csm.Update(camera, lightDir, p.lambda)
	return p.ring.Advance(
		true, queueChecker{p.dual.Secondary.Graphics},
		true, queueChecker{p.dual.Primary.Transfer},
		func() (uint64, error) { return p.write(cascades, scene) },
		p.pull,
	)
}
