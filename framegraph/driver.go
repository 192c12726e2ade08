package framegraph

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/csm"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/telemetry"
)

// Driver runs the single-GPU pass order: Z-prepass, CSM, G-pass,
// directional light, gamma correction. Every pass resizes together
// through Driver.Resize.
type Driver struct {
	ctx    *context.Context
	extent Extent

	zpass    *ZPass
	csm      *CSMPass
	gpass    *GPass
	dirLight *DirectionalLightPass
	gamma    *GammaCorrectionPass

	framesInFlight int
	lambda         float32
	cascadeSize    uint32

	// cascadeArgs[frame_idx*4 + cascade] is the per-cascade proj_view
	// shader argument the single-GPU path indexes by frame_idx, per the
	// source's deliberately-unmerged single/multi indexing convention.
	cascadeArgs []handle.ShaderArgumentHandle
}

// New builds the fixed pass DAG over one context.
func New(ctx *context.Context, extent Extent, cascadeSize uint32, lambda float32, framesInFlight int) (*Driver, error) {
	d := &Driver{ctx: ctx, extent: extent, framesInFlight: framesInFlight, lambda: lambda, cascadeSize: cascadeSize}

	var err error
	if d.zpass, err = NewZPass(ctx, extent); err != nil {
		return nil, err
	}
	if d.csm, err = NewCSMPass(ctx, cascadeSize, lambda); err != nil {
		return nil, err
	}
	if d.gpass, err = NewGPass(ctx, extent, d.zpass.Depth()); err != nil {
		return nil, err
	}
	if d.dirLight, err = NewDirectionalLightPass(ctx, extent, d.gpass.DiffuseSRV(), d.gpass.NormalSRV(), d.gpass.MaterialSRV(), d.gpass.AccumTexture(), d.gpass.accum.view, framesInFlight); err != nil {
		return nil, err
	}
	if d.gamma, err = NewGammaCorrectionPass(ctx, extent, d.gpass.AccumSRV()); err != nil {
		return nil, err
	}
	return d, nil
}

// BindCascadeArgument registers the shader argument the CSM pass binds
// for (frameIdx, cascade). The caller creates and fills
// framesInFlight*4 proj_view uniform slices (matching the original
// layout) and registers each one here once, at startup.
func (d *Driver) BindCascadeArgument(frameIdx, cascade int, arg handle.ShaderArgumentHandle) {
	if d.cascadeArgs == nil {
		d.cascadeArgs = make([]handle.ShaderArgumentHandle, d.framesInFlight*csm.CascadeCount)
	}
	d.cascadeArgs[frameIdx*csm.CascadeCount+cascade] = arg
}

// Update recomputes this frame's cascade splits/projections.
func (d *Driver) Update(camera csm.Camera, lightDir mgl32.Vec3) csm.Cascades {
	return d.csm.Update(camera, lightDir)
}

// RenderFrame runs the fixed pass order for one frame: Z-prepass, CSM
// (frame_idx-indexed uniform), G-pass, directional light (sampling the
// CSM slice this same frame just wrote), gamma correction into
// swapchainView. The returned Timings breaks down each pass's resolved
// GPU duration plus their sum, fed by the command encoder's resolved
// timestamp ranges rather than wall-clock CPU time.
func (d *Driver) RenderFrame(globals handle.ShaderArgumentHandle, swapchainView rhi.TextureView, frameIdx int, scene Scene) (telemetry.Timings, error) {
	var timings telemetry.Timings

	zDuration, err := d.zpass.Render(globals, scene)
	if err != nil {
		return telemetry.Timings{}, fmt.Errorf("framegraph: driver: zpass: %w", err)
	}
	timings.Entries = append(timings.Entries, telemetry.TimingEntry{Name: "Z Prepass", Duration: zDuration})

	perCascade := func(cascade int) handle.ShaderArgumentHandle {
		return d.cascadeArgs[frameIdx*csm.CascadeCount+cascade]
	}
	csmDuration, err := d.csm.Render(perCascade, scene)
	if err != nil {
		return telemetry.Timings{}, fmt.Errorf("framegraph: driver: csm: %w", err)
	}
	timings.Entries = append(timings.Entries, telemetry.TimingEntry{Name: "Cascaded Shadow Maps", Duration: csmDuration})

	gpassDuration, err := d.gpass.Render(globals, scene)
	if err != nil {
		return telemetry.Timings{}, fmt.Errorf("framegraph: driver: gpass: %w", err)
	}
	timings.Entries = append(timings.Entries, telemetry.TimingEntry{Name: "GPass", Duration: gpassDuration})

	dirLightDuration, err := d.dirLight.Render(globals, d.csm.Texture(), d.csm.SRVArgument())
	if err != nil {
		return telemetry.Timings{}, fmt.Errorf("framegraph: driver: dirlight: %w", err)
	}
	timings.Entries = append(timings.Entries, telemetry.TimingEntry{Name: "Directional Light Pass", Duration: dirLightDuration})

	gammaDuration, err := d.gamma.Render(swapchainView)
	if err != nil {
		return telemetry.Timings{}, fmt.Errorf("framegraph: driver: gamma: %w", err)
	}
	timings.Entries = append(timings.Entries, telemetry.TimingEntry{Name: "Gamma Correction Pass", Duration: gammaDuration})

	for _, e := range timings.Entries {
		timings.Total += e.Duration
	}
	return timings, nil
}

// Resize propagates a new extent through every pass in dependency order.
func (d *Driver) Resize(extent Extent) error {
	if err := d.zpass.Resize(extent); err != nil {
		return fmt.Errorf("framegraph: driver: resize zpass: %w", err)
	}
	if err := d.gpass.Resize(extent, d.zpass.Depth()); err != nil {
		return fmt.Errorf("framegraph: driver: resize gpass: %w", err)
	}
	d.dirLight.Resize(extent)
	if err := d.gamma.Resize(extent, d.gpass.AccumSRV()); err != nil {
		return fmt.Errorf("framegraph: driver: resize gamma: %w", err)
	}
	d.extent = extent
	return nil
}
