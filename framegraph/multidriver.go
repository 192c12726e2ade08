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

// MultiDriver runs the multi-GPU pass order: the CSM ring advances on
// the secondary adapter while the primary adapter runs Z-prepass,
// G-pass, directional light (sampling whatever slot the ring most
// recently delivered), and gamma correction. Unlike Driver, the CSM
// pass is never "this frame's" render in the single-GPU sense — Advance
// may return a slot delivered one or more frames ago if the ring hasn't
// caught up, per the producer/copier/consumer protocol.
type MultiDriver struct {
	dual   *context.DualContext
	extent Extent

	zpass    *ZPass
	csm      *MultiCSMPass
	gpass    *GPass
	dirLight *DirectionalLightPass
	gamma    *GammaCorrectionPass
}

// NewMultiDriver builds the fixed pass DAG across the dual context: the
// CSM ring on dual.Secondary, everything else on dual.Primary.
func NewMultiDriver(dual *context.DualContext, extent Extent, cascadeSize uint32, lambda float32, framesInFlight int) (*MultiDriver, error) {
	d := &MultiDriver{dual: dual, extent: extent}

	var err error
	if d.zpass, err = NewZPass(dual.Primary, extent); err != nil {
		return nil, err
	}
	if d.csm, err = NewMultiCSMPass(dual, cascadeSize, lambda, framesInFlight); err != nil {
		return nil, err
	}
	if d.gpass, err = NewGPass(dual.Primary, extent, d.zpass.Depth()); err != nil {
		return nil, err
	}
	if d.dirLight, err = NewDirectionalLightPass(dual.Primary, extent, d.gpass.DiffuseSRV(), d.gpass.NormalSRV(), d.gpass.MaterialSRV(), d.gpass.AccumTexture(), d.gpass.accum.view, framesInFlight); err != nil {
		return nil, err
	}
	if d.gamma, err = NewGammaCorrectionPass(dual.Primary, extent, d.gpass.AccumSRV()); err != nil {
		return nil, err
	}
	return d, nil
}

// RenderFrame advances the CSM ring one step and runs the primary
// adapter's fixed pass order, sampling whichever cascade slot the ring
// delivers this frame — the most recent fully-copied one, or the
// previous frame's if the copy hasn't landed yet. It returns two
// Timings: primary covers the passes this call ran on dual.Primary
// (zpass, gpass, dirlight, gamma), and secondary covers the most
// recently resolved cascade-write pass on dual.Secondary, which may
// have been produced on an earlier frame if the ring hasn't advanced
// its producer step this call.
func (d *MultiDriver) RenderFrame(globals handle.ShaderArgumentHandle, swapchainView rhi.TextureView, camera csm.Camera, lightDir mgl32.Vec3, scene Scene) (primary telemetry.Timings, secondary telemetry.Timings, err error) {
	zDuration, err := d.zpass.Render(globals, scene)
	if err != nil {
		return telemetry.Timings{}, telemetry.Timings{}, fmt.Errorf("framegraph: multidriver: zpass: %w", err)
	}
	primary.Entries = append(primary.Entries, telemetry.TimingEntry{Name: "Z Prepass", Duration: zDuration})

	sampled, err := d.csm.Advance(camera, lightDir, scene)
	if err != nil {
		return telemetry.Timings{}, telemetry.Timings{}, fmt.Errorf("framegraph: multidriver: csm ring: %w", err)
	}
	if writeEntry, ok := d.csm.LastWriteTiming(); ok {
		secondary.Entries = append(secondary.Entries, writeEntry)
		secondary.Total += writeEntry.Duration
	}

	gpassDuration, err := d.gpass.Render(globals, scene)
	if err != nil {
		return telemetry.Timings{}, telemetry.Timings{}, fmt.Errorf("framegraph: multidriver: gpass: %w", err)
	}
	primary.Entries = append(primary.Entries, telemetry.TimingEntry{Name: "GPass", Duration: gpassDuration})

	dirLightDuration, err := d.dirLight.Render(globals, sampled.Texture, sampled.Argument)
	if err != nil {
		return telemetry.Timings{}, telemetry.Timings{}, fmt.Errorf("framegraph: multidriver: dirlight: %w", err)
	}
	primary.Entries = append(primary.Entries, telemetry.TimingEntry{Name: "Directional Light Pass", Duration: dirLightDuration})

	gammaDuration, err := d.gamma.Render(swapchainView)
	if err != nil {
		return telemetry.Timings{}, telemetry.Timings{}, fmt.Errorf("framegraph: multidriver: gamma: %w", err)
	}
	primary.Entries = append(primary.Entries, telemetry.TimingEntry{Name: "Gamma Correction Pass", Duration: gammaDuration})

	for _, e := range primary.Entries {
		primary.Total += e.Duration
	}
	return primary, secondary, nil
}

// Resize propagates a new extent through every primary-side pass; the
// CSM ring's shared-heap atlases are fixed-size and don't resize.
func (d *MultiDriver) Resize(extent Extent) error {
	if err := d.zpass.Resize(extent); err != nil {
		return fmt.Errorf("framegraph: multidriver: resize zpass: %w", err)
	}
	if err := d.gpass.Resize(extent, d.zpass.Depth()); err != nil {
		return fmt.Errorf("framegraph: multidriver: resize gpass: %w", err)
	}
	d.dirLight.Resize(extent)
	if err := d.gamma.Resize(extent, d.gpass.AccumSRV()); err != nil {
		return fmt.Errorf("framegraph: multidriver: resize gamma: %w", err)
	}
	d.extent = extent
	return nil
}
