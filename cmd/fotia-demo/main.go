// Command fotia-demo exercises the renderer core end to end against
// the simulated backend: it loads settings, opens a primary/secondary
// adapter pair as a dual context, builds the fixed pass DAG, and
// runs a handful of frames against an empty scene, optionally emitting
// per-frame telemetry. It has no window-system dependency — the
// window/input loop is an external collaborator per the core's scope.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/fotia/config"
	"github.com/gogpu/fotia/context"
	"github.com/gogpu/fotia/csm"
	"github.com/gogpu/fotia/framegraph"
	"github.com/gogpu/fotia/handle"
	"github.com/gogpu/fotia/internal/logging"
	"github.com/gogpu/fotia/rhi"
	"github.com/gogpu/fotia/rhi/sim"
	"github.com/gogpu/fotia/rhi/types"
	"github.com/gogpu/fotia/telemetry"
)

const demoFrames = 16

func main() {
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	settings, err := config.Load("config.toml")
	if err != nil {
		fatal("load settings", err)
	}

	var emitter *telemetry.Emitter
	if settings.BenchAddr != "" {
		emitter, err = telemetry.Dial(settings.BenchAddr)
		if err != nil {
			fatal("dial telemetry collector", err)
		}
		defer emitter.Close()
	}

	if err := runMultiGPU(settings, emitter); err != nil {
		fatal("run", err)
	}
}

func runMultiGPU(settings config.RenderSettings, emitter *telemetry.Emitter) error {
	primaryAdapter, secondaryAdapter := sim.NewAdapterPair("primary", "secondary")
	primary, err := context.Open(primaryAdapter)
	if err != nil {
		return fmt.Errorf("open primary context: %w", err)
	}
	secondary, err := context.Open(secondaryAdapter)
	if err != nil {
		return fmt.Errorf("open secondary context: %w", err)
	}
	dual := context.NewDual(primary, secondary)
	defer dual.Close()

	extent := framegraph.Extent{Width: settings.Width, Height: settings.Height}
	driver, err := framegraph.NewMultiDriver(dual, extent, settings.CascadeSize, 0.5, settings.FramesInFlight)
	if err != nil {
		return fmt.Errorf("build multi-gpu driver: %w", err)
	}

	globals, err := buildGlobalsArgument(primary)
	if err != nil {
		return fmt.Errorf("build globals: %w", err)
	}
	swapchainView, err := buildOffscreenTarget(primary, extent)
	if err != nil {
		return fmt.Errorf("build offscreen target: %w", err)
	}

	camera := csm.Camera{View: mgl32.Ident4(), Fov: 1.0, Aspect: float32(extent.Width) / float32(extent.Height), Near: 0.1, Far: settings.CameraFar}
	lightDir := mgl32.Vec3{-1, -1, -1}.Normalize()

	for frame := 0; frame < demoFrames; frame++ {
		start := time.Now()
		primaryTimings, secondaryTimings, err := driver.RenderFrame(globals, swapchainView, camera, lightDir, framegraph.SliceScene(nil))
		if err != nil {
			return fmt.Errorf("render frame %d: %w", frame, err)
		}
		elapsed := time.Since(start)
		logging.Logger().Info("rendered frame", slog.Int("frame", frame), slog.Duration("elapsed", elapsed), slog.Duration("primary_gpu_total", primaryTimings.Total), slog.Duration("secondary_gpu_total", secondaryTimings.Total))

		if emitter != nil {
			if err := emitter.Emit(telemetry.Sample{Kind: telemetry.KindPrimaryMultiGpu, PrimaryMultiGpu: primaryTimings}); err != nil {
				return fmt.Errorf("emit telemetry: %w", err)
			}
			if err := emitter.Emit(telemetry.Sample{Kind: telemetry.KindSecondaryMultiGpu, SecondaryMultiGpu: secondaryTimings}); err != nil {
				return fmt.Errorf("emit telemetry: %w", err)
			}
			if err := emitter.Emit(telemetry.Sample{Kind: telemetry.KindMultiCpuTotal, MultiCpuTotal: elapsed}); err != nil {
				return fmt.Errorf("emit telemetry: %w", err)
			}
		}
	}
	return nil
}

func buildGlobalsArgument(ctx *context.Context) (handle.ShaderArgumentHandle, error) {
	buf, err := ctx.CreateBuffer(&rhi.BufferDescriptor{
		Label:    "Globals",
		Size:     64,
		Usage:    types.BufferUsageUniform | types.BufferUsageCopyDst,
		Location: types.MemoryLocationCpuToGpu,
	})
	if err != nil {
		return handle.ShaderArgumentHandle{}, err
	}
	rawBuf, _ := ctx.Resources.Buffers.Get(buf)
	arg, err := ctx.CreateShaderArgument(&rhi.ShaderArgumentDescriptor{Entries: []rhi.ShaderArgumentEntry{{Binding: 0, Buffer: rawBuf}}})
	if err != nil {
		return handle.ShaderArgumentHandle{}, err
	}
	return arg, nil
}

func buildOffscreenTarget(ctx *context.Context, extent framegraph.Extent) (rhi.TextureView, error) {
	h, err := ctx.CreateTexture(&rhi.TextureDescriptor{
		Label:  "Demo Swapchain Stand-in",
		Type:   types.TextureType2D,
		Format: types.FormatRGBA8Unorm,
		Size:   types.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: 1},
		Usage:  types.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	return ctx.CreateTextureView(h, &rhi.TextureViewDescriptor{Label: "Demo Swapchain Stand-in View", Usage: types.TextureUsageRenderAttachment})
}

func fatal(step string, err error) {
	logging.Logger().Error("fotia-demo: fatal", slog.String("step", step), slog.Any("error", err))
	os.Exit(1)
}
