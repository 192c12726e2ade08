// Package config loads the renderer's runtime settings, merging a TOML
// config file with command-line flag overrides the same way the
// original settings module does: CLI wins on any field either source
// sets, and a missing or unparsable TOML file is not fatal — Load
// falls back to flag-or-default for every field.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/fotia/csm"
)

// RenderSettings is the resolved configuration the renderer core reads
// from: the driver's extent and frames-in-flight, the CSM ring's
// cascade size, and the optional benchmark telemetry address.
type RenderSettings struct {
	Width          uint32
	Height         uint32
	CascadesCount  int
	CascadeSize    uint32
	ScenePath      string
	SceneScale     float32
	BenchAddr      string
	FramesInFlight int
	CameraFar      float32
	ShadowsFar     float32
	HasShadowsFar  bool
}

// tomlSettings mirrors the original's TomlRenderSettings: every field
// optional, defaulted after unmarshalling rather than via struct tags,
// since go-toml/v2 has no per-field default-value hook.
type tomlSettings struct {
	Width          *uint32  `toml:"width"`
	Height         *uint32  `toml:"height"`
	CascadesCount  *int     `toml:"cascades_count"`
	CascadeSize    *uint32  `toml:"cascade_size"`
	ScenePath      *string  `toml:"scene_path"`
	SceneScale     *float32 `toml:"scene_scale"`
	BenchAddr      *string  `toml:"bench_addr"`
	FramesInFlight *int     `toml:"frames_in_flight"`
	CameraFar      *float32 `toml:"camera_far"`
	ShadowsFar     *float32 `toml:"shadows_far"`
}

// cliSettings mirrors the original's CliRenderSettings: every field is
// a pointer set only when the caller actually passed the flag, so
// Merge can tell "explicitly set" apart from "defaulted."
type cliSettings struct {
	width          *uint32
	height         *uint32
	cascadesCount  *int
	cascadeSize    *uint32
	scenePath      *string
	sceneScale     *float32
	benchAddr      *string
	framesInFlight *int
	cameraFar      *float32
	shadowsFar     *float32
}

func defaults() RenderSettings {
	return RenderSettings{
		Width:          800,
		Height:         600,
		CascadesCount:  csm.CascadeCount,
		CascadeSize:    2048,
		SceneScale:     1.0,
		FramesInFlight: 3,
		CameraFar:      1000.0,
	}
}

// parseFlags reads overrides from args (typically os.Args[1:]); a flag
// left unset leaves its cliSettings field nil.
func parseFlags(args []string) (cliSettings, error) {
	var cli cliSettings
	fs := flag.NewFlagSet("fotia", flag.ContinueOnError)

	width := fs.Uint("width", 0, "backbuffer width")
	height := fs.Uint("height", 0, "backbuffer height")
	cascadesCount := fs.Int("cascades-count", 0, "number of CSM cascades")
	cascadeSize := fs.Uint("cascade-size", 0, "CSM cascade edge length in texels")
	scenePath := fs.String("scene-path", "", "glTF scene path")
	sceneScale := fs.Float64("scene-scale", 0, "scene unit scale")
	benchAddr := fs.String("bench-addr", "", "benchmark telemetry collector address")
	framesInFlight := fs.Int("frames-in-flight", 0, "frame-in-flight count, clamped to the ring's slot limit")
	cameraFar := fs.Float64("camera-far", 0, "camera far plane")
	shadowsFar := fs.Float64("shadows-far", 0, "shadow draw distance, defaults to camera-far")

	if err := fs.Parse(args); err != nil {
		return cliSettings{}, fmt.Errorf("config: parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			v := uint32(*width)
			cli.width = &v
		case "height":
			v := uint32(*height)
			cli.height = &v
		case "cascades-count":
			cli.cascadesCount = cascadesCount
		case "cascade-size":
			v := uint32(*cascadeSize)
			cli.cascadeSize = &v
		case "scene-path":
			cli.scenePath = scenePath
		case "scene-scale":
			v := float32(*sceneScale)
			cli.sceneScale = &v
		case "bench-addr":
			cli.benchAddr = benchAddr
		case "frames-in-flight":
			cli.framesInFlight = framesInFlight
		case "camera-far":
			v := float32(*cameraFar)
			cli.cameraFar = &v
		case "shadows-far":
			v := float32(*shadowsFar)
			cli.shadowsFar = &v
		}
	})
	return cli, nil
}

// merge resolves cli against toml against the baseline defaults, CLI
// always winning when both a CLI flag and a TOML field set the same
// setting.
func merge(cli cliSettings, toml tomlSettings) RenderSettings {
	out := defaults()

	pick := func(cliV *uint32, tomlV *uint32, fallback uint32) uint32 {
		if cliV != nil {
			return *cliV
		}
		if tomlV != nil {
			return *tomlV
		}
		return fallback
	}
	pickInt := func(cliV *int, tomlV *int, fallback int) int {
		if cliV != nil {
			return *cliV
		}
		if tomlV != nil {
			return *tomlV
		}
		return fallback
	}
	pickF32 := func(cliV *float32, tomlV *float32, fallback float32) float32 {
		if cliV != nil {
			return *cliV
		}
		if tomlV != nil {
			return *tomlV
		}
		return fallback
	}
	pickStr := func(cliV *string, tomlV *string, fallback string) string {
		if cliV != nil {
			return *cliV
		}
		if tomlV != nil {
			return *tomlV
		}
		return fallback
	}

	out.Width = pick(cli.width, toml.Width, out.Width)
	out.Height = pick(cli.height, toml.Height, out.Height)
	out.CascadesCount = pickInt(cli.cascadesCount, toml.CascadesCount, out.CascadesCount)
	out.CascadeSize = pick(cli.cascadeSize, toml.CascadeSize, out.CascadeSize)
	out.ScenePath = pickStr(cli.scenePath, toml.ScenePath, out.ScenePath)
	out.SceneScale = pickF32(cli.sceneScale, toml.SceneScale, out.SceneScale)
	out.BenchAddr = pickStr(cli.benchAddr, toml.BenchAddr, out.BenchAddr)
	out.FramesInFlight = pickInt(cli.framesInFlight, toml.FramesInFlight, out.FramesInFlight)
	out.CameraFar = pickF32(cli.cameraFar, toml.CameraFar, out.CameraFar)

	if cli.shadowsFar != nil {
		out.ShadowsFar, out.HasShadowsFar = *cli.shadowsFar, true
	} else if toml.ShadowsFar != nil {
		out.ShadowsFar, out.HasShadowsFar = *toml.ShadowsFar, true
	}
	return out
}

// Load reads tomlPath (a missing or malformed file is not an error —
// Load falls back to CLI-and-defaults) and os.Args[1:], returning the
// merged settings.
func Load(tomlPath string) (RenderSettings, error) {
	cli, err := parseFlags(os.Args[1:])
	if err != nil {
		return RenderSettings{}, err
	}

	var ts tomlSettings
	if data, err := os.ReadFile(tomlPath); err == nil {
		_ = toml.Unmarshal(data, &ts)
	}
	return merge(cli, ts), nil
}
