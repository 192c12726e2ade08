package config

import (
	"os"
	"testing"
)

func saveArgs() []string    { return os.Args }
func restoreArgs(a []string) { os.Args = a }
func setArgs(extra []string) { os.Args = append([]string{"fotia"}, extra...) }

func u32p(v uint32) *uint32 { return &v }
func f32p(v float32) *float32 { return &v }
func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func TestMergeDefaultsWhenNeitherSourceSetsAField(t *testing.T) {
	out := merge(cliSettings{}, tomlSettings{})
	want := defaults()
	if out != want {
		t.Fatalf("expected pure defaults, got %+v", out)
	}
}

func TestMergeTomlOverridesDefaults(t *testing.T) {
	out := merge(cliSettings{}, tomlSettings{Width: u32p(1920), Height: u32p(1080)})
	if out.Width != 1920 || out.Height != 1080 {
		t.Fatalf("expected TOML values to apply, got %+v", out)
	}
}

func TestMergeCliWinsOverToml(t *testing.T) {
	out := merge(cliSettings{width: u32p(640)}, tomlSettings{Width: u32p(1920)})
	if out.Width != 640 {
		t.Fatalf("expected CLI to win over TOML, got width=%d", out.Width)
	}
}

func TestMergeShadowsFarUnsetByDefault(t *testing.T) {
	out := merge(cliSettings{}, tomlSettings{})
	if out.HasShadowsFar {
		t.Fatal("expected HasShadowsFar to be false when neither source sets it")
	}
}

func TestMergeShadowsFarCliWinsOverToml(t *testing.T) {
	out := merge(cliSettings{shadowsFar: f32p(50)}, tomlSettings{ShadowsFar: f32p(200)})
	if !out.HasShadowsFar || out.ShadowsFar != 50 {
		t.Fatalf("expected CLI shadows_far to win, got %+v", out)
	}
}

func TestMergeEveryFieldIndependently(t *testing.T) {
	cli := cliSettings{
		cascadesCount:  intp(4),
		cascadeSize:    u32p(1024),
		scenePath:      strp("scenes/sponza.gltf"),
		sceneScale:     f32p(0.01),
		benchAddr:      strp("127.0.0.1:9000"),
		framesInFlight: intp(2),
		cameraFar:      f32p(500),
	}
	out := merge(cli, tomlSettings{})

	if out.CascadesCount != 4 || out.CascadeSize != 1024 || out.ScenePath != "scenes/sponza.gltf" ||
		out.SceneScale != 0.01 || out.BenchAddr != "127.0.0.1:9000" || out.FramesInFlight != 2 || out.CameraFar != 500 {
		t.Fatalf("expected every CLI field to apply, got %+v", out)
	}
}

func TestLoadMissingTomlFallsBackToDefaults(t *testing.T) {
	prevArgs := saveArgs()
	defer restoreArgs(prevArgs)
	setArgs(nil)

	out, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out != defaults() {
		t.Fatalf("expected defaults when toml is missing and no flags given, got %+v", out)
	}
}
