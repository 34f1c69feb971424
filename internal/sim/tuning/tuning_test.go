package tuning

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spherestream/internal/render"
	"spherestream/internal/sim/biome"
	"spherestream/internal/sim/observer"
)

func TestDefaultsValidate(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	c, err := d.Classifier()
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Classify(0.6); got != biome.Grass {
		t.Fatalf("Classify(0.6)=%v want GRASS", got)
	}
	p, err := d.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if k, ok := p.Decide(biome.Grass, 0.07); !ok || k != render.Flower {
		t.Fatalf("Decide(grass, .07)=%v,%v", k, ok)
	}
	warm, err := d.PoolWarmKinds()
	if err != nil || warm[render.Sphere] != 100 {
		t.Fatalf("warm=%v err=%v", warm, err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkRadius != Defaults().ChunkRadius || got.TickRateHz != 20 {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := `
tick_rate_hz: 10
noise:
  kind: opensimplex
  seed: 42
chunk_radius: 3
unload_radius: 6
terrain:
  height_multiplier: 4
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 10 || got.ChunkRadius != 3 || got.UnloadRadius != 6 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Terrain.HeightMultiplier != 4 || got.Terrain.MinScale != Defaults().Terrain.MinScale {
		t.Fatalf("terrain=%+v", got.Terrain)
	}
	nc, err := got.NoiseConfig()
	if err != nil {
		t.Fatal(err)
	}
	if nc.Kind != "opensimplex" || nc.Seed != 42 {
		t.Fatalf("noise config %+v", nc)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unload inside window": "chunk_radius: 8\nunload_radius: 4\n",
		"tick rate":            "tick_rate_hz: 0\n",
		"noise kind":           "noise:\n  kind: value\n",
		"scale range":          "terrain:\n  min_scale: 2\n  max_scale: 1\n",
		"biome name":           "biomes:\n  bands:\n    - {biome: LAVA, below: 0.5}\n  top: SNOW\n",
		"decoration kind":      "decorations:\n  GRASS:\n    - {kind: ROCK, below: 0.1}\n",
		"decoration order":     "decorations:\n  GRASS:\n    - {kind: TREE, below: 0.2}\n    - {kind: FLOWER, below: 0.1}\n",
		"pool size":            "pool_warm:\n  SPHERE: -1\n",
		"yaml":                 "chunk_radius: [\n",
	}
	for name, raw := range cases {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "tuning.yaml") {
			t.Fatalf("%s: error not wrapped: %v", name, err)
		}
	}
}

func TestMissingMaterialRejected(t *testing.T) {
	d := Defaults()
	delete(d.Materials, "SNOW")
	if err := d.Validate(); err == nil {
		t.Fatal("expected missing material to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildWarmsPoolsAndTicks(t *testing.T) {
	d := Defaults()
	d.ChunkRadius = 2
	rec := render.NewRecorder()
	scene := render.NewScene(rec)
	e, err := d.Build(observer.Fixed{}, scene, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := scene.Stats()[render.Sphere].Idle; got != 100 {
		t.Fatalf("warm spheres=%d want 100", got)
	}
	st := e.Tick(context.Background())
	if st.Skipped || st.Generated == 0 || st.LiveCells != st.Generated {
		t.Fatalf("first tick %+v", st)
	}
	if rec.CountVisible(render.Sphere) != st.LiveCells {
		t.Fatalf("visible spheres=%d live=%d", rec.CountVisible(render.Sphere), st.LiveCells)
	}
}

func TestSameTuningSameDigest(t *testing.T) {
	d := Defaults()
	d.ChunkRadius = 3
	digest := func() string {
		e, err := d.Build(observer.Fixed{2, 0, -5}, render.NewScene(render.NewRecorder()), nil)
		if err != nil {
			t.Fatal(err)
		}
		e.Tick(context.Background())
		return e.Digest()
	}
	if a, b := digest(), digest(); a != b {
		t.Fatalf("digest differs: %s vs %s", a, b)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if got.Noise.Seed != 1337 || got.ChunkRadius != 8 {
		t.Fatalf("sample=%+v", got)
	}
}
