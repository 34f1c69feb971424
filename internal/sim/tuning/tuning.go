package tuning

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"spherestream/internal/render"
	"spherestream/internal/sim/biome"
	"spherestream/internal/sim/decor"
	"spherestream/internal/sim/mathx"
	"spherestream/internal/sim/noise"
	"spherestream/internal/sim/observer"
	"spherestream/internal/sim/stream"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Noise   Noise   `yaml:"noise"`
	Terrain Terrain `yaml:"terrain"`

	ChunkRadius  int     `yaml:"chunk_radius"`
	UnloadRadius float64 `yaml:"unload_radius"`
	CellSpacing  float64 `yaml:"cell_spacing"`

	Biomes      Biomes                `yaml:"biomes"`
	Materials   map[string]string     `yaml:"materials"`
	Decorations map[string][]DecoRule `yaml:"decorations"`
	DecoOffsets map[string]float64    `yaml:"decoration_offsets"`
	DecoSeed    int64                 `yaml:"decoration_seed"`

	// Pre-allocated idle visuals per prefab kind.
	PoolWarm map[string]int `yaml:"pool_warm"`
}

type Noise struct {
	Kind      string  `yaml:"kind"`
	Seed      int64   `yaml:"seed"`
	Octaves   int     `yaml:"octaves"`
	Frequency float64 `yaml:"frequency"`
}

type Terrain struct {
	HeightMultiplier float64 `yaml:"height_multiplier"`
	SizeFrequency    float64 `yaml:"size_frequency"`
	SizeOffset       float64 `yaml:"size_offset"`
	MinScale         float64 `yaml:"min_scale"`
	MaxScale         float64 `yaml:"max_scale"`
}

type Biomes struct {
	Bands []BiomeBand `yaml:"bands"`
	Top   string      `yaml:"top"`
}

type BiomeBand struct {
	Biome string  `yaml:"biome"`
	Below float64 `yaml:"below"`
}

type DecoRule struct {
	Kind  string  `yaml:"kind"`
	Below float64 `yaml:"below"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 20,
		Noise: Noise{
			Kind:      string(noise.KindPerlin),
			Seed:      0,
			Octaves:   1,
			Frequency: 0.1,
		},
		Terrain: Terrain{
			HeightMultiplier: 8,
			SizeFrequency:    0.2,
			SizeOffset:       100,
			MinScale:         0.8,
			MaxScale:         1.2,
		},
		ChunkRadius:  8,
		UnloadRadius: 12,
		CellSpacing:  1,
		Biomes: Biomes{
			Bands: []BiomeBand{
				{Biome: "WATER", Below: 0.2},
				{Biome: "SAND", Below: 0.35},
				{Biome: "DIRT", Below: 0.5},
				{Biome: "GRASS", Below: 0.7},
				{Biome: "STONE", Below: 0.9},
			},
			Top: "SNOW",
		},
		Materials: map[string]string{
			"WATER": "water",
			"SAND":  "sand",
			"DIRT":  "dirt",
			"GRASS": "grass",
			"STONE": "stone",
			"SNOW":  "snow",
		},
		Decorations: map[string][]DecoRule{
			"GRASS": {{Kind: "TREE", Below: 0.05}, {Kind: "FLOWER", Below: 0.10}},
			"SAND":  {{Kind: "CREATURE", Below: 0.03}},
		},
		DecoOffsets: map[string]float64{
			"TREE":     0.5,
			"FLOWER":   0.3,
			"CREATURE": 0.5,
			"FILLER":   0.2,
		},
		DecoSeed: 1,
		PoolWarm: map[string]int{
			"SPHERE": 100,
		},
	}
}

// Load reads a tuning file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0, got %d", t.TickRateHz)
	}
	if _, err := t.NoiseConfig(); err != nil {
		return err
	}
	if _, err := t.Classifier(); err != nil {
		return err
	}
	if _, err := t.Policy(); err != nil {
		return err
	}
	if _, err := t.PoolWarmKinds(); err != nil {
		return err
	}
	sc, err := t.StreamConfig()
	if err != nil {
		return err
	}
	return sc.Validate()
}

func (t Tuning) NoiseConfig() (noise.Config, error) {
	cfg := noise.Config{
		Kind:             noise.Kind(strings.ToLower(strings.TrimSpace(t.Noise.Kind))),
		Seed:             t.Noise.Seed,
		Octaves:          t.Noise.Octaves,
		Frequency:        t.Noise.Frequency,
		HeightMultiplier: t.Terrain.HeightMultiplier,
		SizeFrequency:    t.Terrain.SizeFrequency,
		SizeOffset:       t.Terrain.SizeOffset,
		MinScale:         t.Terrain.MinScale,
		MaxScale:         t.Terrain.MaxScale,
	}
	// Build once to surface config errors early.
	if _, err := noise.New(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (t Tuning) Classifier() (*biome.Classifier, error) {
	bands := make([]biome.Band, 0, len(t.Biomes.Bands))
	for _, b := range t.Biomes.Bands {
		v, err := biome.Parse(b.Biome)
		if err != nil {
			return nil, fmt.Errorf("biomes: %w", err)
		}
		bands = append(bands, biome.Band{Biome: v, Below: b.Below})
	}
	top, err := biome.Parse(t.Biomes.Top)
	if err != nil {
		return nil, fmt.Errorf("biomes.top: %w", err)
	}
	return biome.NewClassifier(bands, top)
}

func (t Tuning) MaterialMap() (biome.Materials, error) {
	m := biome.Materials{}
	for name, style := range t.Materials {
		b, err := biome.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("materials: %w", err)
		}
		m[b] = style
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (t Tuning) Policy() (*decor.Policy, error) {
	rules := map[biome.Biome][]decor.Rule{}
	for name, rs := range t.Decorations {
		b, err := biome.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("decorations: %w", err)
		}
		for _, r := range rs {
			k, err := render.ParseKind(r.Kind)
			if err != nil {
				return nil, fmt.Errorf("decorations.%s: %w", name, err)
			}
			rules[b] = append(rules[b], decor.Rule{Kind: k, Below: r.Below})
		}
	}
	offsets := map[render.Kind]float64{}
	for name, off := range t.DecoOffsets {
		k, err := render.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("decoration_offsets: %w", err)
		}
		offsets[k] = off
	}
	return decor.NewPolicy(rules, offsets)
}

func (t Tuning) PoolWarmKinds() (map[render.Kind]int, error) {
	out := map[render.Kind]int{}
	for name, n := range t.PoolWarm {
		k, err := render.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("pool_warm: %w", err)
		}
		if n < 0 {
			return nil, errors.New("pool_warm: sizes must be >= 0")
		}
		out[k] = n
	}
	return out, nil
}

func (t Tuning) StreamConfig() (stream.Config, error) {
	m, err := t.MaterialMap()
	if err != nil {
		return stream.Config{}, err
	}
	return stream.Config{
		ChunkRadius:  t.ChunkRadius,
		UnloadRadius: t.UnloadRadius,
		Spacing:      t.CellSpacing,
		Parent:       "world",
		Materials:    m,
	}, nil
}

// Build wires a streaming engine from the tuning. obs and scene may be nil
// and set later; the engine skips ticks until both are present.
func (t Tuning) Build(obs observer.Source, scene *render.Scene, logger *log.Logger) (*stream.Engine, error) {
	nc, err := t.NoiseConfig()
	if err != nil {
		return nil, err
	}
	sampler, err := noise.New(nc)
	if err != nil {
		return nil, err
	}
	classifier, err := t.Classifier()
	if err != nil {
		return nil, err
	}
	policy, err := t.Policy()
	if err != nil {
		return nil, err
	}
	sc, err := t.StreamConfig()
	if err != nil {
		return nil, err
	}
	if scene != nil {
		warm, err := t.PoolWarmKinds()
		if err != nil {
			return nil, err
		}
		for _, k := range render.Kinds() {
			scene.Warm(k, warm[k])
		}
	}
	return stream.New(sc, stream.Deps{
		Observer:   obs,
		Scene:      scene,
		Sampler:    sampler,
		Classifier: classifier,
		Policy:     policy,
		Rand:       mathx.NewSplitMix(t.DecoSeed),
		Logger:     logger,
	})
}
