// Package noise samples the coherent 2D fields that shape the terrain: column
// height and per-column cell size. A Sampler is immutable after construction,
// so sampling the same coordinate always yields the same value.
package noise

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"spherestream/internal/sim/mathx"
)

type Kind string

const (
	KindPerlin      Kind = "perlin"
	KindOpenSimplex Kind = "opensimplex"
)

type Config struct {
	Kind    Kind
	Seed    int64
	Octaves int

	// Height field.
	Frequency        float64
	HeightMultiplier float64

	// Size field. Sampled at (x+SizeOffset)*SizeFrequency so it does not
	// correlate with height.
	SizeFrequency float64
	SizeOffset    float64
	MinScale      float64
	MaxScale      float64
}

// field returns a value in [0, 1].
type field interface {
	eval(x, y float64) float64
}

type perlinField struct{ p *perlin.Perlin }

func (f perlinField) eval(x, y float64) float64 {
	// Noise2D is roughly in [-1, 1].
	return mathx.Clamp((f.p.Noise2D(x, y)+1)/2, 0, 1)
}

type simplexField struct {
	os         opensimplex.Noise
	amplitudes []float64
}

func (f simplexField) eval(x, y float64) float64 {
	var sum, total float64
	for octave, amp := range f.amplitudes {
		freq := float64(int(1) << octave)
		sum += amp * f.os.Eval2(x*freq, y*freq)
		total += amp
	}
	return mathx.Clamp(sum/total, 0, 1)
}

type Sampler struct {
	cfg Config
	f   field
}

func New(cfg Config) (*Sampler, error) {
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	if cfg.HeightMultiplier < 0 {
		return nil, fmt.Errorf("noise: height multiplier must be >= 0, got %v", cfg.HeightMultiplier)
	}
	if cfg.MinScale <= 0 || cfg.MaxScale < cfg.MinScale {
		return nil, fmt.Errorf("noise: invalid scale range [%v, %v]", cfg.MinScale, cfg.MaxScale)
	}

	s := &Sampler{cfg: cfg}
	switch cfg.Kind {
	case KindPerlin, "":
		s.cfg.Kind = KindPerlin
		s.f = perlinField{p: perlin.NewPerlin(2, 2, int32(cfg.Octaves), cfg.Seed)}
	case KindOpenSimplex:
		amps := make([]float64, cfg.Octaves)
		for i := range amps {
			amps[i] = math.Pow(0.5, float64(i))
		}
		s.f = simplexField{os: opensimplex.NewNormalized(cfg.Seed), amplitudes: amps}
	default:
		return nil, fmt.Errorf("noise: unknown kind %q", cfg.Kind)
	}
	return s, nil
}

func (s *Sampler) Config() Config { return s.cfg }

// Signal is the normalized height of column (x, z), in [0, 1].
func (s *Sampler) Signal(x, z int) float64 {
	return s.f.eval(float64(x)*s.cfg.Frequency, float64(z)*s.cfg.Frequency)
}

// HeightAt is in [0, HeightMultiplier].
func (s *Sampler) HeightAt(x, z int) float64 {
	return s.Signal(x, z) * s.cfg.HeightMultiplier
}

// Top is the grid height of the topmost cell of column (x, z).
func (s *Sampler) Top(x, z int) int {
	top := mathx.FloorInt(s.HeightAt(x, z))
	if top < 0 {
		return 0
	}
	return top
}

// SizeAt is in [MinScale, MaxScale].
func (s *Sampler) SizeAt(x, z int) float64 {
	n := s.f.eval(
		(float64(x)+s.cfg.SizeOffset)*s.cfg.SizeFrequency,
		(float64(z)+s.cfg.SizeOffset)*s.cfg.SizeFrequency,
	)
	return mathx.Lerp(s.cfg.MinScale, s.cfg.MaxScale, n)
}

// LayerSignal normalizes a cell height against the height multiplier. A flat
// world (multiplier 0) is all bottom layer.
func (s *Sampler) LayerSignal(y int) float64 {
	if s.cfg.HeightMultiplier <= 0 {
		return 0
	}
	return float64(y) / s.cfg.HeightMultiplier
}
