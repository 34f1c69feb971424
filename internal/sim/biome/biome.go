package biome

import (
	"errors"
	"fmt"
	"strings"
)

type Biome uint8

const (
	Water Biome = iota
	Sand
	Dirt
	Grass
	Stone
	Snow
)

// All lists every biome in declaration order.
var All = []Biome{Water, Sand, Dirt, Grass, Stone, Snow}

var names = [...]string{"WATER", "SAND", "DIRT", "GRASS", "STONE", "SNOW"}

func (b Biome) String() string {
	if int(b) < len(names) {
		return names[b]
	}
	return fmt.Sprintf("BIOME(%d)", uint8(b))
}

func (b Biome) Valid() bool { return int(b) < len(names) }

func Parse(s string) (Biome, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == u {
			return Biome(i), nil
		}
	}
	return 0, fmt.Errorf("unknown biome %q", s)
}

func (b Biome) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Biome) UnmarshalText(p []byte) error {
	v, err := Parse(string(p))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Band covers signals in [previous Below, Below).
type Band struct {
	Biome Biome
	Below float64
}

// Classifier maps a normalized height signal to exactly one biome. Bands are
// half-open, so a boundary value belongs to the band above it.
type Classifier struct {
	bands []Band
	top   Biome
}

var ErrBands = errors.New("biome: invalid bands")

// DefaultBands are 0.2/0.35/0.5/0.7/0.9 with Snow on top.
func DefaultBands() ([]Band, Biome) {
	return []Band{
		{Biome: Water, Below: 0.2},
		{Biome: Sand, Below: 0.35},
		{Biome: Dirt, Below: 0.5},
		{Biome: Grass, Below: 0.7},
		{Biome: Stone, Below: 0.9},
	}, Snow
}

func NewClassifier(bands []Band, top Biome) (*Classifier, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrBands)
	}
	seen := map[Biome]bool{}
	prev := 0.0
	for i, b := range bands {
		if !b.Biome.Valid() {
			return nil, fmt.Errorf("%w: band %d has invalid biome %d", ErrBands, i, b.Biome)
		}
		if b.Below <= prev || b.Below > 1 {
			return nil, fmt.Errorf("%w: band %d (%s) bound %v must be in (%v, 1]", ErrBands, i, b.Biome, b.Below, prev)
		}
		if seen[b.Biome] {
			return nil, fmt.Errorf("%w: %s used twice", ErrBands, b.Biome)
		}
		seen[b.Biome] = true
		prev = b.Below
	}
	if !top.Valid() {
		return nil, fmt.Errorf("%w: invalid top biome %d", ErrBands, top)
	}
	if seen[top] {
		return nil, fmt.Errorf("%w: top biome %s also used by a band", ErrBands, top)
	}
	cp := make([]Band, len(bands))
	copy(cp, bands)
	return &Classifier{bands: cp, top: top}, nil
}

func Default() *Classifier {
	bands, top := DefaultBands()
	c, err := NewClassifier(bands, top)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Classifier) Classify(signal float64) Biome {
	for _, b := range c.bands {
		if signal < b.Below {
			return b.Biome
		}
	}
	return c.top
}

func (c *Classifier) Bands() ([]Band, Biome) {
	cp := make([]Band, len(c.bands))
	copy(cp, c.bands)
	return cp, c.top
}
