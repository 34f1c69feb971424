package biome

import (
	"errors"
	"testing"
)

func TestClassifyBoundaries(t *testing.T) {
	c := Default()
	cases := []struct {
		signal float64
		want   Biome
	}{
		{0, Water},
		{0.19999, Water},
		{0.2, Sand},
		{0.34999, Sand},
		{0.35, Dirt},
		{0.5, Grass},
		{0.69999, Grass},
		{0.7, Stone},
		{0.9, Snow},
		{1, Snow},
		{-0.1, Water},
		{1.5, Snow},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.signal); got != tc.want {
			t.Fatalf("Classify(%v)=%s want %s", tc.signal, got, tc.want)
		}
	}
}

func TestClassifyPartitionIsTotalAndMonotonic(t *testing.T) {
	c := Default()
	bands, top := c.Bands()
	order := map[Biome]int{top: len(bands)}
	for i, b := range bands {
		order[b.Biome] = i
	}

	prev := -1
	const steps = 100000
	for i := 0; i <= steps; i++ {
		s := float64(i) / steps
		b := c.Classify(s)
		idx, ok := order[b]
		if !ok {
			t.Fatalf("signal %v mapped to unconfigured biome %s", s, b)
		}
		// Exactly one match: the first band whose bound exceeds s.
		matches := 0
		lo := 0.0
		for _, band := range bands {
			if s >= lo && s < band.Below {
				matches++
			}
			lo = band.Below
		}
		if s >= lo {
			matches++
		}
		if matches != 1 {
			t.Fatalf("signal %v matched %d bands", s, matches)
		}
		if idx < prev {
			t.Fatalf("classification not monotonic at %v", s)
		}
		prev = idx
	}
	if prev != len(bands) {
		t.Fatalf("top biome never reached")
	}
}

func TestNewClassifierRejectsGapsAndOverlaps(t *testing.T) {
	cases := map[string][]Band{
		"empty":        nil,
		"decreasing":   {{Biome: Water, Below: 0.5}, {Biome: Sand, Below: 0.3}},
		"equal bounds": {{Biome: Water, Below: 0.5}, {Biome: Sand, Below: 0.5}},
		"zero bound":   {{Biome: Water, Below: 0}},
		"above one":    {{Biome: Water, Below: 1.2}},
		"duplicate":    {{Biome: Water, Below: 0.3}, {Biome: Water, Below: 0.6}},
		"invalid":      {{Biome: Biome(42), Below: 0.3}},
	}
	for name, bands := range cases {
		if _, err := NewClassifier(bands, Snow); !errors.Is(err, ErrBands) {
			t.Fatalf("%s: expected ErrBands, got %v", name, err)
		}
	}
	if _, err := NewClassifier([]Band{{Biome: Snow, Below: 0.5}}, Snow); err == nil {
		t.Fatalf("expected error for top biome reused by a band")
	}
}

func TestParseAndText(t *testing.T) {
	for _, b := range All {
		got, err := Parse(b.String())
		if err != nil || got != b {
			t.Fatalf("Parse(%s)=%v,%v", b, got, err)
		}
	}
	var b Biome
	if err := b.UnmarshalText([]byte("grass")); err != nil || b != Grass {
		t.Fatalf("UnmarshalText: %v %v", b, err)
	}
	if _, err := Parse("lava"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMaterialsValidate(t *testing.T) {
	m := DefaultMaterials()
	if err := m.Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	delete(m, Snow)
	if err := m.Validate(); err == nil {
		t.Fatalf("expected missing material error")
	}
}
