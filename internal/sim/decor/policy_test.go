package decor

import (
	"testing"

	"spherestream/internal/render"
	"spherestream/internal/sim/biome"
)

func TestDefaultDecide(t *testing.T) {
	p := Default()
	cases := []struct {
		b    biome.Biome
		draw float64
		kind render.Kind
		ok   bool
	}{
		{biome.Grass, 0, render.Tree, true},
		{biome.Grass, 0.0499, render.Tree, true},
		{biome.Grass, 0.05, render.Flower, true},
		{biome.Grass, 0.0999, render.Flower, true},
		{biome.Grass, 0.10, 0, false},
		{biome.Grass, 0.99, 0, false},
		{biome.Sand, 0.02, render.Creature, true},
		{biome.Sand, 0.03, 0, false},
		{biome.Water, 0, 0, false},
		{biome.Dirt, 0, 0, false},
		{biome.Stone, 0, 0, false},
		{biome.Snow, 0, 0, false},
	}
	for _, tc := range cases {
		kind, ok := p.Decide(tc.b, tc.draw)
		if ok != tc.ok || (ok && kind != tc.kind) {
			t.Fatalf("Decide(%s,%v)=%s,%v want %s,%v", tc.b, tc.draw, kind, ok, tc.kind, tc.ok)
		}
	}
	if p.Decorates(biome.Water) || !p.Decorates(biome.Sand) {
		t.Fatalf("unexpected Decorates")
	}
	if p.Offset(render.Flower) != 0.3 || p.Offset(render.Tree) != 0.5 {
		t.Fatalf("unexpected offsets")
	}
}

func TestNewPolicyValidation(t *testing.T) {
	bad := []map[biome.Biome][]Rule{
		{biome.Grass: {{Kind: render.Tree, Below: 0.5}, {Kind: render.Flower, Below: 0.4}}},
		{biome.Grass: {{Kind: render.Sphere, Below: 0.5}}},
		{biome.Grass: {{Kind: render.Tree, Below: 1.5}}},
		{biome.Biome(99): {{Kind: render.Tree, Below: 0.5}}},
	}
	for i, rules := range bad {
		if _, err := NewPolicy(rules, nil); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}

	p, err := NewPolicy(map[biome.Biome][]Rule{biome.Stone: {{Kind: render.Filler, Below: 0.2}}}, nil)
	if err != nil {
		t.Fatalf("filler policy: %v", err)
	}
	if k, ok := p.Decide(biome.Stone, 0.1); !ok || k != render.Filler {
		t.Fatalf("expected filler, got %s %v", k, ok)
	}
}
