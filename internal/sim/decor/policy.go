// Package decor decides which decoration, if any, grows on a freshly
// generated surface cell.
package decor

import (
	"fmt"

	"spherestream/internal/render"
	"spherestream/internal/sim/biome"
)

// Rule places Kind when the draw falls below Below. Rules of a biome are
// cumulative: the first rule whose bound exceeds the draw wins.
type Rule struct {
	Kind  render.Kind
	Below float64
}

type Policy struct {
	rules   map[biome.Biome][]Rule
	offsets map[render.Kind]float64
}

func DefaultRules() map[biome.Biome][]Rule {
	return map[biome.Biome][]Rule{
		biome.Grass: {
			{Kind: render.Tree, Below: 0.05},
			{Kind: render.Flower, Below: 0.10},
		},
		biome.Sand: {
			{Kind: render.Creature, Below: 0.03},
		},
	}
}

// DefaultOffsets lift each decoration above the center of its host cell.
func DefaultOffsets() map[render.Kind]float64 {
	return map[render.Kind]float64{
		render.Tree:     0.5,
		render.Flower:   0.3,
		render.Creature: 0.5,
		render.Filler:   0.2,
	}
}

func NewPolicy(rules map[biome.Biome][]Rule, offsets map[render.Kind]float64) (*Policy, error) {
	p := &Policy{
		rules:   map[biome.Biome][]Rule{},
		offsets: map[render.Kind]float64{},
	}
	for b, rs := range rules {
		if !b.Valid() {
			return nil, fmt.Errorf("decor: invalid biome %d", b)
		}
		prev := 0.0
		for i, r := range rs {
			if !r.Kind.Valid() || r.Kind == render.Sphere {
				return nil, fmt.Errorf("decor: %s rule %d: %s is not a decoration", b, i, r.Kind)
			}
			if r.Below <= prev || r.Below > 1 {
				return nil, fmt.Errorf("decor: %s rule %d: bound %v must be in (%v, 1]", b, i, r.Below, prev)
			}
			prev = r.Below
		}
		p.rules[b] = append([]Rule(nil), rs...)
	}
	for k, off := range offsets {
		p.offsets[k] = off
	}
	return p, nil
}

func Default() *Policy {
	p, err := NewPolicy(DefaultRules(), DefaultOffsets())
	if err != nil {
		panic(err)
	}
	return p
}

// Decide maps a surface biome and a draw in [0, 1) to a decoration kind.
func (p *Policy) Decide(b biome.Biome, draw float64) (render.Kind, bool) {
	for _, r := range p.rules[b] {
		if draw < r.Below {
			return r.Kind, true
		}
	}
	return 0, false
}

// Decorates reports whether b has any rule at all.
func (p *Policy) Decorates(b biome.Biome) bool {
	return len(p.rules[b]) > 0
}

func (p *Policy) Offset(k render.Kind) float64 {
	return p.offsets[k]
}
